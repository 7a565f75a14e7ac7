package registry

import (
	"testing"
	"time"

	"inferd/pkg/types"
)

func newInfo(id string, backend types.BackendType) *LoadedModelInfo {
	return &LoadedModelInfo{
		ModelID:   id,
		ModelPath: "/models/" + id + ".gguf",
		Backend:   backend,
		State:     types.StateLoading,
	}
}

func TestFirstAddedBecomesActive(t *testing.T) {
	r := New()
	if id := r.ActiveID(); id != "" {
		t.Fatalf("empty registry must have no active model, got %q", id)
	}
	r.Add(newInfo("a", types.BackendLlamaCpp))
	r.Add(newInfo("b", types.BackendLlamaCpp))
	if id := r.ActiveID(); id != "a" {
		t.Fatalf("first added should be active, got %q", id)
	}
}

func TestRemoveActivePromotesMostRecentlyLoaded(t *testing.T) {
	r := New()
	r.Add(newInfo("a", types.BackendLlamaCpp))
	r.Add(newInfo("b", types.BackendLlamaCpp))
	r.Add(newInfo("c", types.BackendLlamaCpp))

	if !r.Remove("a") {
		t.Fatalf("remove a")
	}
	// c was loaded last, so it wins deterministically
	if id := r.ActiveID(); id != "c" {
		t.Fatalf("expected most recently loaded survivor 'c', got %q", id)
	}
	r.Remove("c")
	if id := r.ActiveID(); id != "b" {
		t.Fatalf("expected 'b', got %q", id)
	}
	r.Remove("b")
	if id := r.ActiveID(); id != "" {
		t.Fatalf("expected no active model, got %q", id)
	}
}

func TestRemoveNonActiveKeepsActive(t *testing.T) {
	r := New()
	r.Add(newInfo("a", types.BackendLlamaCpp))
	r.Add(newInfo("b", types.BackendLlamaCpp))
	r.Remove("b")
	if id := r.ActiveID(); id != "a" {
		t.Fatalf("active must be untouched, got %q", id)
	}
}

func TestCountMatchesAddsMinusRemoves(t *testing.T) {
	r := New()
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		r.Add(newInfo(id, types.BackendLlamaCpp))
	}
	r.Remove("b")
	r.Remove("b") // second remove of same id is a no-op
	r.Remove("nope")
	if n := r.Count(); n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
	// active id is always a tracked id while non-empty
	if _, ok := r.Get(r.ActiveID()); !ok {
		t.Fatalf("active id %q is not tracked", r.ActiveID())
	}
}

func TestSetActive(t *testing.T) {
	r := New()
	r.Add(newInfo("a", types.BackendLlamaCpp))
	r.Add(newInfo("b", types.BackendLlamaCpp))
	if r.SetActive("missing") {
		t.Fatalf("setting an untracked id must fail")
	}
	if !r.SetActive("b") {
		t.Fatalf("set active b")
	}
	m, ok := r.Active()
	if !ok || m.ModelID != "b" || !m.Active {
		t.Fatalf("active record wrong: %+v ok=%v", m, ok)
	}
}

func TestListReturnsDefensiveCopies(t *testing.T) {
	r := New()
	info := newInfo("a", types.BackendLlamaCpp)
	info.Metadata = map[string]string{"k": "v"}
	r.Add(info)

	out := r.List("")
	if len(out) != 1 {
		t.Fatalf("expected 1, got %d", len(out))
	}
	out[0].State = types.StateFailed
	out[0].Metadata["k"] = "mutated"

	again, _ := r.Get("a")
	if again.State != types.StateLoading || again.Metadata["k"] != "v" {
		t.Fatalf("registry state mutated through returned copy: %+v", again)
	}
}

func TestListBackendFilterAndCounts(t *testing.T) {
	r := New()
	r.Add(newInfo("a", types.BackendLlamaCpp))
	r.Add(newInfo("b", types.BackendONNX))
	r.Add(newInfo("c", types.BackendLlamaCpp))

	if got := len(r.List(types.BackendLlamaCpp)); got != 2 {
		t.Fatalf("expected 2 llamacpp models, got %d", got)
	}
	counts := r.CountByBackend()
	if counts["llamacpp"] != 2 || counts["onnx"] != 1 {
		t.Fatalf("counts wrong: %+v", counts)
	}
}

func TestTransitions(t *testing.T) {
	r := New()
	r.Add(newInfo("a", types.BackendLlamaCpp))

	if !r.MarkLoaded("a") {
		t.Fatalf("mark loaded")
	}
	if m, _ := r.Get("a"); m.State != types.StateLoaded {
		t.Fatalf("expected loaded, got %s", m.State)
	}

	if !r.MarkUsed("a") {
		t.Fatalf("mark used")
	}
	if m, _ := r.Get("a"); m.LastUsedUnix == 0 {
		t.Fatalf("last used not stamped")
	}

	if !r.MarkFailed("a", "spawn failed") {
		t.Fatalf("mark failed")
	}
	m, _ := r.Get("a")
	if m.State != types.StateFailed || m.Metadata["error"] != "spawn failed" {
		t.Fatalf("failed transition wrong: %+v", m)
	}

	// transitions on untracked ids return false, never panic
	if r.MarkLoaded("x") || r.MarkFailed("x", "e") || r.MarkUsed("x") || r.MarkUnloading("x") {
		t.Fatalf("transitions on untracked id must return false")
	}
}

type stubRunner struct{ pid int }

func (s *stubRunner) Stop(time.Duration) bool { return true }
func (s *stubRunner) IsRunning() bool         { return true }
func (s *stubRunner) PID() int                { return s.pid }

func TestSupervisorRef(t *testing.T) {
	r := New()
	info := newInfo("a", types.BackendLlamaCpp)
	info.Supervisor = &stubRunner{pid: 42}
	r.Add(info)

	run, ok := r.Supervisor("a")
	if !ok || run.PID() != 42 {
		t.Fatalf("supervisor ref lost")
	}
	if _, ok := r.Supervisor("missing"); ok {
		t.Fatalf("missing id must report no supervisor")
	}
}
