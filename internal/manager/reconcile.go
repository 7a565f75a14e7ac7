package manager

import (
	"context"
	"log"
	"time"

	"inferd/internal/supervisor"
	"inferd/pkg/types"
)

// Reconcile folds observed process liveness into the tracked state: a
// loaded model whose backend died is marked failed and its port and
// memory reservation are released. The failed record stays visible until
// an explicit unload so operators can see what happened. Returns the ids
// of models that were found dead.
func (m *Manager) Reconcile() []string {
	m.admission.Lock()
	defer m.admission.Unlock()

	var dead []string
	for _, lm := range m.reg.List("") {
		if lm.State != types.StateLoaded {
			continue
		}
		sup, ok := m.reg.Supervisor(lm.ModelID)
		if !ok || sup == nil {
			continue
		}
		rec, isSup := sup.(*supervisor.Supervisor)
		if isSup {
			if _, err := rec.Reconcile(); err == nil {
				continue
			}
		} else if sup.IsRunning() {
			continue
		}
		dead = append(dead, lm.ModelID)
		m.reg.MarkFailed(lm.ModelID, "backend process died")
		m.ports.ReleaseOwner(lm.ModelID)
		m.planner.Deallocate(lm.ModelID)
		supervisedProcesses.Dec()
		vramAllocatedMB.Set(float64(m.allocatedVRAMMB()))
		m.pub.Publish(Event{Name: "model_failed", ModelID: lm.ModelID})
		log.Printf("manager event=model_failed model=%s reason=process_died", lm.ModelID)
	}
	return dead
}

// ReconcileLoop calls Reconcile at the given interval until ctx is done.
func (m *Manager) ReconcileLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Reconcile()
		}
	}
}
