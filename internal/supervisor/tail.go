package supervisor

import "sync"

// tailBufferSize bounds how much child output is retained for diagnostics.
const tailBufferSize = 4096

// tailBuffer is an io.Writer keeping only the last tailBufferSize bytes.
// Safe for concurrent use: the child process writes while callers read.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func newTailBuffer() *tailBuffer {
	return &tailBuffer{buf: make([]byte, 0, tailBufferSize)}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - tailBufferSize; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
