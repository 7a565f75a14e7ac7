package supervisor

import (
	"fmt"
	"net"
	"strconv"
	"sync"
)

// PortAllocator hands out listen ports from a fixed range and remembers
// which owner holds each one. A port is only handed out when it is both
// absent from the ledger and currently bindable on localhost, so ports
// taken by unrelated processes are skipped rather than double-booked.
type PortAllocator struct {
	mu    sync.Mutex
	start int
	end   int
	inUse map[int]string
}

// NewPortAllocator builds an allocator over [start, end] inclusive.
func NewPortAllocator(start, end int) (*PortAllocator, error) {
	if start < 1 || end > 65535 || start > end {
		return nil, fmt.Errorf("invalid port range %d..%d", start, end)
	}
	return &PortAllocator{start: start, end: end, inUse: make(map[int]string)}, nil
}

// Allocate reserves the lowest free bindable port in the range for owner.
func (a *PortAllocator) Allocate(owner string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for port := a.start; port <= a.end; port++ {
		if _, taken := a.inUse[port]; taken {
			continue
		}
		if !portBindable(port) {
			continue
		}
		a.inUse[port] = owner
		return port, nil
	}
	return 0, fmt.Errorf("no free port in range %d..%d", a.start, a.end)
}

// Release frees a single port. Releasing an unallocated port is a no-op.
func (a *PortAllocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inUse, port)
}

// ReleaseOwner frees every port held by owner and returns how many it freed.
func (a *PortAllocator) ReleaseOwner(owner string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for port, holder := range a.inUse {
		if holder == owner {
			delete(a.inUse, port)
			n++
		}
	}
	return n
}

// Owner returns who holds port, or "" when it is free.
func (a *PortAllocator) Owner(port int) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse[port]
}

// InUse returns the number of allocated ports.
func (a *PortAllocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inUse)
}

func portBindable(port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
