package permission

import "sync"

// GrantChecker reports and records the grant state of capabilities.
type GrantChecker interface {
	Granted(capability string) bool
	Record(capability string, granted bool)
}

// MemoryGrants is an in-process GrantChecker.
type MemoryGrants struct {
	mu      sync.RWMutex
	granted map[string]bool
}

// NewMemoryGrants returns a MemoryGrants with the given capabilities already granted.
func NewMemoryGrants(initial ...string) *MemoryGrants {
	g := &MemoryGrants{granted: make(map[string]bool, len(initial))}
	for _, c := range initial {
		g.granted[c] = true
	}
	return g
}

func (g *MemoryGrants) Granted(capability string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.granted[capability]
}

func (g *MemoryGrants) Record(capability string, granted bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if granted {
		g.granted[capability] = true
		return
	}
	delete(g.granted, capability)
}
