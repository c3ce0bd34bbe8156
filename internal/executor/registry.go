package executor

import (
	"sync"

	"github.com/trainbox/trainbox/pkg/types"
)

// Registry tracks every live execution session so external callers can list
// them and the server can reap them at shutdown. Only the orchestrator
// mutates it; the lock is never held across a blocking operation.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Controller
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Controller)}
}

// Add registers a running session.
func (r *Registry) Add(sessionID string, c *Controller) {
	r.mu.Lock()
	r.sessions[sessionID] = c
	r.mu.Unlock()
}

// Remove drops a session. Removing an unknown id is a no-op, so every cleanup
// path may call it.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// List returns a point-in-time view of all sessions.
func (r *Registry) List() map[string]types.SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]types.SessionInfo, len(r.sessions))
	for id, c := range r.sessions {
		info := types.SessionInfo{PID: c.PID(), Status: "running"}
		if running, code := c.Poll(); !running {
			ec := code
			info.Status = "finished"
			info.ReturnCode = &ec
		}
		out[id] = info
	}
	return out
}

// CloseAll stops every tracked session so no child outlives the server.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	controllers := make([]*Controller, 0, len(r.sessions))
	for _, c := range r.sessions {
		controllers = append(controllers, c)
	}
	r.sessions = make(map[string]*Controller)
	r.mu.Unlock()

	// Shutdown waits out the graceful phase, so it runs outside the lock.
	for _, c := range controllers {
		c.Shutdown()
		c.Close()
	}
}
