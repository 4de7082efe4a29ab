package serverstate

import (
	"sync"
	"time"
)

// Server status values.
const (
	StatusNotReady = "not_ready"
	StatusReady    = "ready"
	StatusDraining = "draining"
)

// State holds the server status and draining flag. All fields are updated
// together so callers always observe a consistent snapshot.
type State struct {
	Status   string    `json:"status"`
	Mode     string    `json:"mode,omitempty"`
	Draining bool      `json:"draining"`
	Since    time.Time `json:"since"`
}

var (
	mu      sync.RWMutex
	current = State{Status: StatusNotReady, Since: time.Now()}
)

// Load returns a snapshot of the current state.
func Load() State {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func update(fn func(*State)) {
	mu.Lock()
	defer mu.Unlock()
	prev := current.Status
	fn(&current)
	if current.Status != prev {
		current.Since = time.Now()
	}
}

// SetState updates the server status string.
func SetState(status string) {
	update(func(s *State) { s.Status = status })
}

// SetMode records the transport mode the server was started in.
func SetMode(mode string) {
	update(func(s *State) { s.Mode = mode })
}

// GetState returns the current server status.
func GetState() string {
	return Load().Status
}

// StartDrain marks the server as draining.
func StartDrain() {
	update(func(s *State) {
		s.Draining = true
		s.Status = StatusDraining
	})
}

// IsDraining reports whether the server is draining.
func IsDraining() bool {
	return Load().Draining
}

// Reset restores the initial not_ready state.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = State{Status: StatusNotReady, Since: time.Now()}
}
