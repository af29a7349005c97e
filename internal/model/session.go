package model

import (
	"fmt"
	"time"
)

// Session lifecycle states. A session moves ACTIVE -> STOPPED exactly once.
const (
	StatusActive  = "ACTIVE"
	StatusStopped = "STOPPED"
)

// Session is one monitored unit of browser-driven execution, from start to
// stop. The orchestrator owns the session for its lifetime; Stop is called
// under the orchestrator's lock.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`
	Status    string    `json:"status"`
}

// NewSession returns an ACTIVE session starting now.
func NewSession(id, name string) *Session {
	return &Session{
		ID:        id,
		Name:      name,
		StartTime: time.Now(),
		Status:    StatusActive,
	}
}

// IsActive reports whether the session has not been stopped.
func (s *Session) IsActive() bool {
	return s.Status == StatusActive
}

// Stop marks the session terminal and stamps the end time.
func (s *Session) Stop() {
	s.Status = StatusStopped
	s.EndTime = time.Now()
}

func (s *Session) String() string {
	return fmt.Sprintf("Session{id=%s, name=%s, status=%s}", s.ID, s.Name, s.Status)
}
