package session

import "time"

// SetClock replaces the time source used for UpdatedAt.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}
