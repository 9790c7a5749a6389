package types

import "time"

// Stamp is the created/updated pair embedded in every stored record.
// Times are always held in UTC.
type Stamp struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StampAt returns a Stamp created and last updated at t.
func StampAt(t time.Time) Stamp {
	t = t.UTC()
	return Stamp{CreatedAt: t, UpdatedAt: t}
}

// Touch moves UpdatedAt to t. Times before CreatedAt are clamped.
func (s *Stamp) Touch(t time.Time) {
	t = t.UTC()
	if t.Before(s.CreatedAt) {
		t = s.CreatedAt
	}
	s.UpdatedAt = t
}
