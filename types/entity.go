// Package types holds small building blocks shared by Warden's records.
package types

import "time"

// Entity carries creation and update timestamps in UTC.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity returns an Entity stamped with the current time.
func NewEntity() Entity {
	return EntityAt(time.Now())
}

// EntityAt returns an Entity stamped with t.
func EntityAt(t time.Time) Entity {
	t = t.UTC()
	return Entity{CreatedAt: t, UpdatedAt: t}
}

// Touch sets UpdatedAt to t, keeping CreatedAt.
func (e *Entity) Touch(t time.Time) {
	e.UpdatedAt = t.UTC()
}
