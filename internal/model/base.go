package model

import "time"

type (
	// A Model is a record that can be persisted by the database client.
	Model interface {
		GetID() string
		SetID(id string)
		SetCreatedAt(t time.Time)
		SetUpdatedAt(t time.Time)
	}

	// Base holds the fields shared by all the catalog records.
	Base struct {
		ID        string     `json:"id"         storm:"id"`
		CreatedAt *time.Time `json:"created_at"`
		UpdatedAt *time.Time `json:"updated_at"`
	}
)

// GetID returns the record's identifier.
func (m *Base) GetID() string {
	return m.ID
}

// SetID sets the record's identifier.
func (m *Base) SetID(id string) {
	m.ID = id
}

// SetCreatedAt sets the creation time.
func (m *Base) SetCreatedAt(t time.Time) {
	m.CreatedAt = &t
}

// SetUpdatedAt sets the last update time.
func (m *Base) SetUpdatedAt(t time.Time) {
	m.UpdatedAt = &t
}
