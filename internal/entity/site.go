package entity

import (
	"time"

	"github.com/google/uuid"
)

// Site represents a construction site (cantiere) for data transfer between layers.
type Site struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Address   string     `json:"address,omitempty"`
	Client    string     `json:"client,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
