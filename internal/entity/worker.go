package entity

import (
	"time"

	"github.com/google/uuid"
)

// Worker represents a worker assigned to a site.
type Worker struct {
	ID        uuid.UUID `json:"id"`
	SiteID    uuid.UUID `json:"site_id"`
	FullName  string    `json:"full_name"`
	TaxCode   string    `json:"tax_code,omitempty"` // codice fiscale
	Role      string    `json:"role,omitempty"`     // mansione
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
