package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document represents an uploaded safety document and its extraction outcome.
type Document struct {
	ID           uuid.UUID  `json:"id"`
	SiteID       uuid.UUID  `json:"site_id"`
	WorkerID     *uuid.UUID `json:"worker_id,omitempty"`
	FileName     string     `json:"file_name"`     // stored (sanitized, unique) name
	OriginalName string     `json:"original_name"` // caller-supplied name, display only
	StoredPath   string     `json:"stored_path"`
	DocType      string     `json:"doc_type"`
	HolderName   *string    `json:"holder_name,omitempty"`
	TaxCode      *string    `json:"tax_code,omitempty"`
	IssueDate    *time.Time `json:"issue_date,omitempty"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	Confidence   float32    `json:"confidence"`
	OCRText      string     `json:"ocr_text,omitempty"`
	OCRStub      bool       `json:"ocr_stub"`
	NeedsReview  bool       `json:"needs_review"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
