package constants

// DocStatus is the canonical status for rows in documents.
type DocStatus string

// Stable values (store these exact strings in DB).
const (
	DocStatusUploaded    DocStatus = "UPLOADED"     // file stored, extraction not yet run
	DocStatusExtracted   DocStatus = "EXTRACTED"    // pipeline completed
	DocStatusNeedsReview DocStatus = "NEEDS_REVIEW" // pipeline completed, low confidence or gaps
)
