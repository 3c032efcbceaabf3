package llm

import "context"

// DefaultConfidence is used when structured extraction succeeds but the model
// did not self-score.
const DefaultConfidence = 0.7

// DocumentFields is the normalized shape we want from the LLM.
type DocumentFields struct {
	DocType         string  `json:"doc_type"`               // closed enum, see constants.DocType
	HolderName      string  `json:"holder_name,omitempty"`  // worker named on the document
	TaxCode         string  `json:"tax_code,omitempty"`     // codice fiscale, 16 chars
	IssueDate       string  `json:"issue_date,omitempty"`   // YYYY-MM-DD
	ExpiryDate      string  `json:"expiry_date,omitempty"`  // YYYY-MM-DD
	ModelConfidence float32 `json:"confidence,omitempty"`   // model self-assessment (0..1)
}

type ExtractRequest struct {
	OCRText      string
	FilenameHint string
	SiteHint     string // site name, category context only
}

// FieldExtractor is the interface the pipeline depends on.
// The raw JSON returned alongside the fields is kept for diagnostics.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (DocumentFields, []byte /*rawJSON*/, error)
}
