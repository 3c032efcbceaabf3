// Package pipeline coordinates OCR, structured LLM extraction, and the
// deterministic date fallback into a single best-effort result per uploaded
// document. The pipeline has no failure path: provider errors degrade the
// result instead of surfacing, because a partially-filled, low-confidence
// record is more useful to a reviewer than a hard error on a flaky third
// party.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/sgaravatti/cantieri-docs/constants"
	"github.com/sgaravatti/cantieri-docs/internal/fallback"
	"github.com/sgaravatti/cantieri-docs/internal/llm"
	"github.com/sgaravatti/cantieri-docs/internal/ocr"
)

// Document is the request-scoped handle for one uploaded file. Created when
// the caller accepts an inbound file, immutable afterwards; the pipeline
// never deletes or rewrites the stored bytes.
type Document struct {
	StoredPath   string
	OriginalName string
}

// Result is what every extraction returns, however degraded.
type Result struct {
	Fields      llm.DocumentFields
	RawText     string
	OCRStub     bool
	NeedsReview bool
}

// Config holds thresholds and behavior flags for the pipeline.
type Config struct {
	MinConfidence float32 // below this the record is flagged for review, default 0.60
}

type Pipeline struct {
	Logger     *slog.Logger
	Cfg        Config
	Recognizer ocr.Recognizer
	Extractor  llm.FieldExtractor // nil when the capability is not configured
}

func New(logger *slog.Logger, cfg Config, rec ocr.Recognizer, fe llm.FieldExtractor) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.60
	}
	return &Pipeline{Logger: logger, Cfg: cfg, Recognizer: rec, Extractor: fe}
}

// Extract runs recognize → structured extract → fallback merge and returns a
// merged record. It always returns normally; see package comment.
func (p *Pipeline) Extract(ctx context.Context, doc Document) Result {
	raw := p.Recognizer.Recognize(ctx, doc.StoredPath, doc.OriginalName)

	// Base result: either the extractor's record or an empty unknown one.
	// Nothing is fabricated on failure: confidence stays 0, type stays altro.
	base := llm.DocumentFields{DocType: string(constants.Altro)}
	if p.Extractor != nil {
		fields, _, err := p.Extractor.ExtractFields(ctx, llm.ExtractRequest{
			OCRText:      raw.Content,
			FilenameHint: doc.OriginalName,
		})
		if err != nil {
			p.Logger.Warn("pipeline.extract.llm_failed",
				"file", doc.OriginalName, "error", err)
		} else {
			base = fields
		}
	} else {
		p.Logger.Debug("pipeline.extract.llm_not_configured", "file", doc.OriginalName)
	}

	// The fallback only fills gaps: a value the extractor produced is never
	// overwritten, and a successful backfill does not raise confidence — a
	// positional heuristic is a weaker signal, not corroboration.
	scanned := fallback.ScanDates(raw.Content)
	if base.IssueDate == "" {
		base.IssueDate = scanned.IssueDate
	}
	if base.ExpiryDate == "" {
		base.ExpiryDate = scanned.ExpiryDate
	}

	res := Result{
		Fields:      base,
		RawText:     raw.Content,
		OCRStub:     raw.IsStub,
		NeedsReview: p.needsReview(base),
	}

	p.Logger.Info("pipeline.extract.done",
		"file", doc.OriginalName,
		"doc_type", base.DocType,
		"issue_date", base.IssueDate,
		"expiry_date", base.ExpiryDate,
		"confidence", base.ModelConfidence,
		"ocr_stub", raw.IsStub,
		"needs_review", res.NeedsReview,
	)
	return res
}

func (p *Pipeline) needsReview(f llm.DocumentFields) bool {
	if f.DocType == string(constants.Altro) {
		return true
	}
	if f.HolderName == "" || f.IssueDate == "" && f.ExpiryDate == "" {
		return true
	}
	return f.ModelConfidence < p.Cfg.MinConfidence
}
