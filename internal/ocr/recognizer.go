package ocr

import (
	"context"
	"fmt"
	"log/slog"
)

// RawText is the outcome of text recognition. IsStub marks that no real OCR
// ran (capability absent or the provider failed); it must propagate so
// downstream confidence is not overstated.
type RawText struct {
	Content string
	IsStub  bool
}

// Recognizer turns an uploaded document into raw text. Implementations never
// return an error: recognition degrades to a stub instead of failing the
// request, and no retries are attempted so upload latency stays bounded.
type Recognizer interface {
	Recognize(ctx context.Context, storedPath, originalName string) RawText
}

// StubText is the deterministic placeholder produced when OCR did not run.
func StubText(originalName string) string {
	return fmt.Sprintf("[no OCR performed] file %q was stored but its text was not recognized", originalName)
}

type textExtractor interface {
	Extract(ctx context.Context, path string) (ExtractionResult, error)
}

// ExtractorRecognizer adapts the exec-based Extractor to the Recognizer
// contract, converting any extraction failure into a stub result.
type ExtractorRecognizer struct {
	extractor textExtractor
	logger    *slog.Logger
}

func NewExtractorRecognizer(e textExtractor, logger *slog.Logger) *ExtractorRecognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractorRecognizer{extractor: e, logger: logger}
}

func (r *ExtractorRecognizer) Recognize(ctx context.Context, storedPath, originalName string) RawText {
	res, err := r.extractor.Extract(ctx, storedPath)
	if err != nil {
		r.logger.Warn("ocr.recognize.failed",
			"path", storedPath,
			"original_name", originalName,
			"error", err,
		)
		return RawText{Content: StubText(originalName), IsStub: true}
	}
	r.logger.Info("ocr.recognize.ok",
		"path", storedPath,
		"method", res.Method,
		"pages", res.Pages,
		"bytes", len(res.Text),
	)
	return RawText{Content: res.Text}
}

// StubRecognizer is the Unavailable variant, selected at startup when OCR is
// disabled by configuration.
type StubRecognizer struct {
	logger *slog.Logger
}

func NewStubRecognizer(logger *slog.Logger) *StubRecognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubRecognizer{logger: logger}
}

func (r *StubRecognizer) Recognize(_ context.Context, _ string, originalName string) RawText {
	r.logger.Debug("ocr.recognize.stub", "original_name", originalName)
	return RawText{Content: StubText(originalName), IsStub: true}
}
