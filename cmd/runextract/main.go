package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/sgaravatti/cantieri-docs/internal/config"
	"github.com/sgaravatti/cantieri-docs/internal/llm"
	"github.com/sgaravatti/cantieri-docs/internal/llm/openai"
	"github.com/sgaravatti/cantieri-docs/internal/ocr"
	"github.com/sgaravatti/cantieri-docs/internal/pipeline"
)

// runextract runs the extraction pipeline on one local file and prints the
// merged result as JSON. Useful to tune prompts and OCR flags without going
// through the HTTP surface.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runextract <path-to-document>")
		os.Exit(2)
	}
	path, err := filepath.Abs(os.Args[1])
	if err != nil {
		logger.Error("resolve path", "arg", os.Args[1], "error", err)
		os.Exit(2)
	}
	if _, err := os.Stat(path); err != nil {
		logger.Error("stat file", "path", path, "error", err)
		os.Exit(1)
	}

	cfg := config.LoadConfig()

	var recognizer ocr.Recognizer
	if cfg.OCR.Enabled {
		recognizer = ocr.NewExtractorRecognizer(ocr.NewExtractor(ocr.Config{
			Tesseract:     cfg.OCR.Tesseract,
			Pdftoppm:      cfg.OCR.Pdftoppm,
			TesseractLang: cfg.OCR.TesseractLang,
			DPI:           cfg.OCR.DPI,
			MaxPages:      cfg.OCR.MaxPages,
			TessdataDir:   cfg.OCR.TessdataDir,
		}, logger), logger)
	} else {
		recognizer = ocr.NewStubRecognizer(logger)
	}

	var extractor llm.FieldExtractor
	if cfg.LLM.APIKey != "" {
		extractor = openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
	}

	p := pipeline.New(logger, pipeline.Config{
		MinConfidence: cfg.Extraction.MinConfidence,
	}, recognizer, extractor)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	res := p.Extract(ctx, pipeline.Document{
		StoredPath:   path,
		OriginalName: filepath.Base(path),
	})

	out := map[string]any{
		"file":         filepath.Base(path),
		"extracted":    res.Fields,
		"confidence":   res.Fields.ModelConfidence,
		"ocr_stub":     res.OCRStub,
		"needs_review": res.NeedsReview,
		"elapsed_ms":   time.Since(start).Milliseconds(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
}
