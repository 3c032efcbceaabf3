package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sgaravatti/cantieri-docs/internal/config"
	"github.com/sgaravatti/cantieri-docs/internal/export"
	"github.com/sgaravatti/cantieri-docs/internal/llm"
	"github.com/sgaravatti/cantieri-docs/internal/llm/openai"
	"github.com/sgaravatti/cantieri-docs/internal/ocr"
	"github.com/sgaravatti/cantieri-docs/internal/pipeline"
	"github.com/sgaravatti/cantieri-docs/internal/report"
	"github.com/sgaravatti/cantieri-docs/internal/repository"
	"github.com/sgaravatti/cantieri-docs/internal/server"
	"github.com/sgaravatti/cantieri-docs/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	log := logger.Sugar()

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(slogger)

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, slogger)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		log.Fatalf("applying migrations: %v", err)
	}
	if err := repository.HealthCheck(ctx, db, cfg.Database.DialTimeout); err != nil {
		log.Fatalf("database health failed: %v", err)
	}
	log.Infow("database ready", "dsn_set", cfg.Database.DSN != "")

	files, err := storage.NewFileManager(cfg.DataDir, cfg.Server.MaxUploadBytes)
	if err != nil {
		log.Fatalf("init file manager: %v", err)
	}

	var recognizer ocr.Recognizer
	if cfg.OCR.Enabled {
		extractor := ocr.NewExtractor(ocr.Config{
			Tesseract:     cfg.OCR.Tesseract,
			Pdftoppm:      cfg.OCR.Pdftoppm,
			TesseractLang: cfg.OCR.TesseractLang,
			DPI:           cfg.OCR.DPI,
			MaxPages:      cfg.OCR.MaxPages,
			TessdataDir:   cfg.OCR.TessdataDir,
		}, slogger)
		recognizer = ocr.NewExtractorRecognizer(extractor, slogger)
	} else {
		log.Infow("ocr disabled, uploads get stub text")
		recognizer = ocr.NewStubRecognizer(slogger)
	}

	var extractor llm.FieldExtractor
	if cfg.LLM.APIKey != "" {
		extractor = openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, slogger)
	} else {
		log.Infow("no OPENAI_API_KEY, field extraction degrades to fallback only")
	}

	p := pipeline.New(slogger, pipeline.Config{
		MinConfidence: cfg.Extraction.MinConfidence,
	}, recognizer, extractor)

	sites := repository.NewSiteRepository(db, slogger)
	workers := repository.NewWorkerRepository(db, slogger)
	docs := repository.NewDocumentRepository(db, slogger)

	srv := server.NewServer(cfg, server.Deps{
		DB:        db,
		Sites:     sites,
		Workers:   workers,
		Documents: docs,
		Files:     files,
		Pipeline:  p,
		Export:    export.NewService(sites, workers, docs, slogger),
		Report:    report.NewService(sites, workers, docs, slogger),
	}, logger)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		if err != nil {
			log.Fatalf("http server: %v", err)
		}
	case <-ctx.Done():
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}
	log.Info("stopped.")
}
