package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sgaravatti/cantieri-docs/internal/config"
	"github.com/sgaravatti/cantieri-docs/internal/export"
	"github.com/sgaravatti/cantieri-docs/internal/pipeline"
	"github.com/sgaravatti/cantieri-docs/internal/report"
	"github.com/sgaravatti/cantieri-docs/internal/repository"
	"github.com/sgaravatti/cantieri-docs/internal/storage"
)

// Deps carries the wired application services into the HTTP layer.
type Deps struct {
	DB        *repository.DB
	Sites     repository.SiteRepository
	Workers   repository.WorkerRepository
	Documents repository.DocumentRepository
	Files     *storage.FileManager
	Pipeline  *pipeline.Pipeline
	Export    *export.Service
	Report    *report.Service
}

type Server struct {
	engine *gin.Engine
	srv    *http.Server
	log    *zap.Logger
}

func NewServer(cfg *config.Config, deps Deps, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(log))
	engine.Use(MaxBodySize(cfg.Server.MaxUploadBytes))
	engine.Use(CORS(cfg.Server.AllowedOrigins))

	api := NewAPI(cfg, deps)
	registerRoutes(engine, api)

	return &Server{
		engine: engine,
		srv: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
