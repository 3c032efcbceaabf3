package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf/v2"

	"github.com/sgaravatti/cantieri-docs/internal/entity"
	"github.com/sgaravatti/cantieri-docs/internal/repository"
)

// Service renders the per-site safety documentation report as a PDF.
type Service struct {
	sites   repository.SiteRepository
	workers repository.WorkerRepository
	docs    repository.DocumentRepository
	logger  *slog.Logger
}

func NewService(sites repository.SiteRepository, workers repository.WorkerRepository, docs repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{sites: sites, workers: workers, docs: docs, logger: logger}
}

// GenerateSiteReport writes an A4 report for the site: header, worker roster,
// then one section per worker listing their documents, plus unassigned
// documents at the end.
func (s *Service) GenerateSiteReport(ctx context.Context, siteID uuid.UUID, outPath string) error {
	start := time.Now()

	site, err := s.sites.GetByID(ctx, siteID)
	if err != nil {
		return fmt.Errorf("load site: %w", err)
	}
	workers, err := s.workers.ListBySite(ctx, siteID)
	if err != nil {
		return fmt.Errorf("load workers: %w", err)
	}
	docs, err := s.docs.ListBySite(ctx, siteID)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}

	byWorker := make(map[uuid.UUID][]*entity.Document)
	var unassigned []*entity.Document
	for _, d := range docs {
		if d.WorkerID != nil {
			byWorker[*d.WorkerID] = append(byWorker[*d.WorkerID], d)
		} else {
			unassigned = append(unassigned, d)
		}
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Documentazione sicurezza %s", site.Name), false)
	pdf.SetAuthor("cantieri-docs", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Documentazione di sicurezza")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 6, fmt.Sprintf("Cantiere: %s", site.Name))
	pdf.Ln(6)
	if site.Address != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Indirizzo: %s", site.Address))
		pdf.Ln(6)
	}
	if site.Client != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Committente: %s", site.Client))
		pdf.Ln(6)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generato il: %s", time.Now().Format("02/01/2006 15:04")))
	pdf.Ln(12)

	for _, w := range workers {
		s.writeWorkerSection(pdf, w, byWorker[w.ID])
		pdf.Ln(6)
	}

	if len(unassigned) > 0 {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.Cell(0, 8, "Documenti non assegnati")
		pdf.Ln(10)
		for _, d := range unassigned {
			s.writeDocumentLine(pdf, d)
		}
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}

	s.logger.Info("report.pdf.ok",
		"site_id", siteID.String(),
		"workers", len(workers),
		"documents", len(docs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *Service) writeWorkerSection(pdf *gofpdf.Fpdf, w *entity.Worker, docs []*entity.Document) {
	pdf.SetFont("Helvetica", "B", 14)
	header := w.FullName
	if w.Role != "" {
		header = fmt.Sprintf("%s (%s)", w.FullName, w.Role)
	}
	pdf.Cell(0, 8, header)
	pdf.Ln(10)

	if len(docs) == 0 {
		pdf.SetFont("Helvetica", "I", 12)
		pdf.MultiCell(0, 6, "Nessun documento caricato", "", "L", false)
		return
	}
	for _, d := range docs {
		s.writeDocumentLine(pdf, d)
	}
}

func (s *Service) writeDocumentLine(pdf *gofpdf.Fpdf, d *entity.Document) {
	pdf.SetFont("Helvetica", "", 12)

	line := fmt.Sprintf("- %s", d.DocType)
	if d.ExpiryDate != nil {
		line += fmt.Sprintf(", scadenza %s", d.ExpiryDate.Format("02/01/2006"))
	}
	if d.NeedsReview {
		line += " [DA VERIFICARE]"
	}
	pdf.MultiCell(0, 6, line, "", "L", false)
}
