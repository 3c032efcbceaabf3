package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/sgaravatti/cantieri-docs/internal/entity"
	"github.com/sgaravatti/cantieri-docs/internal/repository"
)

// Service is a tiny façade over repositories that produces the XLSX document
// register for a site.
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

// ExportSiteRegisterXLSX returns an XLSX workbook (as bytes) listing every
// document of the site with its extracted fields and review state.
func (s *Service) ExportSiteRegisterXLSX(ctx context.Context, siteID uuid.UUID) ([]byte, error) {
	start := time.Now()

	site, err := s.sites.GetByID(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("load site: %w", err)
	}
	docs, err := s.docs.ListBySite(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	workersByID, err := s.workerIndex(ctx, siteID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Documenti"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Lavoratore",
		"Tipo Documento",
		"Intestatario",
		"Codice Fiscale",
		"Data Rilascio",
		"Data Scadenza",
		"Confidenza",
		"Da Verificare",
		"File",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, d := range docs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		workerName := ""
		if d.WorkerID != nil {
			if w, ok := workersByID[*d.WorkerID]; ok {
				workerName = w.FullName
			}
		}

		write(1, workerName)
		write(2, d.DocType)
		write(3, deref(d.HolderName))
		write(4, deref(d.TaxCode))
		write(5, fmtDate(d.IssueDate))
		write(6, fmtDate(d.ExpiryDate))
		write(7, fmt.Sprintf("%.2f", d.Confidence))
		if d.NeedsReview {
			write(8, "SI")
		} else {
			write(8, "")
		}
		write(9, d.OriginalName)

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 24) // worker
	_ = f.SetColWidth(sheet, "B", "B", 22) // type
	_ = f.SetColWidth(sheet, "C", "C", 24) // holder
	_ = f.SetColWidth(sheet, "D", "D", 20) // tax code
	_ = f.SetColWidth(sheet, "E", "F", 14) // dates
	_ = f.SetColWidth(sheet, "G", "H", 12)
	_ = f.SetColWidth(sheet, "I", "I", 40) // file

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"site_id", siteID.String(),
		"site", site.Name,
		"rows", len(docs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) workerIndex(ctx context.Context, siteID uuid.UUID) (map[uuid.UUID]*entity.Worker, error) {
	list, err := s.workers.ListBySite(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("query workers: %w", err)
	}
	idx := make(map[uuid.UUID]*entity.Worker, len(list))
	for _, w := range list {
		idx[w.ID] = w
	}
	return idx, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
