package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sgaravatti/cantieri-docs/internal/common"
	"github.com/sgaravatti/cantieri-docs/internal/entity"
)

// CreateDocumentRequest wraps the persisted outcome of an upload and its
// extraction. Dates arrive as ISO strings straight from the pipeline; invalid
// or empty strings are stored as NULL.
type CreateDocumentRequest struct {
	SiteID       uuid.UUID
	WorkerID     *uuid.UUID
	FileName     string
	OriginalName string
	StoredPath   string
	DocType      string
	HolderName   string
	TaxCode      string
	IssueDate    string
	ExpiryDate   string
	Confidence   float32
	OCRText      string
	OCRStub      bool
	NeedsReview  bool
	Status       string
}

// ReviewUpdate carries the manually corrected fields of a flagged document.
type ReviewUpdate struct {
	WorkerID   *uuid.UUID
	DocType    string
	HolderName string
	TaxCode    string
	IssueDate  string
	ExpiryDate string
}

type DocumentRepository interface {
	Create(ctx context.Context, req CreateDocumentRequest) (*entity.Document, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	ListBySite(ctx context.Context, siteID uuid.UUID) ([]*entity.Document, error)
	ListExpiring(ctx context.Context, siteID uuid.UUID, before time.Time) ([]*entity.Document, error)
	Review(ctx context.Context, id uuid.UUID, upd ReviewUpdate) (*entity.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewDocumentRepository(db *DB, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepository{db: db, logger: logger}
}

const documentColumns = `id, site_id, worker_id, file_name, original_name, stored_path,
	doc_type, holder_name, tax_code, issue_date, expiry_date,
	confidence, ocr_text, ocr_stub, needs_review, status, created_at, updated_at`

func (r *documentRepository) Create(ctx context.Context, req CreateDocumentRequest) (*entity.Document, error) {
	now := time.Now().UTC()
	id := uuid.New()

	var workerID any
	if req.WorkerID != nil {
		workerID = req.WorkerID.String()
	}

	q := r.db.Rebind(`INSERT INTO documents (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q,
		id.String(), req.SiteID.String(), workerID,
		req.FileName, req.OriginalName, req.StoredPath,
		req.DocType, nullableStr(req.HolderName), nullableStr(req.TaxCode),
		nullableDate(req.IssueDate), nullableDate(req.ExpiryDate),
		req.Confidence, req.OCRText, boolToInt(req.OCRStub), boolToInt(req.NeedsReview),
		req.Status, fmtTime(now), fmtTime(now))
	if err != nil {
		r.logger.Error("failed to create document", "site_id", req.SiteID, "error", err)
		return nil, common.WrapError(err, "create document")
	}
	return r.GetByID(ctx, id)
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	q := r.db.Rebind(`SELECT ` + documentColumns + ` FROM documents WHERE id = ?`)
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get document", "document_id", id, "error", err)
		return nil, err
	}
	return d, nil
}

func (r *documentRepository) ListBySite(ctx context.Context, siteID uuid.UUID) ([]*entity.Document, error) {
	q := r.db.Rebind(`SELECT ` + documentColumns + ` FROM documents WHERE site_id = ? ORDER BY created_at DESC`)
	return r.queryList(ctx, q, siteID.String())
}

func (r *documentRepository) ListExpiring(ctx context.Context, siteID uuid.UUID, before time.Time) ([]*entity.Document, error) {
	q := r.db.Rebind(`SELECT ` + documentColumns + ` FROM documents
		WHERE site_id = ? AND expiry_date IS NOT NULL AND expiry_date <= ?
		ORDER BY expiry_date`)
	return r.queryList(ctx, q, siteID.String(), before.Format(dateLayout))
}

func (r *documentRepository) queryList(ctx context.Context, query string, args ...any) ([]*entity.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list documents", "error", err)
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Review overwrites the extracted fields with operator corrections and clears
// the review flag.
func (r *documentRepository) Review(ctx context.Context, id uuid.UUID, upd ReviewUpdate) (*entity.Document, error) {
	now := time.Now().UTC()

	var workerID any
	if upd.WorkerID != nil {
		workerID = upd.WorkerID.String()
	}

	q := r.db.Rebind(`UPDATE documents SET
		worker_id = ?, doc_type = ?, holder_name = ?, tax_code = ?,
		issue_date = ?, expiry_date = ?, needs_review = 0, status = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q,
		workerID, upd.DocType, nullableStr(upd.HolderName), nullableStr(upd.TaxCode),
		nullableDate(upd.IssueDate), nullableDate(upd.ExpiryDate),
		"EXTRACTED", fmtTime(now), id.String())
	if err != nil {
		r.logger.Error("failed to review document", "document_id", id, "error", err)
		return nil, common.WrapError(err, "review document")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, common.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q := r.db.Rebind(`DELETE FROM documents WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, id.String())
	if err != nil {
		r.logger.Error("failed to delete document", "document_id", id, "error", err)
		return common.WrapError(err, "delete document")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		idStr, siteStr                       string
		workerStr                            sql.NullString
		fileName, originalName, storedPath   string
		docType                              string
		holderName, taxCode                  sql.NullString
		issueDate, expiryDate                sql.NullString
		confidence                           float64
		ocrText                              string
		ocrStub, needsReview                 int
		status, createdAt, updatedAt         string
	)
	err := row.Scan(&idStr, &siteStr, &workerStr, &fileName, &originalName, &storedPath,
		&docType, &holderName, &taxCode, &issueDate, &expiryDate,
		&confidence, &ocrText, &ocrStub, &needsReview, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse document id: %w", err)
	}
	siteID, err := uuid.Parse(siteStr)
	if err != nil {
		return nil, fmt.Errorf("parse document site id: %w", err)
	}
	var workerID *uuid.UUID
	if workerStr.Valid && workerStr.String != "" {
		w, err := uuid.Parse(workerStr.String)
		if err != nil {
			return nil, fmt.Errorf("parse document worker id: %w", err)
		}
		workerID = &w
	}

	return &entity.Document{
		ID:           id,
		SiteID:       siteID,
		WorkerID:     workerID,
		FileName:     fileName,
		OriginalName: originalName,
		StoredPath:   storedPath,
		DocType:      docType,
		HolderName:   strPtr(holderName),
		TaxCode:      strPtr(taxCode),
		IssueDate:    parseDatePtr(issueDate),
		ExpiryDate:   parseDatePtr(expiryDate),
		Confidence:   float32(confidence),
		OCRText:      ocrText,
		OCRStub:      ocrStub != 0,
		NeedsReview:  needsReview != 0,
		Status:       status,
		CreatedAt:    parseTime(createdAt),
		UpdatedAt:    parseTime(updatedAt),
	}, nil
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableDate stores only well-formed ISO dates; anything else becomes NULL
// rather than polluting the expiry index.
func nullableDate(s string) any {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
