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

// CreateWorkerRequest wraps parameters for registering a worker on a site.
type CreateWorkerRequest struct {
	SiteID   uuid.UUID
	FullName string
	TaxCode  string
	Role     string
}

type WorkerRepository interface {
	Create(ctx context.Context, req CreateWorkerRequest) (*entity.Worker, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Worker, error)
	ListBySite(ctx context.Context, siteID uuid.UUID) ([]*entity.Worker, error)
	Update(ctx context.Context, id uuid.UUID, req CreateWorkerRequest) (*entity.Worker, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type workerRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewWorkerRepository(db *DB, logger *slog.Logger) WorkerRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &workerRepository{db: db, logger: logger}
}

const workerColumns = `id, site_id, full_name, tax_code, role, created_at, updated_at`

func (r *workerRepository) Create(ctx context.Context, req CreateWorkerRequest) (*entity.Worker, error) {
	now := time.Now().UTC()
	w := &entity.Worker{
		ID:        uuid.New(),
		SiteID:    req.SiteID,
		FullName:  req.FullName,
		TaxCode:   req.TaxCode,
		Role:      req.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q := r.db.Rebind(`INSERT INTO workers (` + workerColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q,
		w.ID.String(), w.SiteID.String(), w.FullName, w.TaxCode, w.Role, fmtTime(now), fmtTime(now))
	if err != nil {
		r.logger.Error("failed to create worker", "site_id", req.SiteID, "error", err)
		return nil, common.WrapError(err, "create worker")
	}
	return w, nil
}

func (r *workerRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Worker, error) {
	q := r.db.Rebind(`SELECT ` + workerColumns + ` FROM workers WHERE id = ?`)
	w, err := scanWorker(r.db.QueryRowContext(ctx, q, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get worker", "worker_id", id, "error", err)
		return nil, err
	}
	return w, nil
}

func (r *workerRepository) ListBySite(ctx context.Context, siteID uuid.UUID) ([]*entity.Worker, error) {
	q := r.db.Rebind(`SELECT ` + workerColumns + ` FROM workers WHERE site_id = ? ORDER BY full_name`)
	rows, err := r.db.QueryContext(ctx, q, siteID.String())
	if err != nil {
		r.logger.Error("failed to list workers", "site_id", siteID, "error", err)
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *workerRepository) Update(ctx context.Context, id uuid.UUID, req CreateWorkerRequest) (*entity.Worker, error) {
	now := time.Now().UTC()
	q := r.db.Rebind(`UPDATE workers SET full_name = ?, tax_code = ?, role = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, req.FullName, req.TaxCode, req.Role, fmtTime(now), id.String())
	if err != nil {
		r.logger.Error("failed to update worker", "worker_id", id, "error", err)
		return nil, common.WrapError(err, "update worker")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, common.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *workerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q := r.db.Rebind(`DELETE FROM workers WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, id.String())
	if err != nil {
		r.logger.Error("failed to delete worker", "worker_id", id, "error", err)
		return common.WrapError(err, "delete worker")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func scanWorker(row rowScanner) (*entity.Worker, error) {
	var (
		idStr, siteStr, fullName, taxCode, role string
		createdAt, updatedAt                    string
	)
	if err := row.Scan(&idStr, &siteStr, &fullName, &taxCode, &role, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse worker id: %w", err)
	}
	siteID, err := uuid.Parse(siteStr)
	if err != nil {
		return nil, fmt.Errorf("parse worker site id: %w", err)
	}
	return &entity.Worker{
		ID:        id,
		SiteID:    siteID,
		FullName:  fullName,
		TaxCode:   taxCode,
		Role:      role,
		CreatedAt: parseTime(createdAt),
		UpdatedAt: parseTime(updatedAt),
	}, nil
}
