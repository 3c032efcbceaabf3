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

// CreateSiteRequest wraps parameters for creating a site.
type CreateSiteRequest struct {
	Name      string
	Address   string
	Client    string
	StartDate *time.Time
	Notes     string
}

type SiteRepository interface {
	Create(ctx context.Context, req CreateSiteRequest) (*entity.Site, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Site, error)
	List(ctx context.Context) ([]*entity.Site, error)
	Update(ctx context.Context, id uuid.UUID, req CreateSiteRequest) (*entity.Site, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type siteRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewSiteRepository(db *DB, logger *slog.Logger) SiteRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &siteRepository{db: db, logger: logger}
}

const siteColumns = `id, name, address, client, start_date, notes, created_at, updated_at`

func (r *siteRepository) Create(ctx context.Context, req CreateSiteRequest) (*entity.Site, error) {
	now := time.Now().UTC()
	s := &entity.Site{
		ID:        uuid.New(),
		Name:      req.Name,
		Address:   req.Address,
		Client:    req.Client,
		StartDate: req.StartDate,
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q := r.db.Rebind(`INSERT INTO sites (` + siteColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q,
		s.ID.String(), s.Name, s.Address, s.Client, fmtDatePtr(s.StartDate), s.Notes, fmtTime(now), fmtTime(now))
	if err != nil {
		r.logger.Error("failed to create site", "name", req.Name, "error", err)
		return nil, common.WrapError(err, "create site")
	}
	return s, nil
}

func (r *siteRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Site, error) {
	q := r.db.Rebind(`SELECT ` + siteColumns + ` FROM sites WHERE id = ?`)
	s, err := scanSite(r.db.QueryRowContext(ctx, q, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get site", "site_id", id, "error", err)
		return nil, err
	}
	return s, nil
}

func (r *siteRepository) List(ctx context.Context) ([]*entity.Site, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+siteColumns+` FROM sites ORDER BY created_at DESC`)
	if err != nil {
		r.logger.Error("failed to list sites", "error", err)
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *siteRepository) Update(ctx context.Context, id uuid.UUID, req CreateSiteRequest) (*entity.Site, error) {
	now := time.Now().UTC()
	q := r.db.Rebind(`UPDATE sites SET name = ?, address = ?, client = ?, start_date = ?, notes = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q,
		req.Name, req.Address, req.Client, fmtDatePtr(req.StartDate), req.Notes, fmtTime(now), id.String())
	if err != nil {
		r.logger.Error("failed to update site", "site_id", id, "error", err)
		return nil, common.WrapError(err, "update site")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, common.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *siteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q := r.db.Rebind(`DELETE FROM sites WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, id.String())
	if err != nil {
		r.logger.Error("failed to delete site", "site_id", id, "error", err)
		return common.WrapError(err, "delete site")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*entity.Site, error) {
	var (
		idStr, name, address, client, notes string
		startDate                           sql.NullString
		createdAt, updatedAt                string
	)
	if err := row.Scan(&idStr, &name, &address, &client, &startDate, &notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse site id: %w", err)
	}
	return &entity.Site{
		ID:        id,
		Name:      name,
		Address:   address,
		Client:    client,
		StartDate: parseDatePtr(startDate),
		Notes:     notes,
		CreatedAt: parseTime(createdAt),
		UpdatedAt: parseTime(updatedAt),
	}, nil
}
