package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/lewtec/rotulador-video/internal/domain"
)

// ExportRepository implements domain.ExportRepository on sqlite
type ExportRepository struct {
	db *sql.DB
}

func NewExportRepository(db *sql.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create stores an export record, filling in UUID and CreatedAt when unset
func (r *ExportRepository) Create(ctx context.Context, rec *domain.ExportRecord) (*domain.ExportRecord, error) {
	out := *rec
	if out.UUID == "" {
		out.UUID = uuid.NewString()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now()
	}
	var endFrame sql.NullInt64
	if out.EndFrame != nil {
		endFrame = sql.NullInt64{Int64: int64(*out.EndFrame), Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
insert into exports (uuid, session_id, video_path, output_path, end_frame, images, annotations, categories, checksum, created_at)
values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, out.UUID, out.SessionID, out.VideoPath, out.OutputPath, endFrame,
		out.Images, out.Annotations, out.Categories, out.Checksum, out.CreatedAt.UnixMilli())
	if err != nil {
		return nil, err
	}
	out.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByUUID retrieves an export by its uuid
func (r *ExportRepository) GetByUUID(ctx context.Context, id string) (*domain.ExportRecord, error) {
	row := r.db.QueryRowContext(ctx, `
select id, uuid, session_id, video_path, output_path, end_frame, images, annotations, categories, checksum, created_at
from exports where uuid = ?
	`, id)
	rec, err := scanExport(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// List retrieves the most recent exports first. A limit <= 0 returns everything.
func (r *ExportRepository) List(ctx context.Context, limit int) ([]*domain.ExportRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
select id, uuid, session_id, video_path, output_path, end_frame, images, annotations, categories, checksum, created_at
from exports order by created_at desc, id desc limit ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.ExportRecord
	for rows.Next() {
		rec, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Count returns the total number of exports
func (r *ExportRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `select count(*) from exports`).Scan(&n)
	return n, err
}

func scanExport(row rowScanner) (*domain.ExportRecord, error) {
	var (
		rec       domain.ExportRecord
		endFrame  sql.NullInt64
		createdAt int64
	)
	err := row.Scan(&rec.ID, &rec.UUID, &rec.SessionID, &rec.VideoPath, &rec.OutputPath, &endFrame,
		&rec.Images, &rec.Annotations, &rec.Categories, &rec.Checksum, &createdAt)
	if err != nil {
		return nil, err
	}
	if endFrame.Valid {
		f := int(endFrame.Int64)
		rec.EndFrame = &f
	}
	rec.CreatedAt = time.UnixMilli(createdAt)
	return &rec, nil
}

var _ domain.ExportRepository = (*ExportRepository)(nil)
