package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lewtec/rotulador-video/internal/domain"
)

// ClassRepository implements domain.ClassRepository on sqlite
type ClassRepository struct {
	db *sql.DB
}

func NewClassRepository(db *sql.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// Save creates a class, or updates the color of the class with the same name
func (r *ClassRepository) Save(ctx context.Context, name string, color domain.Color) (*domain.Class, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrEmptyObjectName
	}
	_, err := r.db.ExecContext(ctx, `
insert into object_classes (name, name_key, color, created_at) values (?, ?, ?, ?)
on conflict(name_key) do update set color=excluded.color
	`, name, domain.NameKey(name), color.Hex(), time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("while saving class '%s': %w", name, err)
	}
	return r.GetByName(ctx, name)
}

// GetByName retrieves a class by case-insensitive name
func (r *ClassRepository) GetByName(ctx context.Context, name string) (*domain.Class, error) {
	row := r.db.QueryRowContext(ctx, `
select id, name, color, created_at from object_classes where name_key = ?
	`, domain.NameKey(name))
	class, err := scanClass(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return class, nil
}

// List retrieves all classes in creation order
func (r *ClassRepository) List(ctx context.Context) ([]*domain.Class, error) {
	rows, err := r.db.QueryContext(ctx, `select id, name, color, created_at from object_classes order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Class
	for rows.Next() {
		class, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, class)
	}
	return result, rows.Err()
}

// Delete removes a class by case-insensitive name
func (r *ClassRepository) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `delete from object_classes where name_key = ?`, domain.NameKey(name))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: class '%s'", ErrNotFound, name)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClass(row rowScanner) (*domain.Class, error) {
	var (
		class     domain.Class
		color     string
		createdAt int64
	)
	if err := row.Scan(&class.ID, &class.Name, &color, &createdAt); err != nil {
		return nil, err
	}
	c, err := domain.ParseColor(color)
	if err != nil {
		return nil, fmt.Errorf("while reading color of class '%s': %w", class.Name, err)
	}
	class.Color = c
	class.CreatedAt = time.UnixMilli(createdAt)
	return &class, nil
}

var _ domain.ClassRepository = (*ClassRepository)(nil)
