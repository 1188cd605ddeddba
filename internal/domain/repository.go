package domain

import (
	"context"
	"time"
)

// Class is an object class remembered across sessions
type Class struct {
	ID        int64
	Name      string
	Color     Color
	CreatedAt time.Time
}

// ClassRepository stores the catalog of object classes an operator has used
type ClassRepository interface {
	// Save inserts a class, or refreshes the color of an existing one with the same case-insensitive name
	Save(ctx context.Context, name string, color Color) (*Class, error)

	// List returns every class in creation order
	List(ctx context.Context) ([]*Class, error)

	// Delete removes a class by case-insensitive name
	Delete(ctx context.Context, name string) error
}

// ExportRecord is the history entry for a dataset written to disk
type ExportRecord struct {
	ID          int64
	UUID        string
	SessionID   string
	VideoPath   string
	OutputPath  string
	EndFrame    *int
	Images      int
	Annotations int
	Categories  int
	Checksum    string
	CreatedAt   time.Time
}

// ExportRepository stores export history
type ExportRepository interface {
	Create(ctx context.Context, rec *ExportRecord) (*ExportRecord, error)

	// List returns the most recent exports first
	List(ctx context.Context, limit int) ([]*ExportRecord, error)

	Count(ctx context.Context) (int64, error)
}
