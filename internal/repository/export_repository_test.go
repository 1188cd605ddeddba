package repository

import (
	"context"
	"testing"
	"time"

	"github.com/lewtec/rotulador-video/internal/domain"
)

func TestExportRepository_Create(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewExportRepository(db)
	ctx := context.Background()

	t.Run("full export", func(t *testing.T) {
		rec, err := repo.Create(ctx, &domain.ExportRecord{
			SessionID:   "session-1",
			VideoPath:   "/videos/blocks.mp4",
			OutputPath:  "/out/blocks.json",
			Images:      15,
			Annotations: 15,
			Categories:  1,
			Checksum:    "abc",
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if rec.ID == 0 {
			t.Error("Expected non-zero ID")
		}
		if rec.UUID == "" {
			t.Error("Expected UUID to be assigned")
		}
		if rec.CreatedAt.IsZero() {
			t.Error("CreatedAt should not be zero")
		}

		got, err := repo.GetByUUID(ctx, rec.UUID)
		if err != nil {
			t.Fatalf("GetByUUID() error = %v", err)
		}
		if got == nil {
			t.Fatal("GetByUUID() returned nil")
		}
		if got.EndFrame != nil {
			t.Errorf("EndFrame = %v, want nil", *got.EndFrame)
		}
		if got.Images != 15 || got.Checksum != "abc" || got.VideoPath != "/videos/blocks.mp4" {
			t.Errorf("GetByUUID() = %+v", got)
		}
	})

	t.Run("partial export keeps end frame", func(t *testing.T) {
		end := 9
		rec, err := repo.Create(ctx, &domain.ExportRecord{SessionID: "session-1", EndFrame: &end, Checksum: "def"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		got, err := repo.GetByUUID(ctx, rec.UUID)
		if err != nil {
			t.Fatalf("GetByUUID() error = %v", err)
		}
		if got.EndFrame == nil || *got.EndFrame != 9 {
			t.Errorf("EndFrame = %v, want 9", got.EndFrame)
		}
	})

	t.Run("unknown uuid", func(t *testing.T) {
		got, err := repo.GetByUUID(ctx, "missing")
		if err != nil {
			t.Fatalf("GetByUUID() error = %v", err)
		}
		if got != nil {
			t.Errorf("GetByUUID() = %+v, want nil", got)
		}
	})
}

func TestExportRepository_List(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewExportRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, &domain.ExportRecord{
			SessionID: "s",
			Checksum:  "x",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	all, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(List()) = %v, want 3", len(all))
	}
	if !all[0].CreatedAt.After(all[1].CreatedAt) {
		t.Error("List() should return newest first")
	}

	limited, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len(List(2)) = %v, want 2", len(limited))
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Count() = %v, want 3", n)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() second run error = %v", err)
	}
	version, dirty, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("SchemaVersion() = %v, %v, want 1, false", version, dirty)
	}
}
