package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/lewtec/rotulador-video/internal/domain"
)

func TestClassRepository_Save(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewClassRepository(db)
	ctx := context.Background()
	blue := domain.Color{R: 0, G: 0, B: 255}

	t.Run("creates class successfully", func(t *testing.T) {
		class, err := repo.Save(ctx, " block ", blue)
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if class.ID == 0 {
			t.Error("Expected non-zero ID")
		}
		if class.Name != "block" {
			t.Errorf("Name = %v, want %v", class.Name, "block")
		}
		if class.Color != blue {
			t.Errorf("Color = %v, want %v", class.Color, blue)
		}
		if class.CreatedAt.IsZero() {
			t.Error("CreatedAt should not be zero")
		}
	})

	t.Run("updates color of existing class", func(t *testing.T) {
		red := domain.Color{R: 255}
		class, err := repo.Save(ctx, "BLOCK", red)
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if class.Name != "block" {
			t.Errorf("Name = %v, want original casing %v", class.Name, "block")
		}
		if class.Color != red {
			t.Errorf("Color = %v, want %v", class.Color, red)
		}

		classes, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(classes) != 1 {
			t.Errorf("len(List()) = %v, want 1", len(classes))
		}
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := repo.Save(ctx, "   ", blue)
		if !errors.Is(err, domain.ErrEmptyObjectName) {
			t.Errorf("Save() error = %v, want %v", err, domain.ErrEmptyObjectName)
		}
	})
}

func TestClassRepository_ListAndDelete(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewClassRepository(db)
	ctx := context.Background()

	for i, name := range []string{"block", "hand", "cup"} {
		if _, err := repo.Save(ctx, name, domain.PaletteColor(i+1)); err != nil {
			t.Fatalf("Save(%q) error = %v", name, err)
		}
	}

	classes, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(classes) != 3 {
		t.Fatalf("len(List()) = %v, want 3", len(classes))
	}
	if classes[0].Name != "block" || classes[2].Name != "cup" {
		t.Errorf("List() not in creation order: %v, %v", classes[0].Name, classes[2].Name)
	}

	if err := repo.Delete(ctx, "Hand"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, err := repo.GetByName(ctx, "hand")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if got != nil {
		t.Error("Expected class to be deleted")
	}

	if err := repo.Delete(ctx, "hand"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want %v", err, ErrNotFound)
	}
}
