package signal

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestRepo creates an in-memory SQLite repository.
func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewSQLiteRepository(db)
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return repo
}

func TestSaveAndLoad(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	data := []byte{0x01, 0x02, 0x03, 0xff}

	if err := repo.Save(ctx, "tv_power", data); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Load(ctx, "tv_power")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("loaded = %x, want %x", got, data)
	}
}

func TestSaveReplaces(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, "fan", []byte{0x01}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := repo.Save(ctx, "fan", []byte{0x02, 0x03}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := repo.Load(ctx, "fan")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(got, []byte{0x02, 0x03}) {
		t.Errorf("loaded = %x, want the replacement", got)
	}

	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("records = %d, want 1", len(records))
	}
}

func TestLoadMissing(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.Load(context.Background(), "missing")
	if !errors.Is(err, ErrSignalNotFound) {
		t.Errorf("err = %v, want ErrSignalNotFound", err)
	}
}

func TestSaveEmptyData(t *testing.T) {
	repo := setupTestRepo(t)

	if err := repo.Save(context.Background(), "empty", nil); !errors.Is(err, ErrEmptySignal) {
		t.Errorf("err = %v, want ErrEmptySignal", err)
	}
}

func TestList(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for _, label := range []string{"zeta", "alpha", "mid"} {
		if err := repo.Save(ctx, label, []byte{0x01, 0x02}); err != nil {
			t.Fatalf("save %s: %v", label, err)
		}
	}

	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, rec := range records {
		if rec.Label != want[i] {
			t.Errorf("records[%d].Label = %q, want %q", i, rec.Label, want[i])
		}
		if rec.Size != 2 {
			t.Errorf("records[%d].Size = %d, want 2", i, rec.Size)
		}
		if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
			t.Errorf("records[%d] timestamps not set", i)
		}
	}
}

func TestDelete(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, "doomed", []byte{0x01}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Delete(ctx, "doomed"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Load(ctx, "doomed"); !errors.Is(err, ErrSignalNotFound) {
		t.Errorf("load after delete: err = %v, want ErrSignalNotFound", err)
	}
	if err := repo.Delete(ctx, "doomed"); !errors.Is(err, ErrSignalNotFound) {
		t.Errorf("second delete: err = %v, want ErrSignalNotFound", err)
	}
}

func TestValidateLabel(t *testing.T) {
	tests := []struct {
		label string
		valid bool
	}{
		{"tv_power", true},
		{"ac-on", true},
		{"fan2", true},
		{"a", true},
		{"", false},
		{"TV_POWER", false},
		{"has space", false},
		{"-leading", false},
		{"trailing-", false},
		{"double--dash", false},
		{"semi;colon", false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			err := ValidateLabel(tt.label)
			if tt.valid && err != nil {
				t.Errorf("ValidateLabel(%q) = %v, want nil", tt.label, err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidLabel) {
				t.Errorf("ValidateLabel(%q) = %v, want ErrInvalidLabel", tt.label, err)
			}
		})
	}
}
