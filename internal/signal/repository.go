package signal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// maxLabelLength bounds label slugs.
const maxLabelLength = 64

// labelPattern validates label slugs: lowercase alphanumeric with
// single hyphen or underscore separators.
var labelPattern = regexp.MustCompile(`^[a-z0-9]+(?:[-_][a-z0-9]+)*$`)

// ValidateLabel checks that label is a well-formed slug.
func ValidateLabel(label string) error {
	if label == "" || len(label) > maxLabelLength {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	if !labelPattern.MatchString(label) {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return nil
}

// Record describes one stored signal without its data.
type Record struct {
	Label     string    `json:"label"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository defines the interface for signal persistence operations.
// The abstraction keeps the protocol bridges testable without a database.
type Repository interface {
	// Load retrieves the signal stored under label.
	// Returns ErrSignalNotFound if the label does not exist.
	Load(ctx context.Context, label string) ([]byte, error)

	// Save stores data under label, replacing any previous signal.
	Save(ctx context.Context, label string, data []byte) error

	// List retrieves the records of all stored signals, ordered by label.
	List(ctx context.Context) ([]Record, error)

	// Delete removes the signal stored under label.
	// Returns ErrSignalNotFound if the label does not exist.
	Delete(ctx context.Context, label string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Init creates the signals table if it does not exist.
func (r *SQLiteRepository) Init(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS signals (
			label TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating signals table: %w", err)
	}
	return nil
}

// Load retrieves the signal stored under label.
func (r *SQLiteRepository) Load(ctx context.Context, label string) ([]byte, error) {
	if err := ValidateLabel(label); err != nil {
		return nil, err
	}

	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM signals WHERE label = ?`, label).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrSignalNotFound, label)
		}
		return nil, fmt.Errorf("querying signal by label: %w", err)
	}
	return data, nil
}

// Save stores data under label. An existing signal is replaced and its
// updated_at timestamp refreshed.
func (r *SQLiteRepository) Save(ctx context.Context, label string, data []byte) error {
	if err := ValidateLabel(label); err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: %q", ErrEmptySignal, label)
	}

	query := `
		INSERT INTO signals (label, data)
		VALUES (?, ?)
		ON CONFLICT(label) DO UPDATE SET
			data = excluded.data,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`

	if _, err := r.db.ExecContext(ctx, query, label, data); err != nil {
		return fmt.Errorf("saving signal: %w", err)
	}
	return nil
}

// List retrieves the records of all stored signals.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	query := `
		SELECT label, length(data), created_at, updated_at
		FROM signals
		ORDER BY label`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing signals: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var created, updated string
		if err := rows.Scan(&rec.Label, &rec.Size, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning signal record: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating signal records: %w", err)
	}
	return records, nil
}

// Delete removes the signal stored under label.
func (r *SQLiteRepository) Delete(ctx context.Context, label string) error {
	if err := ValidateLabel(label); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM signals WHERE label = ?`, label)
	if err != nil {
		return fmt.Errorf("deleting signal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %q", ErrSignalNotFound, label)
	}
	return nil
}
