// Package sqlite stores group configurations in a SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"tripgroups/pkg/domain"
)

const defaultPath = "tripgroups.db"

var _ domain.ConfigurationStore = (*Store)(nil)

// Store persists each configuration as one JSON row keyed by id.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens the database at path and ensures the table exists.
func New(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS group_configurations (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL,
		adventure_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create group_configurations table: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// CreateConfiguration inserts record, assigning an id and timestamp when absent.
func (s *Store) CreateConfiguration(ctx context.Context, record domain.GroupConfiguration) (domain.GroupConfiguration, error) {
	if record.VendorID == "" {
		return domain.GroupConfiguration{}, errors.New("vendor id required")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	if record.Snapshot == nil {
		record.Snapshot = []domain.Group{}
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return domain.GroupConfiguration{}, fmt.Errorf("encode configuration: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO group_configurations(id,vendor_id,adventure_id,created_at,payload) VALUES(?,?,?,?,?)`,
		record.ID, record.VendorID, record.AdventureID, record.CreatedAt.UnixNano(), payload); err != nil {
		return domain.GroupConfiguration{}, fmt.Errorf("insert configuration %s: %w", record.ID, err)
	}
	return domain.CloneConfiguration(record), nil
}

// ListConfigurations returns vendorID's records, newest first.
func (s *Store) ListConfigurations(ctx context.Context, vendorID string) ([]domain.GroupConfiguration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM group_configurations WHERE vendor_id = ? ORDER BY created_at DESC, id`, vendorID)
	if err != nil {
		return nil, fmt.Errorf("select configurations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := make([]domain.GroupConfiguration, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var record domain.GroupConfiguration
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("decode configuration: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate configurations: %w", err)
	}
	return out, nil
}
