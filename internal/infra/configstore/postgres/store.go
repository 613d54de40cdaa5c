// Package postgres stores group configurations in Postgres through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"tripgroups/pkg/domain"
)

var _ domain.ConfigurationStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/tripgroups?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists configurations as JSONB rows.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New connects with dsn (defaultDSN when empty) and ensures the table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// DB exposes the underlying sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

func ensureTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS group_configurations (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL,
		adventure_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure group_configurations table: %w", err)
	}
	return nil
}

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
		`INSERT INTO group_configurations (id, vendor_id, adventure_id, created_at, payload) VALUES ($1, $2, $3, $4, $5)`,
		record.ID, record.VendorID, record.AdventureID, record.CreatedAt, payload); err != nil {
		return domain.GroupConfiguration{}, fmt.Errorf("insert configuration %s: %w", record.ID, err)
	}
	return domain.CloneConfiguration(record), nil
}

// ListConfigurations returns vendorID's records, newest first.
func (s *Store) ListConfigurations(ctx context.Context, vendorID string) ([]domain.GroupConfiguration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM group_configurations WHERE vendor_id = $1`, vendorID)
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
	domain.SortConfigurations(out)
	return out, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
