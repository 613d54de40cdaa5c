// Package sqlite persists engine sessions to SQLite, one JSON payload per
// state bucket.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"tripgroups/pkg/domain"
)

const defaultPath = "tripgroups.db"

const (
	bucketAdventure      = "adventure"
	bucketGroups         = "groups"
	bucketParticipants   = "participants"
	bucketConfigurations = "group_configurations"
)

var stateBuckets = []string{bucketAdventure, bucketGroups, bucketParticipants, bucketConfigurations}

var _ domain.StateStore = (*Store)(nil)

// Store snapshots PersistedState into the session_state table.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// New opens (creating if needed) the database at path.
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
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS session_state (
		session TEXT NOT NULL,
		bucket TEXT NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (session, bucket)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session_state table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveState replaces every bucket for key in a single transaction.
func (s *Store) SaveState(ctx context.Context, key string, state domain.PersistedState) (retErr error) {
	if key == "" {
		return errors.New("state key required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range stateBuckets {
		var data []byte
		switch bucket {
		case bucketAdventure:
			data, err = json.Marshal(state.SelectedAdventure)
		case bucketGroups:
			data, err = json.Marshal(state.Groups)
		case bucketParticipants:
			data, err = json.Marshal(state.Participants)
		case bucketConfigurations:
			data, err = json.Marshal(state.GroupConfigurations)
		}
		if err != nil {
			return fmt.Errorf("encode %s: %w", bucket, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO session_state(session,bucket,payload) VALUES(?,?,?)
			ON CONFLICT(session,bucket) DO UPDATE SET payload=excluded.payload`, key, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadState reassembles the buckets stored for key.
func (s *Store) LoadState(ctx context.Context, key string) (domain.PersistedState, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM session_state WHERE session = ?`, key)
	if err != nil {
		return domain.PersistedState{}, false, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var (
		state domain.PersistedState
		found bool
	)
	for rows.Next() {
		var (
			bucket  string
			payload []byte
		)
		if err := rows.Scan(&bucket, &payload); err != nil {
			return domain.PersistedState{}, false, fmt.Errorf("scan: %w", err)
		}
		found = true
		switch bucket {
		case bucketAdventure:
			err = json.Unmarshal(payload, &state.SelectedAdventure)
		case bucketGroups:
			err = json.Unmarshal(payload, &state.Groups)
		case bucketParticipants:
			err = json.Unmarshal(payload, &state.Participants)
		case bucketConfigurations:
			err = json.Unmarshal(payload, &state.GroupConfigurations)
		}
		if err != nil {
			return domain.PersistedState{}, false, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	if err := rows.Err(); err != nil {
		return domain.PersistedState{}, false, fmt.Errorf("iterate state: %w", err)
	}
	return state, found, nil
}
