// Package blob archives engine sessions as JSON documents in a blob store.
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"tripgroups/internal/blob"
	"tripgroups/pkg/domain"
)

const (
	defaultPrefix = "sessions/"
	contentType   = "application/json"
)

var _ domain.StateStore = (*Store)(nil)

// Store implements domain.StateStore on top of blob.Store. Each session key
// maps to one object under the prefix.
type Store struct {
	blobs  blob.Store
	prefix string
}

// New wraps blobs. An empty prefix defaults to "sessions/".
func New(blobs blob.Store, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{blobs: blobs, prefix: prefix}
}

func (s *Store) objectKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("state key required")
	}
	return s.prefix + key + ".json", nil
}

// SaveState writes state under key, replacing any earlier archive.
func (s *Store) SaveState(ctx context.Context, key string, state domain.PersistedState) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	_, err = s.blobs.Put(ctx, objectKey, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"adventure": state.SelectedAdventure,
			"groups":    fmt.Sprint(len(state.Groups)),
		},
	})
	if err != nil {
		return fmt.Errorf("store state %s: %w", key, err)
	}
	return nil
}

// LoadState reads the archive for key, reporting false when none exists.
func (s *Store) LoadState(ctx context.Context, key string) (domain.PersistedState, bool, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return domain.PersistedState{}, false, err
	}
	_, rc, err := s.blobs.Get(ctx, objectKey)
	if errors.Is(err, blob.ErrNotFound) {
		return domain.PersistedState{}, false, nil
	}
	if err != nil {
		return domain.PersistedState{}, false, fmt.Errorf("read state %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	payload, err := io.ReadAll(rc)
	if err != nil {
		return domain.PersistedState{}, false, fmt.Errorf("read state %s: %w", key, err)
	}
	var state domain.PersistedState
	if err := json.Unmarshal(payload, &state); err != nil {
		return domain.PersistedState{}, false, fmt.Errorf("decode state %s: %w", key, err)
	}
	return state, true, nil
}

// Keys lists the session keys with an archive.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	infos, err := s.blobs.List(ctx, s.prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		name := strings.TrimPrefix(info.Key, s.prefix)
		if strings.Contains(name, "/") || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	return keys, nil
}
