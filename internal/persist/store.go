// Package persist reads and writes versioned per-profile session snapshots.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/logger"
	"github.com/MrSnakeDoc/orbit/internal/profile"
)

// ErrNotFound is returned by backends when a key has never been written.
var ErrNotFound = errors.New("not found")

// Backend is a durable key/value store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists stored keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

const (
	registryKey   = "profiles"
	sessionPrefix = "session:"
)

// SessionKey is the storage key of a profile's snapshot.
func SessionKey(profileID string) string {
	return sessionPrefix + profileID
}

// Store layers the snapshot codec over a Backend.
type Store struct {
	backend Backend
	log     logger.Logger
}

// NewStore wraps backend.
func NewStore(backend Backend, log logger.Logger) *Store {
	return &Store{backend: backend, log: log}
}

// LoadSnapshot returns the profile's snapshot, or ErrNotFound when absent.
// A malformed snapshot is logged and replaced by an empty one.
func (s *Store) LoadSnapshot(ctx context.Context, profileID string) (*domain.Snapshot, error) {
	data, err := s.backend.Get(ctx, SessionKey(profileID))
	if err != nil {
		return nil, err
	}
	snap, err := Decode(data)
	if err != nil {
		s.log.Warn("discarding malformed snapshot",
			logger.String("profile_id", profileID),
			logger.Error(err))
	}
	return snap, nil
}

// SaveSnapshot writes the profile's snapshot. Last write wins.
func (s *Store) SaveSnapshot(ctx context.Context, profileID string, snap *domain.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := s.backend.Put(ctx, SessionKey(profileID), data); err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", profileID, err)
	}
	return nil
}

// DeleteSnapshot removes a profile's snapshot.
func (s *Store) DeleteSnapshot(ctx context.Context, profileID string) error {
	return s.backend.Delete(ctx, SessionKey(profileID))
}

// PruneSnapshots removes the snapshots of profiles not in keep. A crash
// between a registry save and a snapshot delete leaves such orphans.
func (s *Store) PruneSnapshots(ctx context.Context, keep []string) (int, error) {
	keys, err := s.backend.Keys(ctx, sessionPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list snapshots: %w", err)
	}
	pruned := 0
	for _, k := range keys {
		id := strings.TrimPrefix(k, sessionPrefix)
		if slices.Contains(keep, id) {
			continue
		}
		if err := s.backend.Delete(ctx, k); err != nil {
			return pruned, err
		}
		s.log.Info("pruned orphan snapshot", logger.String("profile_id", id))
		pruned++
	}
	return pruned, nil
}

// LoadRegistry returns the stored profile registry, or ErrNotFound.
func (s *Store) LoadRegistry(ctx context.Context) (profile.State, error) {
	data, err := s.backend.Get(ctx, registryKey)
	if err != nil {
		return profile.State{}, err
	}
	var st profile.State
	if err := json.Unmarshal(data, &st); err != nil {
		s.log.Warn("discarding malformed profile registry", logger.Error(err))
		return profile.State{}, ErrNotFound
	}
	return st, nil
}

// SaveRegistry writes the profile registry.
func (s *Store) SaveRegistry(ctx context.Context, st profile.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal profile registry: %w", err)
	}
	if err := s.backend.Put(ctx, registryKey, data); err != nil {
		return fmt.Errorf("failed to save profile registry: %w", err)
	}
	return nil
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error { return s.backend.Ping(ctx) }

// Close closes the backend.
func (s *Store) Close() error { return s.backend.Close() }
