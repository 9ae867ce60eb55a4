// internal/domain/checkout/snapshot_store.go
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// SnapshotStore persists checkout snapshots in Redis under a TTL.
// Session ids are always externally supplied and opaque; the store never
// synthesizes one from a user id, so concurrent sessions of the same user
// cannot collide.
type SnapshotStore struct {
	redisClient *redis.Client
	ttl         time.Duration
	logger      *logrus.Logger
}

// NewSnapshotStore creates a new snapshot store
func NewSnapshotStore(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *SnapshotStore {
	return &SnapshotStore{
		redisClient: redisClient,
		ttl:         ttl,
		logger:      logger,
	}
}

func snapshotKey(sessionID string) string {
	return fmt.Sprintf("checkout:snapshot:%s", sessionID)
}

// Store persists the snapshot under its session id and returns the storage
// key. CreatedAt/ExpiresAt are stamped here so the payload carries its own
// deadline alongside the backend TTL.
func (s *SnapshotStore) Store(ctx context.Context, snapshot *Snapshot) (string, error) {
	if snapshot.SessionID == "" {
		return "", fmt.Errorf("session id is required")
	}

	now := time.Now().UTC()
	snapshot.CreatedAt = now
	snapshot.ExpiresAt = now.Add(s.ttl)

	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := snapshotKey(snapshot.SessionID)
	if err := s.redisClient.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store snapshot: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": snapshot.SessionID,
		"user_id":    snapshot.UserID,
		"expires_at": snapshot.ExpiresAt,
	}).Debug("Checkout snapshot stored")

	return key, nil
}

// Retrieve returns the snapshot for a session id. A payload whose own
// deadline has passed is treated as absent and eagerly evicted so a
// subsequent Exists check stays consistent.
func (s *SnapshotStore) Retrieve(ctx context.Context, sessionID string) (*Snapshot, error) {
	data, err := s.redisClient.Get(ctx, snapshotKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, ErrSnapshotNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to retrieve snapshot: %w", err)
	}

	snapshot, err := s.decode(data)
	if err != nil {
		return nil, err
	}

	if snapshot.IsExpired(time.Now().UTC()) {
		s.redisClient.Del(ctx, snapshotKey(sessionID))
		return nil, ErrSnapshotNotFound
	}

	return snapshot, nil
}

// Take atomically fetches and deletes the snapshot. A second concurrent
// caller for the same session id observes ErrSnapshotNotFound, which is
// what makes order creation at-most-once across duplicate payment
// callbacks.
func (s *SnapshotStore) Take(ctx context.Context, sessionID string) (*Snapshot, error) {
	data, err := s.redisClient.GetDel(ctx, snapshotKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, ErrSnapshotNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to take snapshot: %w", err)
	}

	snapshot, err := s.decode(data)
	if err != nil {
		return nil, err
	}

	if snapshot.IsExpired(time.Now().UTC()) {
		return nil, ErrSnapshotNotFound
	}

	return snapshot, nil
}

// Restore puts a taken snapshot back with its remaining lifetime, so a
// failed reconciliation leaves the session retryable
func (s *SnapshotStore) Restore(ctx context.Context, snapshot *Snapshot) error {
	remaining := time.Until(snapshot.ExpiresAt)
	if remaining <= 0 {
		return ErrSnapshotNotFound
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := s.redisClient.Set(ctx, snapshotKey(snapshot.SessionID), data, remaining).Err(); err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}

	return nil
}

// Remove deletes the snapshot and reports whether an entry existed
func (s *SnapshotStore) Remove(ctx context.Context, sessionID string) (bool, error) {
	count, err := s.redisClient.Del(ctx, snapshotKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to remove snapshot: %w", err)
	}
	return count > 0, nil
}

// Exists checks whether a snapshot entry is present in the backend
func (s *SnapshotStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	count, err := s.redisClient.Exists(ctx, snapshotKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot existence: %w", err)
	}
	return count > 0, nil
}

// Validate is the pre-flight check before reconciliation: the snapshot must
// be present, unexpired and well-formed
func (s *SnapshotStore) Validate(ctx context.Context, sessionID string) (bool, error) {
	snapshot, err := s.Retrieve(ctx, sessionID)
	if err == ErrSnapshotNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return snapshot.IsWellFormed(), nil
}

func (s *SnapshotStore) decode(data string) (*Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}
