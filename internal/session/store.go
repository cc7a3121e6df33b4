package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound reports that no session document exists under the given id.
var ErrNotFound = errors.New("session: not found")

// Store persists session documents as RedisJSON values keyed by session id.
type Store struct {
	rdb *redis.Client
}

// NewStore wraps an existing Redis connection.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Load reads the document at the root path. Returns ErrNotFound when the
// key is absent.
func (st *Store) Load(ctx context.Context, id string) (*Session, error) {
	raw, err := st.rdb.JSONGet(ctx, id, "$").Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("json.get %s: %w", id, err)
	}
	if raw == "" {
		return nil, ErrNotFound
	}

	// A "$" path query yields an array of matches.
	var docs []Session
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return &docs[0], nil
}

// Create writes a fresh document at the root path.
func (st *Store) Create(ctx context.Context, id string, s *Session) error {
	return st.setPath(ctx, id, "$", s)
}

// SaveState persists the orchestrator-owned fields: context, cursor and the
// refreshed activity timestamp.
func (st *Store) SaveState(ctx context.Context, id string, s *Session) error {
	s.Touch()
	if err := st.setPath(ctx, id, "$.context", s.Context); err != nil {
		return err
	}
	if err := st.setPath(ctx, id, "$.cursor", s.Cursor); err != nil {
		return err
	}
	return st.setPath(ctx, id, "$.timestamp", s.Timestamp)
}

// Touch refreshes the document's heartbeat timestamp only.
func (st *Store) Touch(ctx context.Context, id string) error {
	return st.setPath(ctx, id, "$.timestamp", time.Now().UnixMilli())
}

func (st *Store) setPath(ctx context.Context, id, path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", id, path, err)
	}
	if err := st.rdb.JSONSet(ctx, id, path, string(data)).Err(); err != nil {
		return fmt.Errorf("json.set %s %s: %w", id, path, err)
	}
	return nil
}
