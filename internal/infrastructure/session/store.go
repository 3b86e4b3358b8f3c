package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no live session exists for the user.
var ErrNotFound = errors.New("session not found")

// Record is the server-side session stored as a Redis hash under
// user:session:<uid>. SID binds the session to the currently valid
// access/refresh token pair; rotation invalidates older tokens.
type Record struct {
	UserID    string
	Email     string
	Name      string
	AvatarURL string
	SID       string
}

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func Key(userID string) string {
	return "user:session:" + userID
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Save writes a fresh session hash and resets its TTL.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	fields := map[string]any{
		"user_id":    rec.UserID,
		"email":      rec.Email,
		"name":       rec.Name,
		"avatar_url": rec.AvatarURL,
		"sid":        rec.SID,
		"logged_in":  true,
		"created_at": nowRFC3339(),
	}
	key := Key(rec.UserID)
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Get loads the session hash for a user.
func (s *Store) Get(ctx context.Context, userID string) (*Record, error) {
	data, err := s.rdb.HGetAll(ctx, Key(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return &Record{
		UserID:    data["user_id"],
		Email:     data["email"],
		Name:      data["name"],
		AvatarURL: data["avatar_url"],
		SID:       data["sid"],
	}, nil
}

// RotateSID swaps the session id and extends the TTL. Used on refresh so
// previously issued token pairs stop matching.
func (s *Store) RotateSID(ctx context.Context, userID, sid string) error {
	key := Key(userID)
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"sid":        sid,
		"updated_at": nowRFC3339(),
	})
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// SetFields updates profile fields cached on the session without touching
// the remaining TTL.
func (s *Store) SetFields(ctx context.Context, userID string, fields map[string]any) error {
	key := Key(userID)
	fields["updated_at"] = nowRFC3339()
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	if ttl, err := s.rdb.TTL(ctx, key).Result(); err == nil && ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Delete removes the session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, Key(userID)).Err()
}
