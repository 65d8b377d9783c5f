// Package auth implements bearer-token sessions backed by Redis.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionTTL = 24 * time.Hour

var ErrSessionNotFound = errors.New("session not found or expired")

// Sessions issues opaque bearer tokens and resolves them back to user
// ids. Tokens expire server-side after 24h of issue; logout deletes
// them eagerly.
type Sessions struct {
	rdb *redis.Client
}

func NewSessions(rdb *redis.Client) *Sessions {
	return &Sessions{rdb: rdb}
}

func (s *Sessions) key(token string) string {
	return "session:" + token
}

func (s *Sessions) Issue(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	if err := s.rdb.Set(ctx, s.key(token), userID, sessionTTL).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

func (s *Sessions) Resolve(ctx context.Context, token string) (int64, error) {
	val, err := s.rdb.Get(ctx, s.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("resolve session: %w", err)
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session value: %w", err)
	}
	return userID, nil
}

func (s *Sessions) Revoke(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, s.key(token)).Err()
}
