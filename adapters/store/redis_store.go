package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/splatsvc/coralgate/core"
)

// RedisStore is a Redis implementation of the TokenStore and VersionStore
// interfaces. Multi-record writes go through a transactional pipeline so one
// exchange's output commits atomically.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "coralgate:",
	}
}

func (s *RedisStore) userKey(externalID string) string {
	return s.prefix + "user:" + externalID
}

func (s *RedisStore) tokenKey(userID string, kind core.TokenKind) string {
	return fmt.Sprintf("%stoken:%s:%s", s.prefix, userID, kind)
}

func (s *RedisStore) versionKey(name string) string {
	return s.prefix + "version:" + name
}

// GetUser looks up an account by external identity.
func (s *RedisStore) GetUser(ctx context.Context, externalID string) (*core.UserAccount, error) {
	fields, err := s.client.HGetAll(ctx, s.userKey(externalID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	if len(fields) == 0 {
		return nil, core.ErrUserNotFound
	}

	return &core.UserAccount{
		ID:         fields["id"],
		ExternalID: externalID,
		Language:   fields["language"],
		Country:    fields["country"],
	}, nil
}

// CreateUser commits a new account together with its initial tokens in one
// transaction.
func (s *RedisStore) CreateUser(ctx context.Context, user *core.UserAccount, tokens []core.TokenRecord) error {
	exists, err := s.client.Exists(ctx, s.userKey(user.ExternalID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if exists > 0 {
		return core.ErrUserExists
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.userKey(user.ExternalID), map[string]interface{}{
		"id":       user.ID,
		"language": user.Language,
		"country":  user.Country,
	})
	for _, t := range tokens {
		pipe.HSet(ctx, s.tokenKey(user.ID, t.Kind), map[string]interface{}{
			"value":      t.Value,
			"expires_at": t.ExpiresAt,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// DeleteUser removes an account and all its tokens in one transaction.
func (s *RedisStore) DeleteUser(ctx context.Context, externalID string) error {
	user, err := s.GetUser(ctx, externalID)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.userKey(externalID))
	for _, kind := range []core.TokenKind{core.TokenSession, core.TokenGameWeb, core.TokenBullet} {
		pipe.Del(ctx, s.tokenKey(user.ID, kind))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return nil
}

// GetToken reads one token record for a user.
func (s *RedisStore) GetToken(ctx context.Context, userID string, kind core.TokenKind) (core.TokenRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.tokenKey(userID, kind)).Result()
	if err != nil {
		return core.TokenRecord{}, fmt.Errorf("failed to read token: %w", err)
	}
	if len(fields) == 0 {
		return core.TokenRecord{}, core.ErrTokenNotFound
	}

	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return core.TokenRecord{}, fmt.Errorf("corrupt token expiry: %w", err)
	}

	return core.TokenRecord{
		Kind:      kind,
		Value:     fields["value"],
		ExpiresAt: expiresAt,
	}, nil
}

// PutTokens overwrites the given token records for a user in one transaction.
func (s *RedisStore) PutTokens(ctx context.Context, userID string, tokens []core.TokenRecord) error {
	pipe := s.client.TxPipeline()
	for _, t := range tokens {
		pipe.HSet(ctx, s.tokenKey(userID, t.Kind), map[string]interface{}{
			"value":      t.Value,
			"expires_at": t.ExpiresAt,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write tokens: %w", err)
	}

	return nil
}

// UpdateToken overwrites the value and expiry of a single token record.
func (s *RedisStore) UpdateToken(ctx context.Context, userID string, kind core.TokenKind, value string, expiresAt int64) error {
	err := s.client.HSet(ctx, s.tokenKey(userID, kind), map[string]interface{}{
		"value":      value,
		"expires_at": expiresAt,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}

	return nil
}

// GetVersion reads one named version entry.
func (s *RedisStore) GetVersion(ctx context.Context, name string) (string, error) {
	value, err := s.client.Get(ctx, s.versionKey(name)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", core.ErrVersionNotFound
		}
		return "", fmt.Errorf("failed to read version: %w", err)
	}
	return value, nil
}

// SetVersions commits all given entries in one transaction.
func (s *RedisStore) SetVersions(ctx context.Context, entries map[string]string) error {
	pairs := make([]interface{}, 0, len(entries)*2)
	for name, value := range entries {
		pairs = append(pairs, s.versionKey(name), value)
	}
	if err := s.client.MSet(ctx, pairs...).Err(); err != nil {
		return fmt.Errorf("failed to write versions: %w", err)
	}

	return nil
}
