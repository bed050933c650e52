package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recently-viewed-backend/internal/domain"
	"recently-viewed-backend/internal/ports"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix    = "rvp:session:"
	oauthStateKeyPrefix = "rvp:oauth_state:"
)

// cmdable is the subset of redis commands the stores use
type cmdable interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewRedisClient connects to url and verifies the connection
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// RedisSessionStore keeps sessions as JSON values without expiry
type RedisSessionStore struct {
	store cmdable
	now   func() time.Time
}

// NewRedisSessionStore creates a session store over client
func NewRedisSessionStore(client redis.Cmdable) ports.SessionStore {
	return &RedisSessionStore{store: client, now: time.Now}
}

func (s *RedisSessionStore) Get(ctx context.Context, shop string) (*domain.Session, error) {
	raw, err := s.store.Get(ctx, sessionKeyPrefix+shop).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Set(ctx context.Context, shop, accessToken, scope string) error {
	raw, err := json.Marshal(domain.Session{
		Shop:        shop,
		AccessToken: accessToken,
		Scope:       scope,
		UpdatedAt:   s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.store.Set(ctx, sessionKeyPrefix+shop, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, shop string) error {
	if err := s.store.Del(ctx, sessionKeyPrefix+shop).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// RedisOAuthStateStore keeps authorization states with a TTL matching their expiry
type RedisOAuthStateStore struct {
	store cmdable
	now   func() time.Time
}

// NewRedisOAuthStateStore creates a state store over client
func NewRedisOAuthStateStore(client redis.Cmdable) ports.OAuthStateStore {
	return &RedisOAuthStateStore{store: client, now: time.Now}
}

func (s *RedisOAuthStateStore) Save(ctx context.Context, state *domain.OAuthState) error {
	ttl := state.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("oauth state already expired")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode oauth state: %w", err)
	}
	if err := s.store.Set(ctx, oauthStateKeyPrefix+state.State, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

func (s *RedisOAuthStateStore) Consume(ctx context.Context, state string) (*domain.OAuthState, error) {
	raw, err := s.store.GetDel(ctx, oauthStateKeyPrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	var out domain.OAuthState
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode oauth state: %w", err)
	}
	return &out, nil
}
