package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
)

// ErrMiss is returned by ProfileCache.Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// ProfileCache stores serialized values with a TTL.
type ProfileCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// RedisCache is a ProfileCache backed by Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the Redis instance at url and pings it.
func NewRedisCache(ctx context.Context, url string) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisCache{client: c}, nil
}

var _ ProfileCache = (*RedisCache)(nil)

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	res, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return res, err
}

func (r *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// CachedUserStore serves profile lookups from the cache and falls back to the
// underlying store. Cache failures degrade to a store read. Writes go to the
// store first and then evict the cached profile.
type CachedUserStore struct {
	store  repositories.UserRepository
	cache  ProfileCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedUserStore wraps store with cache.
func NewCachedUserStore(store repositories.UserRepository, cache ProfileCache, ttl time.Duration, logger *zap.Logger) *CachedUserStore {
	return &CachedUserStore{store: store, cache: cache, ttl: ttl, logger: logger}
}

var _ repositories.UserRepository = (*CachedUserStore)(nil)

func profileKey(id string) string {
	return "profile:" + id
}

// Exists always asks the store; a cached profile may outlive its user.
func (s *CachedUserStore) Exists(ctx context.Context, userID string) (bool, error) {
	exists, err := s.store.Exists(ctx, userID)
	if err == nil && !exists {
		s.forget(ctx, userID)
	}
	return exists, err
}

// GetProfiles returns cached profiles and loads the rest in one store call.
func (s *CachedUserStore) GetProfiles(ctx context.Context, ids []string) ([]models.Profile, error) {
	profiles := make([]models.Profile, 0, len(ids))
	var missing []string
	for _, id := range ids {
		if p, ok := s.lookup(ctx, id); ok {
			profiles = append(profiles, p)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return profiles, nil
	}

	loaded, err := s.store.GetProfiles(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, p := range loaded {
		s.remember(ctx, p)
	}
	return append(profiles, loaded...), nil
}

func (s *CachedUserStore) List(ctx context.Context) ([]models.User, error) {
	return s.store.List(ctx)
}

func (s *CachedUserStore) Get(ctx context.Context, id string) (models.User, error) {
	return s.store.Get(ctx, id)
}

func (s *CachedUserStore) Create(ctx context.Context, user models.User) (models.User, error) {
	return s.store.Create(ctx, user)
}

// Update writes through to the store and evicts the stale profile.
func (s *CachedUserStore) Update(ctx context.Context, id string, user models.User) (models.User, error) {
	updated, err := s.store.Update(ctx, id, user)
	if err != nil {
		return models.User{}, err
	}
	s.forget(ctx, id)
	return updated, nil
}

// Delete removes the user and its cached profile.
func (s *CachedUserStore) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.forget(ctx, id)
	return nil
}

func (s *CachedUserStore) lookup(ctx context.Context, id string) (models.Profile, bool) {
	raw, err := s.cache.Get(ctx, profileKey(id))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			s.logger.Warn("profile cache get failed", zap.String("user_id", id), zap.Error(err))
		}
		return models.Profile{}, false
	}
	var p models.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return models.Profile{}, false
	}
	return p, true
}

func (s *CachedUserStore) remember(ctx context.Context, p models.Profile) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, profileKey(p.ID), string(raw), s.ttl); err != nil {
		s.logger.Warn("profile cache set failed", zap.String("user_id", p.ID), zap.Error(err))
	}
}

func (s *CachedUserStore) forget(ctx context.Context, id string) {
	if err := s.cache.Del(ctx, profileKey(id)); err != nil {
		s.logger.Warn("profile cache evict failed", zap.String("user_id", id), zap.Error(err))
	}
}
