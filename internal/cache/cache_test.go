package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"conversation-service/internal/mocks"
	"conversation-service/internal/models"
)

type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.values[key]
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	return nil
}

func (m *memoryCache) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.values, key)
	return nil
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}

func TestGetProfilesLoadsMissesOnce(t *testing.T) {
	store := new(mocks.UserRepositoryMock)
	cached := NewCachedUserStore(store, newMemoryCache(), time.Minute, zap.NewNop())
	ctx := context.Background()

	store.On("GetProfiles", mock.Anything, []string{"a", "b"}).
		Return([]models.Profile{{ID: "a", Name: "Ann"}, {ID: "b", Name: "Bob"}}, nil).Once()

	first, err := cached.GetProfiles(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := cached.GetProfiles(ctx, []string{"b", "a"})
	require.NoError(t, err)
	assert.ElementsMatch(t, first, second)

	store.AssertExpectations(t)
}

func TestGetProfilesPartialHit(t *testing.T) {
	store := new(mocks.UserRepositoryMock)
	cache := newMemoryCache()
	cached := NewCachedUserStore(store, cache, time.Minute, zap.NewNop())
	ctx := context.Background()
	cache.values[profileKey("a")] = `{"_id":"a","name":"Ann","image":""}`

	store.On("GetProfiles", mock.Anything, []string{"c"}).Return([]models.Profile{{ID: "c", Name: "Cy"}}, nil).Once()

	profiles, err := cached.GetProfiles(ctx, []string{"a", "c"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.Profile{{ID: "a", Name: "Ann"}, {ID: "c", Name: "Cy"}}, profiles)
	store.AssertExpectations(t)
}

func TestCacheErrorsFallBackToStore(t *testing.T) {
	store := new(mocks.UserRepositoryMock)
	cache := newMemoryCache()
	cache.err = assert.AnError
	cached := NewCachedUserStore(store, cache, time.Minute, zap.NewNop())

	store.On("Exists", mock.Anything, "a").Return(true, nil).Once()
	store.On("GetProfiles", mock.Anything, []string{"a"}).Return([]models.Profile{{ID: "a"}}, nil).Once()

	ok, err := cached.Exists(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)

	profiles, err := cached.GetProfiles(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
	store.AssertExpectations(t)
}

func TestExistsIgnoresCachedProfileOfDeletedUser(t *testing.T) {
	store := new(mocks.UserRepositoryMock)
	cache := newMemoryCache()
	cached := NewCachedUserStore(store, cache, time.Minute, zap.NewNop())
	ctx := context.Background()

	store.On("GetProfiles", mock.Anything, []string{"b"}).Return([]models.Profile{{ID: "b", Name: "Bob"}}, nil).Once()
	store.On("Delete", mock.Anything, "b").Return(nil).Once()
	store.On("Exists", mock.Anything, "b").Return(false, nil).Once()

	_, err := cached.GetProfiles(ctx, []string{"b"})
	require.NoError(t, err)
	require.True(t, cache.has(profileKey("b")))

	require.NoError(t, cached.Delete(ctx, "b"))
	assert.False(t, cache.has(profileKey("b")))

	ok, err := cached.Exists(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
	store.AssertExpectations(t)
}

func TestExistsNegativeAnswerWinsOverCache(t *testing.T) {
	store := new(mocks.UserRepositoryMock)
	cache := newMemoryCache()
	cache.values[profileKey("a")] = `{"_id":"a","name":"Ann"}`
	cached := NewCachedUserStore(store, cache, time.Minute, zap.NewNop())

	store.On("Exists", mock.Anything, "a").Return(false, nil).Once()

	ok, err := cached.Exists(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, cache.has(profileKey("a")))
	store.AssertExpectations(t)
}

func TestUpdateEvictsProfile(t *testing.T) {
	store := new(mocks.UserRepositoryMock)
	cache := newMemoryCache()
	cache.values[profileKey("a")] = `{"_id":"a","name":"Ann"}`
	cached := NewCachedUserStore(store, cache, time.Minute, zap.NewNop())
	ctx := context.Background()

	store.On("Update", mock.Anything, "a", models.User{Name: "Anna"}).Return(models.User{ID: "a", Name: "Anna"}, nil).Once()
	store.On("GetProfiles", mock.Anything, []string{"a"}).Return([]models.Profile{{ID: "a", Name: "Anna"}}, nil).Once()

	_, err := cached.Update(ctx, "a", models.User{Name: "Anna"})
	require.NoError(t, err)

	profiles, err := cached.GetProfiles(ctx, []string{"a"})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Anna", profiles[0].Name)
	store.AssertExpectations(t)
}

func TestFailedDeleteKeepsProfile(t *testing.T) {
	store := new(mocks.UserRepositoryMock)
	cache := newMemoryCache()
	cache.values[profileKey("a")] = `{"_id":"a","name":"Ann"}`
	cached := NewCachedUserStore(store, cache, time.Minute, zap.NewNop())

	store.On("Delete", mock.Anything, "a").Return(assert.AnError).Once()

	require.ErrorIs(t, cached.Delete(context.Background(), "a"), assert.AnError)
	assert.True(t, cache.has(profileKey("a")))
}
