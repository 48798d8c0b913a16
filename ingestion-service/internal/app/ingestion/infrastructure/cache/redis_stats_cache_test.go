package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type cachedStats struct {
	Total   int     `json:"total"`
	Average float64 `json:"average"`
}

// RedisStatsCacheTestSuite тестовый suite для кеша статистики
type RedisStatsCacheTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	client    *redis.Client
	cache     *RedisStatsCache
}

func TestRedisStatsCacheSuite(t *testing.T) {
	suite.Run(t, new(RedisStatsCacheTestSuite))
}

func (s *RedisStatsCacheTestSuite) SetupSuite() {
	var err error
	s.miniRedis, err = miniredis.Run()
	require.NoError(s.T(), err)

	s.client = redis.NewClient(&redis.Options{Addr: s.miniRedis.Addr()})
	s.cache = NewRedisStatsCache(s.client)
}

func (s *RedisStatsCacheTestSuite) SetupTest() {
	s.miniRedis.FlushAll()
}

func (s *RedisStatsCacheTestSuite) TearDownSuite() {
	s.client.Close()
	s.miniRedis.Close()
}

// ===================== Get/Set Tests =====================

func (s *RedisStatsCacheTestSuite) TestSetThenGet() {
	ctx := context.Background()

	// Arrange
	err := s.cache.Set(ctx, "stats:reviews:MLA1::30", cachedStats{Total: 7, Average: 4.25}, time.Minute)
	s.NoError(err)

	// Act
	var got cachedStats
	found, err := s.cache.Get(ctx, "stats:reviews:MLA1::30", &got)

	// Assert
	s.NoError(err)
	s.True(found)
	s.Equal(7, got.Total)
	s.Equal(4.25, got.Average)
}

func (s *RedisStatsCacheTestSuite) TestGet_Miss() {
	var got cachedStats
	found, err := s.cache.Get(context.Background(), "stats:reviews:none", &got)

	s.NoError(err)
	s.False(found)
}

func (s *RedisStatsCacheTestSuite) TestSet_TTL() {
	ctx := context.Background()

	s.NoError(s.cache.Set(ctx, "stats:products", cachedStats{Total: 1}, time.Minute))
	s.miniRedis.FastForward(2 * time.Minute)

	var got cachedStats
	found, err := s.cache.Get(ctx, "stats:products", &got)
	s.NoError(err)
	s.False(found)
}

func (s *RedisStatsCacheTestSuite) TestGet_CorruptedValue() {
	s.NoError(s.miniRedis.Set("stats:products", "not-json"))

	var got cachedStats
	found, err := s.cache.Get(context.Background(), "stats:products", &got)

	s.Error(err)
	s.False(found)
}

// ===================== InvalidatePrefix Tests =====================

func (s *RedisStatsCacheTestSuite) TestInvalidatePrefix() {
	ctx := context.Background()

	// Arrange
	for _, key := range []string{"stats:products", "stats:reviews:MLA1::30", "stats:timeline:MLA1:7", "other:key"} {
		s.NoError(s.cache.Set(ctx, key, cachedStats{Total: 1}, time.Hour))
	}

	// Act
	err := s.cache.InvalidatePrefix(ctx, "stats:")

	// Assert
	s.NoError(err)
	s.False(s.miniRedis.Exists("stats:products"))
	s.False(s.miniRedis.Exists("stats:reviews:MLA1::30"))
	s.False(s.miniRedis.Exists("stats:timeline:MLA1:7"))
	s.True(s.miniRedis.Exists("other:key"))
}

func (s *RedisStatsCacheTestSuite) TestInvalidatePrefix_NoKeys() {
	s.NoError(s.cache.InvalidatePrefix(context.Background(), "stats:"))
}

func TestKeyPrefix(t *testing.T) {
	require.Equal(t, "stats:reviews", keyPrefix("stats:reviews:MLA1::30"))
	require.Equal(t, "stats:products", keyPrefix("stats:products"))
	require.Equal(t, "plain", keyPrefix("plain"))
}
