package implementation

import (
	"context"
	"os"
	"sync"
	"testing"

	"smart-supermarket/internal/repository/contract"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real server: REDIS_URL=redis://localhost:6379/15 go test ./internal/repository/...
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	rdb := redis.NewClient(opts)
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	require.NoError(t, rdb.FlushDB(ctx).Err())
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRedisUserDirectory(t *testing.T) {
	rdb := newTestRedis(t)
	repo := NewUserDirectoryRepository(rdb)
	ctx := context.Background()

	first, err := repo.Register(ctx, "Sam", "happy")
	require.NoError(t, err)
	second, err := repo.Register(ctx, "Jo", "neutral")
	require.NoError(t, err)
	assert.Equal(t, first.UserID+1, second.UserID)

	got, err := repo.Get(ctx, first.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Sam", got.UserName)
	assert.Equal(t, "happy", got.Mood)
	assert.False(t, got.CreatedAt.IsZero())

	got.Mood = "sad"
	require.NoError(t, repo.Save(ctx, got))
	again, err := repo.Get(ctx, first.UserID)
	require.NoError(t, err)
	assert.Equal(t, "sad", again.Mood)
	assert.True(t, again.CreatedAt.Equal(got.CreatedAt))

	_, err = repo.Get(ctx, 9999)
	assert.ErrorIs(t, err, contract.ErrProfileNotFound)
}

func TestRedisSaveNeverLowersSequence(t *testing.T) {
	rdb := newTestRedis(t)
	repo := NewUserDirectoryRepository(rdb)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &contract.Profile{UserID: 50, UserName: "Ext", Mood: "happy"}))
	next, err := repo.Register(ctx, "Sam", "sad")
	require.NoError(t, err)
	assert.Equal(t, 51, next.UserID)

	require.NoError(t, repo.Save(ctx, &contract.Profile{UserID: 3, UserName: "Old", Mood: "fear"}))
	seq, err := rdb.Get(ctx, userSeqKey).Int()
	require.NoError(t, err)
	assert.Equal(t, 51, seq)
}

func TestRedisConcurrentRegisterAndSaveKeepIDsUnique(t *testing.T) {
	rdb := newTestRedis(t)
	repo := NewUserDirectoryRepository(rdb)
	ctx := context.Background()

	const n = 40
	ids := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p, err := repo.Register(ctx, "Shopper", "neutral")
			if assert.NoError(t, err) {
				ids <- p.UserID
			}
		}()
		go func(id int) {
			defer wg.Done()
			assert.NoError(t, repo.Save(ctx, &contract.Profile{UserID: id, UserName: "Known", Mood: "happy"}))
		}(i + 1)
	}
	wg.Wait()
	close(ids)

	seen := map[int]bool{}
	highest := 0
	for id := range ids {
		assert.False(t, seen[id], "id %d allocated twice", id)
		seen[id] = true
		highest = max(highest, id)
	}
	seq, err := rdb.Get(ctx, userSeqKey).Int()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, seq, highest)
}
