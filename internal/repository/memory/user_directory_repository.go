package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"smart-supermarket/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

// UserDirectoryRepository keeps profiles for the lifetime of the process.
// Used when no Redis is configured.
type UserDirectoryRepository struct {
	cache *cache.Cache
	mu    sync.Mutex
	seq   int
	now   func() time.Time
}

func NewUserDirectoryRepository() *UserDirectoryRepository {
	return &UserDirectoryRepository{
		cache: cache.New(cache.NoExpiration, 0),
		now:   time.Now,
	}
}

func (r *UserDirectoryRepository) Register(ctx context.Context, userName, mood string) (*contract.Profile, error) {
	r.mu.Lock()
	r.seq++
	id := r.seq
	r.mu.Unlock()

	now := r.now()
	p := &contract.Profile{UserID: id, UserName: userName, Mood: mood, CreatedAt: now, UpdatedAt: now}
	r.cache.Set(key(id), *p, cache.NoExpiration)
	return p, nil
}

func (r *UserDirectoryRepository) Get(ctx context.Context, userID int) (*contract.Profile, error) {
	x, found := r.cache.Get(key(userID))
	if !found {
		return nil, contract.ErrProfileNotFound
	}
	p := x.(contract.Profile)
	return &p, nil
}

func (r *UserDirectoryRepository) Save(ctx context.Context, profile *contract.Profile) error {
	p := *profile
	if existing, err := r.Get(ctx, p.UserID); err == nil && p.CreatedAt.IsZero() {
		p.CreatedAt = existing.CreatedAt
	}
	p.UpdatedAt = r.now()
	r.cache.Set(key(p.UserID), p, cache.NoExpiration)

	r.mu.Lock()
	if p.UserID > r.seq {
		r.seq = p.UserID
	}
	r.mu.Unlock()
	return nil
}

func key(userID int) string {
	return strconv.Itoa(userID)
}
