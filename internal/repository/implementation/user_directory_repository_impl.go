package implementation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"smart-supermarket/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

const (
	userSeqKey    = "kiosk:users:seq"
	userKeyPrefix = "kiosk:users:"
)

// raiseSeq moves the id sequence up to ARGV[1] and never lowers it.
var raiseSeq = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local id = tonumber(ARGV[1])
if id > current then
	redis.call("SET", KEYS[1], id)
	return id
end
return current
`)

type userDirectoryRepository struct {
	rdb *redis.Client
	now func() time.Time
}

func NewUserDirectoryRepository(rdb *redis.Client) contract.UserDirectoryRepository {
	return &userDirectoryRepository{rdb: rdb, now: time.Now}
}

func (r *userDirectoryRepository) Register(ctx context.Context, userName, mood string) (*contract.Profile, error) {
	id, err := r.rdb.Incr(ctx, userSeqKey).Result()
	if err != nil {
		return nil, fmt.Errorf("allocate user id: %w", err)
	}

	now := r.now().UTC()
	p := &contract.Profile{UserID: int(id), UserName: userName, Mood: mood, CreatedAt: now, UpdatedAt: now}
	if err := r.write(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *userDirectoryRepository) Get(ctx context.Context, userID int) (*contract.Profile, error) {
	fields, err := r.rdb.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	if len(fields) == 0 {
		return nil, contract.ErrProfileNotFound
	}

	p := &contract.Profile{
		UserID:   userID,
		UserName: fields["user_name"],
		Mood:     fields["mood"],
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return p, nil
}

func (r *userDirectoryRepository) Save(ctx context.Context, profile *contract.Profile) error {
	p := *profile
	p.UpdatedAt = r.now().UTC()
	if p.CreatedAt.IsZero() {
		existing, err := r.Get(ctx, p.UserID)
		switch {
		case err == nil:
			p.CreatedAt = existing.CreatedAt
		case errors.Is(err, contract.ErrProfileNotFound):
			p.CreatedAt = p.UpdatedAt
		default:
			return err
		}
	}
	if err := r.write(ctx, &p); err != nil {
		return err
	}

	// Keep INCR ahead of ids that were assigned elsewhere.
	if err := raiseSeq.Run(ctx, r.rdb, []string{userSeqKey}, p.UserID).Err(); err != nil {
		return fmt.Errorf("raise user sequence: %w", err)
	}
	return nil
}

func (r *userDirectoryRepository) write(ctx context.Context, p *contract.Profile) error {
	err := r.rdb.HSet(ctx, userKey(p.UserID),
		"user_name", p.UserName,
		"mood", p.Mood,
		"created_at", p.CreatedAt.Format(time.RFC3339Nano),
		"updated_at", p.UpdatedAt.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("save user %d: %w", p.UserID, err)
	}
	return nil
}

func userKey(userID int) string {
	return userKeyPrefix + strconv.Itoa(userID)
}
