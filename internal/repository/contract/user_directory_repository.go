package contract

import (
	"context"
	"errors"
	"time"
)

var ErrProfileNotFound = errors.New("profile not found")

// Profile is what the kiosk remembers about a shopper between visits.
type Profile struct {
	UserID    int       `json:"user_id"`
	UserName  string    `json:"user_name"`
	Mood      string    `json:"mood"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserDirectoryRepository interface {
	// Register allocates the next user id and stores the profile under it.
	Register(ctx context.Context, userName, mood string) (*Profile, error)
	Get(ctx context.Context, userID int) (*Profile, error)
	// Save upserts the profile, typically to refresh the last detected mood.
	Save(ctx context.Context, profile *Profile) error
}
