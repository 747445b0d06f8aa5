package domain

import "time"

// Token represents issued access token metadata.
type Token struct {
	UserID    int64
	Profile   UserProfile
	ExpiresAt time.Time
	IssuedAt  time.Time
}
