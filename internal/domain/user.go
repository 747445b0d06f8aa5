package domain

// UserProfile distinguishes administrators from regular agents.
type UserProfile string

const (
	UserProfileAdmin UserProfile = "admin"
	UserProfileUser  UserProfile = "user"
)

// User is a human agent working tickets.
type User struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Profile  UserProfile `json:"profile"`
	QueueIDs []int64     `json:"-"`
}
