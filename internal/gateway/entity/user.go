package entity

import "strings"

// UserID identifies an authenticated user as issued by the identity provider.
type UserID string

// User is the row written to the users table after token verification.
type User struct {
	ID          UserID
	Email       string
	DisplayName string
	IconURL     string
	ProfileID   string
	CreatedAt   string
}

func NormalizeUserID(raw string) UserID {
	return UserID(strings.TrimSpace(raw))
}

func (id UserID) String() string {
	return strings.TrimSpace(string(id))
}

func (id UserID) IsZero() bool {
	return id.String() == ""
}
