package models

import (
	"encoding/json"
	"time"
)

// User models an account that owns lists and appears in the activity feed.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`           // bcrypt hash, excluded from JSON
	Hidden       bool      `json:"hidden"`      // activity hidden from everyone
	FriendsOnly  bool      `json:"friendsOnly"` // activity visible to followed users only
	CreatedAt    time.Time `json:"createdAt"`
}

// Privacy is the user-editable visibility of activity.
type Privacy struct {
	Hidden      bool `json:"hidden"`
	FriendsOnly bool `json:"friendsOnly"`
}

// Public reports whether the user's activity is visible to everyone.
func (u User) Public() bool {
	return !u.Hidden && !u.FriendsOnly
}

// MarshalJSON implements custom JSON marshaling to include the computed public field.
func (u User) MarshalJSON() ([]byte, error) {
	type UserAlias User // prevent recursion
	return json.Marshal(&struct {
		UserAlias
		Public bool `json:"public"`
	}{
		UserAlias: UserAlias(u),
		Public:    u.Public(),
	})
}
