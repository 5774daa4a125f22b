package models

import "time"

// Follow is a directed edge from follower to followed.
type Follow struct {
	FollowerID string    `json:"followerId"`
	FollowedID string    `json:"followedId"`
	CreatedAt  time.Time `json:"createdAt"`
}
