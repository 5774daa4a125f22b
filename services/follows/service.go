// Package follows maintains the directed follower graph between users.
package follows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"filmlog/internal/database"
	"filmlog/models"
)

var (
	ErrUserIDRequired   = errors.New("user id is required")
	ErrSelfFollow       = errors.New("users cannot follow themselves")
	ErrAlreadyFollowing = errors.New("already following")
	ErrNotFollowing     = errors.New("not following")
	ErrUserNotFound     = errors.New("user not found")
)

type Service struct {
	db  *database.DB
	now func() time.Time
}

func NewService(db *database.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Follow creates the edge follower -> followed.
func (s *Service) Follow(ctx context.Context, followerID, followedID string) (models.Follow, error) {
	followerID, followedID = strings.TrimSpace(followerID), strings.TrimSpace(followedID)
	if followerID == "" || followedID == "" {
		return models.Follow{}, ErrUserIDRequired
	}
	if followerID == followedID {
		return models.Follow{}, ErrSelfFollow
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, followedID).Scan(&exists)
	if err != nil {
		return models.Follow{}, fmt.Errorf("lookup user: %w", err)
	}
	if exists == 0 {
		return models.Follow{}, ErrUserNotFound
	}

	f := models.Follow{FollowerID: followerID, FollowedID: followedID, CreatedAt: s.now()}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO follows (follower_id, followed_id, created_at) VALUES (?, ?, ?)`,
		f.FollowerID, f.FollowedID, f.CreatedAt)
	switch {
	case database.IsUniqueViolation(err):
		return models.Follow{}, ErrAlreadyFollowing
	case database.IsCheckViolation(err):
		return models.Follow{}, ErrSelfFollow
	case err != nil:
		return models.Follow{}, fmt.Errorf("insert follow: %w", err)
	}
	return f, nil
}

// Unfollow removes the edge follower -> followed.
func (s *Service) Unfollow(ctx context.Context, followerID, followedID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = ? AND followed_id = ?`, followerID, followedID)
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFollowing
	}
	return nil
}

// IsFollowing reports whether follower follows followed.
func (s *Service) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM follows WHERE follower_id = ? AND followed_id = ?`, followerID, followedID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check follow: %w", err)
	}
	return n > 0, nil
}

// Following lists the users userID follows, newest edge first.
func (s *Service) Following(ctx context.Context, userID string) ([]models.Follow, error) {
	return s.list(ctx, `follower_id = ?`, userID)
}

// Followers lists the users following userID, newest edge first.
func (s *Service) Followers(ctx context.Context, userID string) ([]models.Follow, error) {
	return s.list(ctx, `followed_id = ?`, userID)
}

func (s *Service) list(ctx context.Context, where string, userID string) ([]models.Follow, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT follower_id, followed_id, created_at FROM follows
		WHERE `+where+` ORDER BY created_at DESC, follower_id, followed_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list follows: %w", err)
	}
	defer rows.Close()

	out := []models.Follow{}
	for rows.Next() {
		var f models.Follow
		if err := rows.Scan(&f.FollowerID, &f.FollowedID, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.CreatedAt = f.CreatedAt.UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}
