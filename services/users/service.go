package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"filmlog/internal/database"
	"filmlog/models"
)

var (
	ErrUsernameInvalid    = errors.New("username must be 3-32 letters, digits, dots, dashes or underscores")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSecretRequired     = errors.New("jwt secret is required")
)

const minPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

// Claims is the JWT payload issued on login.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Options configures token issuing.
type Options struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// Service manages accounts, credentials and privacy settings.
type Service struct {
	db     *database.DB
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a users service backed by db.
func NewService(db *database.DB, opts Options) (*Service, error) {
	if strings.TrimSpace(opts.JWTSecret) == "" {
		return nil, ErrSecretRequired
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{
		db:     db,
		secret: []byte(opts.JWTSecret),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register creates an account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return models.User{}, ErrUsernameInvalid
	}
	if len(password) < minPasswordLength {
		return models.User{}, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, hidden, friends_only, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, false, false, user.CreatedAt)
	if database.IsUniqueViolation(err) {
		return models.User{}, ErrUsernameTaken
	}
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}

	log.Printf("[users] registered %s (%s)", user.Username, user.ID)
	return user, nil
}

// Login verifies credentials and issues a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (string, models.User, error) {
	user, err := s.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return "", models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", models.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", models.User{}, ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", models.User{}, err
	}
	return token, user, nil
}

// IssueToken signs an HS256 token for user.
func (s *Service) IssueToken(user models.User) (string, error) {
	now := s.now()
	claims := Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token and returns the user id it was issued to.
func (s *Service) ParseToken(token string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if len(next) < minPasswordLength {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, string(hash), id); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Get looks a user up by id.
func (s *Service) Get(ctx context.Context, id string) (models.User, error) {
	return s.scanOne(ctx, `WHERE id = ?`, strings.TrimSpace(id))
}

// GetByUsername looks a user up by username.
func (s *Service) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return s.scanOne(ctx, `WHERE username = ?`, strings.TrimSpace(username))
}

// SetPrivacy updates who can see the user's activity.
func (s *Service) SetPrivacy(ctx context.Context, id string, p models.Privacy) (models.User, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET hidden = ?, friends_only = ? WHERE id = ?`, p.Hidden, p.FriendsOnly, id)
	if err != nil {
		return models.User{}, fmt.Errorf("update privacy: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.User{}, ErrUserNotFound
	}
	return s.Get(ctx, id)
}

func (s *Service) scanOne(ctx context.Context, where string, arg string) (models.User, error) {
	if arg == "" {
		return models.User{}, ErrUserNotFound
	}
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, hidden, friends_only, created_at FROM users `+where, arg).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Hidden, &u.FriendsOnly, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("load user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}
