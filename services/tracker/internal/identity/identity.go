// Package identity registers users, checks credentials and edits profiles.
package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/tracksm/services/tracker/internal/store"
)

const (
	minPasswordLen = 6
	minUsernameLen = 3
	maxUsernameLen = 30
	fallbackName   = "usuario"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindUnauthorized
	KindNotFound
)

// Error carries a human-readable message for the API envelope.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string
}

func (e *Error) Error() string { return e.Message }

func invalid(code, field, msg string) error {
	return &Error{Kind: KindValidation, Code: code, Message: msg, Field: field}
}

var errInvalidCredentials = &Error{Kind: KindUnauthorized, Code: "AUTH_INVALID_CREDENTIALS", Message: "invalid credentials"}

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	PhotoURL string `json:"photoUrl"`
}

type Session struct {
	User        User      `json:"user"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProfileInput struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	PhotoURL string `json:"photoUrl"`
}

type Service struct {
	Users  store.UserRepository
	Tokens Tokens
	Log    *zap.Logger
	// Cost overrides bcrypt.DefaultCost; tests lower it.
	Cost int
	Now  func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if name == "" {
		return Session{}, invalid("VALIDATION_NAME", "name", "name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return Session{}, invalid("VALIDATION_EMAIL", "email", "valid email is required")
	}
	if len(in.Password) < minPasswordLen {
		return Session{}, invalid("VALIDATION_PASSWORD", "password", fmt.Sprintf("password must have at least %d characters", minPasswordLen))
	}

	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.Users.CreateUser(ctx, store.User{
		Name:         name,
		Email:        email,
		Username:     UsernameFromName(name),
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Session{}, &Error{Kind: KindConflict, Code: "EMAIL_TAKEN", Message: "email already registered", Field: "email"}
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}
	s.log().Info("user registered", zap.String("user_id", u.ID))
	return s.issue(u)
}

func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return Session{}, invalid("VALIDATION_LOGIN", "email", "email and password are required")
	}

	u, err := s.Users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, errInvalidCredentials
		}
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return Session{}, errInvalidCredentials
	}
	return s.issue(u)
}

// UpdateProfile replaces name, username and photo of userID.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (User, error) {
	name := strings.TrimSpace(in.Name)
	username := NormalizeUsername(in.Username)
	if name == "" {
		return User{}, invalid("VALIDATION_NAME", "name", "name is required")
	}
	if username == "" {
		return User{}, invalid("VALIDATION_USERNAME", "username", "username is required")
	}
	if !usernamePattern.MatchString(username) {
		return User{}, invalid("VALIDATION_USERNAME", "username", "username may only contain a-z, 0-9, '.' and '_'")
	}

	u, err := s.Users.UpdateProfile(ctx, userID, store.ProfileUpdate{
		Name:     name,
		Username: username,
		PhotoURL: strings.TrimSpace(in.PhotoURL),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return User{}, &Error{Kind: KindNotFound, Code: "USER_NOT_FOUND", Message: "user not found"}
		}
		return User{}, fmt.Errorf("update profile: %w", err)
	}
	return toUser(u), nil
}

func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return User{}, &Error{Kind: KindNotFound, Code: "USER_NOT_FOUND", Message: "user not found"}
		}
		return User{}, err
	}
	return toUser(u), nil
}

func (s *Service) issue(u store.User) (Session, error) {
	tok, exp, err := s.Tokens.NewAccessToken(u.ID, u.Email, s.now())
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{User: toUser(u), AccessToken: tok, ExpiresAt: exp}, nil
}

func toUser(u store.User) User {
	username := u.Username
	if username == "" {
		username = UsernameFromName(u.Name)
	}
	return User{ID: u.ID, Name: u.Name, Email: u.Email, Username: username, PhotoURL: u.PhotoURL}
}

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9._]{1,30}$`)
	spaces          = regexp.MustCompile(`\s+`)
	disallowed      = regexp.MustCompile(`[^a-z0-9._]`)
)

// UsernameFromName derives a default handle: "Ana Maria" -> "ana.maria".
func UsernameFromName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = spaces.ReplaceAllString(s, ".")
	s = disallowed.ReplaceAllString(s, "")
	s = strings.Trim(s, "._")
	if len(s) < minUsernameLen {
		return fallbackName
	}
	if len(s) > maxUsernameLen {
		s = s[:maxUsernameLen]
	}
	return s
}

// NormalizeUsername strips leading '@' and lowercases.
func NormalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(raw), "@"))
}
