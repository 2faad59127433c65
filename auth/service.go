// Package auth is the credential service: registration, login with a
// failed-attempt lockout, session tokens and profile avatars.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"intelplatform/db"
	"intelplatform/models"
	"intelplatform/store"
)

// Session is the identity handed to the presentation layer after login.
type Session struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Token    string `json:"token"`
}

// Options tune the lockout and profile behaviour of a Service.
type Options struct {
	Threshold      int
	Window         time.Duration
	UsernamePolicy string
	AvatarDir      string
}

type Service struct {
	users   *store.Users
	tracker FailureTracker
	tokens  *Tokens
	policy  *Policy
	opts    Options
	log     *zap.Logger
	now     func() time.Time
}

func NewService(users *store.Users, tracker FailureTracker, tokens *Tokens, opts Options, log *zap.Logger) *Service {
	if opts.Threshold <= 0 {
		opts.Threshold = 3
	}
	if opts.Window <= 0 {
		opts.Window = 300 * time.Second
	}
	return &Service{
		users:   users,
		tracker: tracker,
		tokens:  tokens,
		policy:  NewPolicy(opts.UsernamePolicy),
		opts:    opts,
		log:     log,
		now:     time.Now,
	}
}

// Tokens exposes the token verifier used by the JSON API.
func (s *Service) Tokens() *Tokens { return s.tokens }

// Register validates and stores a new account and grades its password.
func (s *Service) Register(ctx context.Context, username, password, role string) (Strength, error) {
	if err := s.policy.Check(username, password, role); err != nil {
		return "", err
	}

	hash, err := db.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.users.Insert(ctx, username, hash, role); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return "", ErrDuplicateUser
		}
		return "", err
	}

	s.log.Info("user registered", zap.String("username", username), zap.String("role", role))
	return PasswordStrength(password), nil
}

// RegisterSelf is Register for anonymous signup: only department roles are
// accepted.
func (s *Service) RegisterSelf(ctx context.Context, username, password, role string) (Strength, error) {
	if !SignupRole(role) {
		return "", ErrInvalidRole
	}
	return s.Register(ctx, username, password, role)
}

// Authenticate checks the lockout state, then the credentials. Every failure,
// including an unknown username, counts towards the lockout.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	now := s.now()

	rec, ok, err := s.tracker.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if ok {
		elapsed := now.Sub(rec.LastFailure)
		if elapsed < s.opts.Window && rec.Count >= s.opts.Threshold {
			return nil, &LockoutError{Remaining: s.opts.Window - elapsed}
		}
		if elapsed >= s.opts.Window {
			if err := s.tracker.Clear(ctx, username); err != nil {
				return nil, err
			}
		}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		db.CheckPasswordHash(password, db.DummyHash)
		return nil, s.fail(ctx, username, now, ErrUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !db.CheckPasswordHash(password, user.PasswordHash) {
		return nil, s.fail(ctx, username, now, ErrBadCredentials)
	}

	if err := s.tracker.Clear(ctx, username); err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(user.Username, user.Role)
	if err != nil {
		return nil, err
	}
	return &Session{Username: user.Username, Role: user.Role, Token: token}, nil
}

// RecordFailedAttempt bumps the failure counter for username.
func (s *Service) RecordFailedAttempt(ctx context.Context, username string) (FailureRecord, error) {
	return s.tracker.Record(ctx, username, s.now())
}

func (s *Service) fail(ctx context.Context, username string, at time.Time, cause error) error {
	rec, err := s.tracker.Record(ctx, username, at)
	if err != nil {
		return errors.Join(cause, err)
	}
	if rec.Count >= s.opts.Threshold {
		s.log.Warn("login locked", zap.String("username", username), zap.Int("failures", rec.Count))
		return &LockoutError{Remaining: s.opts.Window, Cause: cause}
	}
	return cause
}

// Profile returns the stored account for username.
func (s *Service) Profile(ctx context.Context, username string) (*models.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// Users lists every account.
func (s *Service) Users(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}
