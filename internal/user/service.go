package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/jvaesteves/user-service/internal/auth"
	"github.com/jvaesteves/user-service/internal/session"
)

type Service interface {
	Register(ctx context.Context, input RegisterInput) (*User, error)
	Login(ctx context.Context, email, password string) (*User, error)
	Profile(ctx context.Context, id uuid.UUID, token string) (*User, error)
	VerifyPassword(user *User, password string) Verification
	RefreshSession(ctx context.Context, refresh SessionRefresh) error
}

// Tokens mints and inspects bearer tokens.
type Tokens interface {
	Mint(userID uuid.UUID, now time.Time) (string, error)
	Subject(token string) (uuid.UUID, error)
}

type Option func(*service)

// WithClock replaces the wall clock used for timestamps and session checks.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

type service struct {
	repo   Repository
	tokens Tokens
	policy session.Policy
	now    func() time.Time
}

func NewService(repo Repository, tokens Tokens, policy session.Policy, opts ...Option) Service {
	s := &service{
		repo:   repo,
		tokens: tokens,
		policy: policy,
		now:    Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current UTC time at the precision PostgreSQL stores.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	passwordHash, err := auth.HashPassword(input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, ErrPasswordTooLong
		}
		return nil, fmt.Errorf("internal error hashing password: %w", err)
	}

	userID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}

	now := s.now()
	token, err := s.tokens.Mint(userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to mint token: %w", err)
	}

	user := &User{
		ID:           userID,
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: passwordHash,
		Token:        token,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		log.Error().Err(err).Msg("failed to create user in repository")
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	for i, p := range input.Phones {
		phoneID, err := uuid.NewV4()
		if err != nil {
			return nil, s.rollbackRegistration(ctx, user.ID, err)
		}

		phone := Phone{
			ID:        phoneID,
			UserID:    user.ID,
			Position:  i,
			DDD:       p.DDD,
			Number:    p.Number,
			CreatedAt: now,
		}
		if err := s.repo.CreatePhone(ctx, &phone); err != nil {
			return nil, s.rollbackRegistration(ctx, user.ID, err)
		}
		user.Phones = append(user.Phones, phone)
	}

	return user, nil
}

// rollbackRegistration removes a user whose phones could not all be stored.
// The delete runs even when the request context is already cancelled.
func (s *service) rollbackRegistration(ctx context.Context, userID uuid.UUID, cause error) error {
	err := cause
	if delErr := s.repo.Delete(context.WithoutCancel(ctx), userID); delErr != nil {
		err = multierr.Append(err, fmt.Errorf("rollback user %s: %w", userID, delErr))
	}

	log.Error().Err(err).Stringer("user_id", userID).Msg("registration rolled back")
	return fmt.Errorf("%w: %w", ErrPhoneNotSaved, err)
}

func (s *service) VerifyPassword(user *User, password string) Verification {
	if user == nil || !auth.ComparePassword(user.PasswordHash, password) {
		return Verification{}
	}
	return Verification{
		Match:   true,
		Refresh: &SessionRefresh{UserID: user.ID, At: s.now()},
	}
}

func (s *service) RefreshSession(ctx context.Context, refresh SessionRefresh) error {
	if err := s.repo.UpdateLastLogin(ctx, refresh); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", refresh.UserID).Msg("failed to refresh session")
		return fmt.Errorf("failed to refresh session for user '%s': %w", refresh.UserID, err)
	}
	return nil
}

func (s *service) Login(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Msg("failed to get user by email in repository")
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	verification := s.VerifyPassword(user, password)
	if !verification.Match {
		return nil, ErrInvalidCredentials
	}

	if err := s.RefreshSession(ctx, *verification.Refresh); err != nil {
		return nil, err
	}
	at := verification.Refresh.At
	user.LastLogin = &at
	user.UpdatedAt = at

	return user, nil
}

func (s *service) Profile(ctx context.Context, id uuid.UUID, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	if subject, err := s.tokens.Subject(token); err != nil || subject != id {
		return nil, ErrUnauthorized
	}

	user, err := s.repo.GetByIDAndToken(ctx, id, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("failed to get user by id and token in repository")
		return nil, fmt.Errorf("failed to get user by id '%s': %w", id, err)
	}

	state := s.policy.Evaluate(user.LastLogin, s.now())
	if !state.Valid() {
		log.Debug().Stringer("user_id", id).Stringer("state", state).Msg("session rejected")
		return nil, ErrInvalidSession
	}

	return user, nil
}
