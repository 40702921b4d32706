package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/curakidney/api/internal/platform/apperr"
	"github.com/curakidney/api/internal/platform/auth"
	"github.com/curakidney/api/internal/platform/notification"
)

const invalidCredentials = "invalid email or password"

// Notifier renders and delivers a templated notification.
type Notifier interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

type Service struct {
	repo       UserRepository
	jwt        auth.JWTConfig
	bcryptCost int
	notifier   Notifier
	logger     zerolog.Logger
	now        func() time.Time
}

// NewService wires the account service. notifier may be nil, in which case
// no welcome email is sent.
func NewService(repo UserRepository, jwt auth.JWTConfig, bcryptCost int, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		jwt:        jwt,
		bcryptCost: bcryptCost,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, apperr.Validation(apperr.FieldViolation{
			Field:   "password",
			Rule:    "max_bytes",
			Message: fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes),
		})
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	u := &User{
		Email:        normalizeEmail(req.Email),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, apperr.Internal(err)
	}

	s.welcome(ctx, u)
	return u, nil
}

// welcome is best effort. A failed delivery stays in the notification
// history and is logged.
func (s *Service) welcome(ctx context.Context, u *User) {
	if s.notifier == nil {
		return
	}
	data := map[string]string{"name": u.Name, "email": u.Email}
	if _, err := s.notifier.SendFromTemplate(ctx, notification.TemplateWelcome, data, u.Email); err != nil {
		s.logger.Warn().Err(err).Str("user_id", u.ID.String()).Msg("welcome email not delivered")
	}
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.Authentication(invalidCredentials, nil)
		}
		return nil, apperr.Internal(err)
	}

	if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperr.Authentication(invalidCredentials, nil)
		}
		return nil, apperr.Internal(err)
	}

	now := s.now()
	tok, exp, err := auth.IssueToken(s.jwt, auth.Identity{
		UserID: u.ID.String(),
		Email:  u.Email,
		Name:   u.Name,
	}, now)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &TokenResponse{
		AccessToken: tok,
		TokenType:   "Bearer",
		ExpiresIn:   int64(exp.Sub(now).Seconds()),
		ExpiresAt:   exp.UTC(),
	}, nil
}

// Profile returns the user a token was issued to.
func (s *Service) Profile(ctx context.Context, userID string) (*User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.NotFound("user", userID)
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("user", userID)
		}
		return nil, apperr.Internal(err)
	}
	return u, nil
}
