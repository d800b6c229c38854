package service

import (
	"context"
	"fmt"
	"time"

	"mybuddy/internal/models"
	"mybuddy/internal/observability"
	"mybuddy/internal/repository"

	"github.com/google/uuid"
)

// ConfirmationTokenTTL is how long an issued confirmation token stays valid.
const ConfirmationTokenTTL = 24 * time.Hour

// AccountService implements the account verification flow.
type AccountService struct {
	users  repository.UserRepository
	tokens repository.ConfirmationTokenRepository
	now    func() time.Time
}

func NewAccountService(users repository.UserRepository, tokens repository.ConfirmationTokenRepository) *AccountService {
	return &AccountService{
		users:  users,
		tokens: tokens,
		now:    time.Now,
	}
}

// ConfirmAccount enables the user owning token. Confirming twice is harmless.
func (s *AccountService) ConfirmAccount(ctx context.Context, token string) (*models.User, error) {
	ctx, span := observability.StartServiceSpan(ctx, "AccountService", "ConfirmAccount")
	defer span.End()

	if token == "" {
		return nil, models.NewValidationError("Confirmation token is required")
	}

	ct, err := s.tokens.FindByToken(ctx, token)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("confirm account: %w", err)
	}
	if ct == nil {
		return nil, &models.AppError{Code: models.CodeNotFound, Message: "Confirmation token not found"}
	}
	if ct.Expired(s.now()) {
		return nil, models.NewGoneError("Confirmation token has expired")
	}

	user, err := s.users.GetByID(ctx, ct.UserID)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("confirm account: %w", err)
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", ct.UserID)
	}

	if !user.Enabled {
		if err := s.users.Enable(ctx, user.ID); err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("confirm account: %w", err)
		}
		user.Enabled = true
	}
	return user, nil
}

// IssueToken creates a fresh confirmation token for userID.
func (s *AccountService) IssueToken(ctx context.Context, userID uint) (*models.ConfirmationToken, error) {
	now := s.now()
	ct := &models.ConfirmationToken{
		ConfirmationToken: uuid.NewString(),
		UserID:            userID,
		CreatedAt:         now,
		ExpiresAt:         now.Add(ConfirmationTokenTTL),
	}
	if err := s.tokens.Create(ctx, ct); err != nil {
		return nil, fmt.Errorf("issue confirmation token: %w", err)
	}
	return ct, nil
}
