package repository

import (
	"context"
	"errors"
	"fmt"

	"mybuddy/internal/models"

	"gorm.io/gorm"
)

// ConfirmationTokenRepository looks up and stores account confirmation tokens.
type ConfirmationTokenRepository interface {
	// FindByToken returns nil, nil when no token matches.
	FindByToken(ctx context.Context, token string) (*models.ConfirmationToken, error)
	Create(ctx context.Context, token *models.ConfirmationToken) error
}

type confirmationTokenRepository struct {
	db *gorm.DB
}

// NewConfirmationTokenRepository returns a ConfirmationTokenRepository backed by db.
func NewConfirmationTokenRepository(db *gorm.DB) ConfirmationTokenRepository {
	return &confirmationTokenRepository{db: db}
}

func (r *confirmationTokenRepository) FindByToken(ctx context.Context, token string) (*models.ConfirmationToken, error) {
	if token == "" {
		return nil, nil
	}
	var ct models.ConfirmationToken
	if err := r.db.WithContext(ctx).Where("confirmation_token = ?", token).First(&ct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find confirmation token: %w", err)
	}
	return &ct, nil
}

func (r *confirmationTokenRepository) Create(ctx context.Context, token *models.ConfirmationToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("create confirmation token: %w", err)
	}
	return nil
}
