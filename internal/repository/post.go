package repository

import (
	"context"
	"fmt"

	"mybuddy/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the post operations moderation depends on.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	// Exists reports whether a post with id exists and is not soft-deleted.
	Exists(ctx context.Context, id uint) (bool, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

func (r *postRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check post %d: %w", id, err)
	}
	return n > 0, nil
}
