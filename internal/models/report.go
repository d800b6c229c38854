package models

import "time"

// Report flags a newsfeed post for moderation review.
// Reports are hard-deleted; there is no DeletedAt column.
type Report struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	Post      *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Username  string    `gorm:"size:64;not null;index" json:"username"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ReportInput is the body accepted by the report intake endpoint.
type ReportInput struct {
	Username string `json:"username" validate:"required,max=64"`
	Message  string `json:"message" validate:"required,max=1000"`
}
