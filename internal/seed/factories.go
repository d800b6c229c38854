package seed

import (
	"fmt"
	"strings"
	"time"

	"mybuddy/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

// Factory builds unsaved domain entities with plausible fake content.
// Two factories with the same non-zero seed produce the same entities.
type Factory struct {
	faker        *gofakeit.Faker
	passwordHash string
	n            int
}

// NewFactory creates a Factory. seed 0 picks a random seed; every user gets passwordHash.
func NewFactory(seed int64, passwordHash string) *Factory {
	return &Factory{faker: gofakeit.New(seed), passwordHash: passwordHash}
}

// User builds an enabled, non-admin user with a unique username.
func (f *Factory) User(overrides ...func(*models.User)) models.User {
	f.n++
	base := strings.ToLower(f.faker.Username())
	if len(base) > 48 {
		base = base[:48]
	}
	username := fmt.Sprintf("%s%d", base, f.n)

	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: f.passwordHash,
		Enabled:  true,
	}
	for _, o := range overrides {
		o(&user)
	}
	return user
}

// Post builds a post by authorID dated within the last 30 days.
func (f *Factory) Post(authorID uint) models.Post {
	now := time.Now()
	created := f.faker.DateRange(now.Add(-30*24*time.Hour), now)
	return models.Post{
		Content:   f.faker.Paragraph(1, 3, 12, " "),
		UserID:    authorID,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

var reportReasons = []string{
	"spam", "harassment", "hate speech", "misinformation", "nudity",
	"violence", "scam or fraud", "impersonation", "off-topic",
}

// ReportInput builds a report body in the shape the intake endpoint accepts.
func (f *Factory) ReportInput(reporter string) models.ReportInput {
	reason := reportReasons[f.faker.IntRange(0, len(reportReasons)-1)]
	return models.ReportInput{
		Username: reporter,
		Message:  fmt.Sprintf("%s: %s", reason, f.faker.Sentence(8)),
	}
}

// Pick returns a pseudo-random index in [0, n).
func (f *Factory) Pick(n int) int {
	return f.faker.IntRange(0, n-1)
}
