// Package seed populates a database with demo users, posts and reports for
// development and tests.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"mybuddy/internal/middleware"
	"mybuddy/internal/models"
	"mybuddy/internal/repository"
	"mybuddy/internal/service"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded user.
const DefaultPassword = "password123"

// Options sizes a seeding run.
type Options struct {
	Users        int
	Admins       int // the first Admins users are moderators
	Unconfirmed  int // users left disabled with a pending confirmation token
	PostsPerUser int
	Reports      int
	Password     string
	RandSeed     int64 // 0 for a random run
}

// DefaultOptions returns a small but realistic data set.
func DefaultOptions() Options {
	return Options{
		Users:        20,
		Admins:       2,
		Unconfirmed:  3,
		PostsPerUser: 3,
		Reports:      15,
		Password:     DefaultPassword,
	}
}

func (o Options) validate() error {
	switch {
	case o.Users < 0 || o.Admins < 0 || o.Unconfirmed < 0 || o.PostsPerUser < 0 || o.Reports < 0:
		return errors.New("seed counts must not be negative")
	case o.Admins+o.Unconfirmed > o.Users:
		return fmt.Errorf("admins (%d) plus unconfirmed (%d) exceed users (%d)", o.Admins, o.Unconfirmed, o.Users)
	case o.Reports > 0 && (o.Users == 0 || o.PostsPerUser == 0):
		return errors.New("reports need at least one user and one post")
	case o.Password == "":
		return errors.New("seed password is required")
	}
	return nil
}

// Result lists what a run created.
type Result struct {
	Users   []models.User
	Posts   []models.Post
	Reports []models.Report
	Tokens  []models.ConfirmationToken
}

// Seeder writes seed data through the same services the API uses.
type Seeder struct {
	db       *gorm.DB
	accounts *service.AccountService
	reports  *service.ReportService
}

// NewSeeder binds a Seeder to db.
func NewSeeder(db *gorm.DB) *Seeder {
	repos := repository.NewRepos(db)
	return &Seeder{
		db:       db,
		accounts: service.NewAccountService(repos.Users, repos.Tokens),
		reports:  service.NewReportService(repository.NewTransactor(db), repos.Reports, nil),
	}
}

// seededTables are cleared child-first.
var seededTables = []string{"reports", "confirmation_tokens", "posts", "users"}

// ClearAll removes every row from the seeded tables.
func (s *Seeder) ClearAll(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		return db.Exec("TRUNCATE TABLE reports, confirmation_tokens, posts, users RESTART IDENTITY CASCADE").Error
	}
	for _, table := range seededTables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Seed creates users, posts, pending confirmation tokens and reports.
func (s *Seeder) Seed(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	f := NewFactory(opts.RandSeed, string(hash))
	res := &Result{}

	for i := 0; i < opts.Users; i++ {
		user := f.User(func(u *models.User) {
			u.IsAdmin = i < opts.Admins
			u.Enabled = i < opts.Users-opts.Unconfirmed
		})
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create user %s: %w", user.Username, err)
		}
		res.Users = append(res.Users, user)

		if !user.Enabled {
			token, err := s.accounts.IssueToken(ctx, user.ID)
			if err != nil {
				return nil, err
			}
			res.Tokens = append(res.Tokens, *token)
		}
	}

	for _, user := range res.Users {
		for j := 0; j < opts.PostsPerUser; j++ {
			post := f.Post(user.ID)
			if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
				return nil, fmt.Errorf("create post for %s: %w", user.Username, err)
			}
			res.Posts = append(res.Posts, post)
		}
	}

	for i := 0; i < opts.Reports; i++ {
		post := res.Posts[f.Pick(len(res.Posts))]
		reporter := res.Users[f.Pick(len(res.Users))]
		report, err := s.reports.SaveReport(ctx, strconv.FormatUint(uint64(post.ID), 10), f.ReportInput(reporter.Username))
		if err != nil {
			return nil, fmt.Errorf("create report on post %d: %w", post.ID, err)
		}
		res.Reports = append(res.Reports, *report)
	}

	middleware.Logger.InfoContext(ctx, "seeding complete",
		slog.Int("users", len(res.Users)),
		slog.Int("posts", len(res.Posts)),
		slog.Int("reports", len(res.Reports)),
		slog.Int("pending_tokens", len(res.Tokens)),
	)
	return res, nil
}
