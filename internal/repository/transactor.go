package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repos bundles repositories bound to the same database handle, typically one transaction.
type Repos struct {
	Users   UserRepository
	Posts   PostRepository
	Reports ReportRepository
	Tokens  ConfirmationTokenRepository
}

// NewRepos binds every repository to db.
func NewRepos(db *gorm.DB) Repos {
	return Repos{
		Users:   NewUserRepository(db),
		Posts:   NewPostRepository(db),
		Reports: NewReportRepository(db),
		Tokens:  NewConfirmationTokenRepository(db),
	}
}

// Transactor runs a unit of work in one database transaction.
type Transactor interface {
	// InTx commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(r Repos) error) error
}

type transactor struct {
	db *gorm.DB
}

// NewTransactor returns a Transactor backed by db.
func NewTransactor(db *gorm.DB) Transactor {
	return &transactor{db: db}
}

func (t *transactor) InTx(ctx context.Context, fn func(r Repos) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepos(tx))
	})
}
