package service

import (
	"context"

	"mybuddy/internal/models"
	"mybuddy/internal/repository"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn func(context.Context, *models.Post) error
	existsFn func(context.Context, uint) (bool, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) Exists(ctx context.Context, id uint) (bool, error) {
	return s.existsFn(ctx, id)
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn          func(context.Context, uint) (*models.User, error)
	getByUsernameFn    func(context.Context, string) (*models.User, error)
	existsByUsernameFn func(context.Context, string) (bool, error)
	createFn           func(context.Context, *models.User) error
	enableFn           func(context.Context, uint) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.existsByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Enable(ctx context.Context, id uint) error {
	return s.enableFn(ctx, id)
}

// reportRepoStub is a stub for repository.ReportRepository.
type reportRepoStub struct {
	createFn func(context.Context, *models.Report) error
	listFn   func(context.Context) ([]models.Report, error)
	deleteFn func(context.Context, uint) (bool, error)
}

func (s *reportRepoStub) Create(ctx context.Context, report *models.Report) error {
	return s.createFn(ctx, report)
}
func (s *reportRepoStub) List(ctx context.Context) ([]models.Report, error) {
	return s.listFn(ctx)
}
func (s *reportRepoStub) Delete(ctx context.Context, id uint) (bool, error) {
	return s.deleteFn(ctx, id)
}

// tokenRepoStub is a stub for repository.ConfirmationTokenRepository.
type tokenRepoStub struct {
	findByTokenFn func(context.Context, string) (*models.ConfirmationToken, error)
	createFn      func(context.Context, *models.ConfirmationToken) error
}

func (s *tokenRepoStub) FindByToken(ctx context.Context, token string) (*models.ConfirmationToken, error) {
	return s.findByTokenFn(ctx, token)
}
func (s *tokenRepoStub) Create(ctx context.Context, token *models.ConfirmationToken) error {
	return s.createFn(ctx, token)
}

// txStub runs the unit of work directly against its repos and records the outcome.
type txStub struct {
	repos      repository.Repos
	committed  bool
	rolledBack bool
}

func (s *txStub) InTx(_ context.Context, fn func(repository.Repos) error) error {
	if err := fn(s.repos); err != nil {
		s.rolledBack = true
		return err
	}
	s.committed = true
	return nil
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(context.Context, *models.Post) error { return nil },
		existsFn: func(context.Context, uint) (bool, error) { return true, nil },
	}
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:          func(context.Context, uint) (*models.User, error) { return nil, nil },
		getByUsernameFn:    func(context.Context, string) (*models.User, error) { return nil, nil },
		existsByUsernameFn: func(context.Context, string) (bool, error) { return true, nil },
		createFn:           func(context.Context, *models.User) error { return nil },
		enableFn:           func(context.Context, uint) error { return nil },
	}
}

func noopReportRepo() *reportRepoStub {
	return &reportRepoStub{
		createFn: func(_ context.Context, r *models.Report) error { r.ID = 1; return nil },
		listFn:   func(context.Context) ([]models.Report, error) { return nil, nil },
		deleteFn: func(context.Context, uint) (bool, error) { return false, nil },
	}
}
