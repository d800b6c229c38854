// Package service holds the business rules that sit between HTTP handlers and repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"mybuddy/internal/cache"
	"mybuddy/internal/featureflags"
	"mybuddy/internal/models"
	"mybuddy/internal/observability"
	"mybuddy/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

var (
	errPostMissing     = errors.New("post missing")
	errReporterMissing = errors.New("reporter missing")
)

// ReportService validates and persists moderation reports.
type ReportService struct {
	tx      repository.Transactor
	reports repository.ReportRepository
	flags   *featureflags.Manager
}

// NewReportService wires a ReportService. flags may be nil, which disables the listing cache.
func NewReportService(tx repository.Transactor, reports repository.ReportRepository, flags *featureflags.Manager) *ReportService {
	return &ReportService{
		tx:      tx,
		reports: reports,
		flags:   flags,
	}
}

// SaveReport files a report by in.Username against the post identified by postID.
// The post and reporter existence checks and the insert share one transaction.
// A missing post or reporter yields a NOT_FOUND *models.AppError; other errors are storage faults.
func (s *ReportService) SaveReport(ctx context.Context, postID string, in models.ReportInput) (*models.Report, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ReportService", "SaveReport",
		attribute.String("report.post_id", postID),
	)
	defer span.End()

	id, err := strconv.ParseUint(postID, 10, 32)
	if err != nil || id == 0 {
		observability.ReportsRejected.WithLabelValues(observability.RejectReasonPost).Inc()
		return nil, models.NewNotFoundError("Post", postID)
	}

	report := &models.Report{
		PostID:   uint(id),
		Username: in.Username,
		Message:  in.Message,
	}

	err = s.tx.InTx(ctx, func(r repository.Repos) error {
		postExists, err := r.Posts.Exists(ctx, report.PostID)
		if err != nil {
			return err
		}
		if !postExists {
			return errPostMissing
		}

		userExists, err := r.Users.ExistsByUsername(ctx, report.Username)
		if err != nil {
			return err
		}
		if !userExists {
			return errReporterMissing
		}

		return r.Reports.Create(ctx, report)
	})

	switch {
	case errors.Is(err, errPostMissing), errors.Is(err, repository.ErrReportedPostMissing):
		observability.ReportsRejected.WithLabelValues(observability.RejectReasonPost).Inc()
		return nil, models.NewNotFoundError("Post", report.PostID)
	case errors.Is(err, errReporterMissing):
		observability.ReportsRejected.WithLabelValues(observability.RejectReasonUser).Inc()
		return nil, models.NewNotFoundByError("User", "username", report.Username)
	case err != nil:
		span.SetError(err)
		return nil, fmt.Errorf("save report: %w", err)
	}

	cache.InvalidateReportsList(ctx)
	observability.ReportsCreated.Inc()
	return report, nil
}

// FindAll returns every report ordered by id. The slice is never nil.
func (s *ReportService) FindAll(ctx context.Context) ([]models.Report, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ReportService", "FindAll")
	defer span.End()

	var reports []models.Report
	load := func() error {
		var err error
		reports, err = s.reports.List(ctx)
		return err
	}

	var err error
	key, cacheable := "", false
	if s.flags.EnabledGlobally(featureflags.ReportListCache) {
		key, cacheable = cache.ReportsListKey(ctx)
	}
	if cacheable {
		err = cache.Aside(ctx, key, &reports, cache.ReportsListTTL, load)
	} else {
		err = load()
	}
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("find reports: %w", err)
	}

	if reports == nil {
		reports = []models.Report{}
	}
	return reports, nil
}

// DeleteReport removes the report with id. Deleting an absent report is not an error;
// the boolean reports whether a row was removed.
func (s *ReportService) DeleteReport(ctx context.Context, id uint) (bool, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ReportService", "DeleteReport",
		attribute.Int64("report.id", int64(id)),
	)
	defer span.End()

	deleted, err := s.reports.Delete(ctx, id)
	if err != nil {
		span.SetError(err)
		return false, fmt.Errorf("delete report: %w", err)
	}
	if deleted {
		cache.InvalidateReportsList(ctx)
		observability.ReportsDeleted.Inc()
	}
	return deleted, nil
}
