// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"fmt"

	"mybuddy/internal/models"
	"mybuddy/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrReportedPostMissing is returned by ReportRepository.Create when the
// referenced post no longer exists at insert time.
var ErrReportedPostMissing = errors.New("reported post does not exist")

// pgForeignKeyViolation is the PostgreSQL SQLSTATE for foreign_key_violation.
const pgForeignKeyViolation = "23503"

// ReportRepository defines persistence operations for moderation reports.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	List(ctx context.Context) ([]models.Report, error)
	// Delete removes the report with id and reports whether a row existed.
	Delete(ctx context.Context, id uint) (bool, error)
}

type reportRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewReportRepository returns a ReportRepository backed by db.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db, log: observability.NewRepoLogger("reports")}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		if isForeignKeyViolation(err) {
			return ErrReportedPostMissing
		}
		r.log.LogError(ctx, err, "create")
		return fmt.Errorf("create report: %w", err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"id": report.ID, "post_id": report.PostID})
	return nil
}

func (r *reportRepository) List(ctx context.Context) ([]models.Report, error) {
	reports := make([]models.Report, 0)
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&reports).Error; err != nil {
		r.log.LogError(ctx, err, "list")
		return nil, fmt.Errorf("list reports: %w", err)
	}
	r.log.LogRead(ctx, map[string]interface{}{"count": len(reports)})
	return reports, nil
}

func (r *reportRepository) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Report{}, id)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete")
		return false, fmt.Errorf("delete report %d: %w", id, res.Error)
	}
	r.log.LogDelete(ctx, map[string]interface{}{"id": id, "rows": res.RowsAffected})
	return res.RowsAffected > 0, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
