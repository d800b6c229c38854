package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"mybuddy/internal/cache"
	"mybuddy/internal/featureflags"
	"mybuddy/internal/models"
	"mybuddy/internal/observability"
	"mybuddy/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReportService(posts *postRepoStub, users *userRepoStub, reports *reportRepoStub, flags *featureflags.Manager) (*ReportService, *txStub) {
	tx := &txStub{repos: repository.Repos{Posts: posts, Users: users, Reports: reports}}
	return NewReportService(tx, reports, flags), tx
}

func TestReportService_SaveReport(t *testing.T) {
	input := models.ReportInput{Username: "alice", Message: "spam"}

	tests := []struct {
		name       string
		postID     string
		posts      func() *postRepoStub
		users      func() *userRepoStub
		reports    func() *reportRepoStub
		wantCode   string
		wantErr    bool
		wantCommit bool
	}{
		{
			name:       "valid report",
			postID:     "42",
			posts:      noopPostRepo,
			users:      noopUserRepo,
			reports:    noopReportRepo,
			wantCommit: true,
		},
		{
			name:   "unknown post",
			postID: "42",
			posts: func() *postRepoStub {
				p := noopPostRepo()
				p.existsFn = func(context.Context, uint) (bool, error) { return false, nil }
				return p
			},
			users:    noopUserRepo,
			reports:  noopReportRepo,
			wantCode: models.CodeNotFound,
			wantErr:  true,
		},
		{
			name:     "non-numeric post id",
			postID:   "abc",
			posts:    noopPostRepo,
			users:    noopUserRepo,
			reports:  noopReportRepo,
			wantCode: models.CodeNotFound,
			wantErr:  true,
		},
		{
			name:     "zero post id",
			postID:   "0",
			posts:    noopPostRepo,
			users:    noopUserRepo,
			reports:  noopReportRepo,
			wantCode: models.CodeNotFound,
			wantErr:  true,
		},
		{
			name:   "unknown reporter",
			postID: "42",
			posts:  noopPostRepo,
			users: func() *userRepoStub {
				u := noopUserRepo()
				u.existsByUsernameFn = func(context.Context, string) (bool, error) { return false, nil }
				return u
			},
			reports:  noopReportRepo,
			wantCode: models.CodeNotFound,
			wantErr:  true,
		},
		{
			name:   "post removed before insert",
			postID: "42",
			posts:  noopPostRepo,
			users:  noopUserRepo,
			reports: func() *reportRepoStub {
				r := noopReportRepo()
				r.createFn = func(context.Context, *models.Report) error { return repository.ErrReportedPostMissing }
				return r
			},
			wantCode: models.CodeNotFound,
			wantErr:  true,
		},
		{
			name:   "storage failure",
			postID: "42",
			posts: func() *postRepoStub {
				p := noopPostRepo()
				p.existsFn = func(context.Context, uint) (bool, error) { return false, errors.New("connection reset") }
				return p
			},
			users:   noopUserRepo,
			reports: noopReportRepo,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, tx := newReportService(tt.posts(), tt.users(), tt.reports(), nil)
			report, err := svc.SaveReport(context.Background(), tt.postID, input)

			if !tt.wantErr {
				require.NoError(t, err)
				require.NotNil(t, report)
				assert.Equal(t, uint(42), report.PostID)
				assert.Equal(t, "alice", report.Username)
				assert.Equal(t, tt.wantCommit, tx.committed)
				return
			}

			require.Error(t, err)
			assert.Nil(t, report)
			assert.False(t, tx.committed)

			var appErr *models.AppError
			if tt.wantCode == "" {
				assert.False(t, errors.As(err, &appErr), "storage failures must not be domain errors")
				return
			}
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}
}

func TestReportService_SaveReport_RejectMetrics(t *testing.T) {
	users := noopUserRepo()
	users.existsByUsernameFn = func(context.Context, string) (bool, error) { return false, nil }
	svc, _ := newReportService(noopPostRepo(), users, noopReportRepo(), nil)

	before := testutil.ToFloat64(observability.ReportsRejected.WithLabelValues(observability.RejectReasonUser))
	_, err := svc.SaveReport(context.Background(), "1", models.ReportInput{Username: "ghost", Message: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
	assert.Equal(t, before+1, testutil.ToFloat64(observability.ReportsRejected.WithLabelValues(observability.RejectReasonUser)))
}

func TestReportService_FindAll(t *testing.T) {
	t.Run("nil from repository becomes empty", func(t *testing.T) {
		svc, _ := newReportService(noopPostRepo(), noopUserRepo(), noopReportRepo(), nil)
		reports, err := svc.FindAll(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, reports)
		assert.Empty(t, reports)
	})

	t.Run("storage failure", func(t *testing.T) {
		repo := noopReportRepo()
		repo.listFn = func(context.Context) ([]models.Report, error) { return nil, errors.New("timeout") }
		svc, _ := newReportService(noopPostRepo(), noopUserRepo(), repo, nil)
		_, err := svc.FindAll(context.Background())
		assert.Error(t, err)
	})
}

func TestReportService_FindAll_CacheAside(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := cache.NewClient(mr.Addr())
	require.NoError(t, err)
	cache.SetClient(rdb)
	t.Cleanup(func() { cache.SetClient(nil) })

	calls := 0
	repo := noopReportRepo()
	repo.listFn = func(context.Context) ([]models.Report, error) {
		calls++
		return []models.Report{{ID: uint(calls), PostID: 42, Username: "alice", Message: "spam"}}, nil
	}
	repo.deleteFn = func(context.Context, uint) (bool, error) { return true, nil }
	svc, _ := newReportService(noopPostRepo(), noopUserRepo(), repo, featureflags.NewManager("report_list_cache=on"))
	ctx := context.Background()

	first, err := svc.FindAll(ctx)
	require.NoError(t, err)
	second, err := svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.True(t, mr.Exists(cache.ReportsListPrefix+"0"))

	_, err = svc.DeleteReport(ctx, 1)
	require.NoError(t, err)
	gen, err := mr.Get(cache.ReportsListGenKey)
	require.NoError(t, err)
	assert.Equal(t, "1", gen)

	third, err := svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, uint(2), third[0].ID)

	_, err = svc.SaveReport(ctx, "42", models.ReportInput{Username: "alice", Message: "again"})
	require.NoError(t, err)
	fourth, err := svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, uint(3), fourth[0].ID)
}

// A listing loaded before an intake commits must not be served after it.
func TestReportService_FindAll_ConcurrentIntakeNotMasked(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := cache.NewClient(mr.Addr())
	require.NoError(t, err)
	cache.SetClient(rdb)
	t.Cleanup(func() { cache.SetClient(nil) })

	stored := []models.Report{{ID: 1, PostID: 42, Username: "alice", Message: "spam"}}
	var svc *ReportService
	intakeDuringLoad := true

	reports := noopReportRepo()
	reports.listFn = func(context.Context) ([]models.Report, error) {
		snapshot := append([]models.Report(nil), stored...)
		if intakeDuringLoad {
			intakeDuringLoad = false
			_, err := svc.SaveReport(context.Background(), "42", models.ReportInput{Username: "bob", Message: "abuse"})
			require.NoError(t, err)
		}
		return snapshot, nil
	}
	reports.createFn = func(_ context.Context, r *models.Report) error {
		r.ID = uint(len(stored) + 1)
		stored = append(stored, *r)
		return nil
	}
	svc, _ = newReportService(noopPostRepo(), noopUserRepo(), reports, featureflags.NewManager("report_list_cache=on"))
	ctx := context.Background()

	first, err := svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	after, err := svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, after, 2, "intake committed before this listing started")
}

func TestReportService_FindAll_CacheDisabledByFlag(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := cache.NewClient(mr.Addr())
	require.NoError(t, err)
	cache.SetClient(rdb)
	t.Cleanup(func() { cache.SetClient(nil) })

	svc, _ := newReportService(noopPostRepo(), noopUserRepo(), noopReportRepo(), featureflags.NewManager("report_list_cache=off"))
	_, err = svc.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

func TestReportService_DeleteReport(t *testing.T) {
	tests := []struct {
		name        string
		deleteFn    func(context.Context, uint) (bool, error)
		wantDeleted bool
		wantErr     bool
	}{
		{"existing", func(context.Context, uint) (bool, error) { return true, nil }, true, false},
		{"absent is a no-op", func(context.Context, uint) (bool, error) { return false, nil }, false, false},
		{"storage failure", func(_ context.Context, id uint) (bool, error) { return false, fmt.Errorf("delete %d: boom", id) }, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := noopReportRepo()
			repo.deleteFn = tt.deleteFn
			svc, _ := newReportService(noopPostRepo(), noopUserRepo(), repo, nil)

			deleted, err := svc.DeleteReport(context.Background(), 5)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantDeleted, deleted)
		})
	}
}
