package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/integrations-dispatch/config"
	"github.com/target/integrations-dispatch/internal/data"
	"github.com/target/integrations-dispatch/internal/domain/model"
	"github.com/target/integrations-dispatch/internal/mocks"
	"github.com/target/integrations-dispatch/internal/observability/metrics"
)

func newTestReaper(t *testing.T, now time.Time) (*ReaperService, *mocks.MockJobRepository, *metrics.Recorder) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	rec := &metrics.Recorder{}
	svc, err := NewReaperService(ReaperServiceOptions{
		Repo: repo,
		Config: config.ReaperConfig{
			Interval:     time.Hour,
			JobRetention: 48 * time.Hour,
			StuckAfter:   6 * time.Hour,
		},
		TimeProvider: data.NewFixedTimeProvider(now),
		Metrics:      rec,
	})
	require.NoError(t, err)
	return svc, repo, rec
}

func TestNewReaperService_RequiresRepo(t *testing.T) {
	_, err := NewReaperService(ReaperServiceOptions{})
	assert.Error(t, err)
}

func TestReaperService_Sweep(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	svc, repo, rec := newTestReaper(t, now)

	wantCutoff := now.Add(-48 * time.Hour)
	repo.EXPECT().DeleteRange(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r model.TimeRange) (int64, error) {
			require.NotNil(t, r.Before)
			assert.Nil(t, r.After)
			assert.True(t, wantCutoff.Equal(*r.Before))
			return 7, nil
		})
	repo.EXPECT().CountStuck(gomock.Any(), now.Add(-6*time.Hour)).Return(2, nil)

	res, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Deleted: 7, Stuck: 2}, res)
	assert.Equal(t, 7.0, rec.Sum("reaper.deleted_jobs", map[string]string{"result": "success"}))
	assert.Equal(t, 2.0, rec.Sum("reaper.stuck_jobs", nil))
}

func TestReaperService_Sweep_StepsAreIndependent(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	svc, repo, rec := newTestReaper(t, now)

	repo.EXPECT().DeleteRange(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("connection refused"))
	repo.EXPECT().CountStuck(gomock.Any(), gomock.Any()).Return(1, nil)

	res, err := svc.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete finished jobs")
	assert.Equal(t, 1, res.Stuck, "stuck count is still reported")
	assert.Equal(t, 0.0, rec.Sum("reaper.deleted_jobs", map[string]string{"result": "success"}))
}

func TestReaperService_RunStopsOnCancel(t *testing.T) {
	svc, repo, _ := newTestReaper(t, time.Now())
	repo.EXPECT().DeleteRange(gomock.Any(), gomock.Any()).Return(int64(0), nil).AnyTimes()
	repo.EXPECT().CountStuck(gomock.Any(), gomock.Any()).Return(0, nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, svc.Run(ctx))
}
