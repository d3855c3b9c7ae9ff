package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/integrations-dispatch/config"
	"github.com/target/integrations-dispatch/internal/mocks"
)

func TestNewRunner_RequiresStore(t *testing.T) {
	_, err := NewRunner(RunnerOptions{})
	assert.Error(t, err)
}

func TestRunner_SweepsOnStart(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	repo.EXPECT().DeleteRange(gomock.Any(), gomock.Any()).Return(int64(3), nil)
	repo.EXPECT().CountStuck(gomock.Any(), gomock.Any()).Return(0, nil)

	r, err := NewRunner(RunnerOptions{
		Repo:   repo,
		Config: config.ReaperConfig{Interval: time.Hour, JobRetention: 24 * time.Hour, StuckAfter: time.Hour},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, r.Run(ctx))
}
