package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

func TestJobStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusQueued, JobStatusInProgress, true},
		{JobStatusQueued, JobStatusDone, false},
		{JobStatusQueued, JobStatusError, false},
		{JobStatusInProgress, JobStatusDone, true},
		{JobStatusInProgress, JobStatusError, true},
		{JobStatusInProgress, JobStatusQueued, false},
		{JobStatusDone, JobStatusError, true},
		{JobStatusDone, JobStatusDone, true},
		{JobStatusDone, JobStatusQueued, false},
		{JobStatusDone, JobStatusInProgress, false},
		{JobStatusError, JobStatusInProgress, false},
		{JobStatus("bogus"), JobStatusDone, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestJobStatus_Valid(t *testing.T) {
	assert.True(t, JobStatusQueued.Valid())
	assert.True(t, JobStatusInProgress.Valid())
	assert.True(t, JobStatusDone.Terminal())
	assert.True(t, JobStatusError.Terminal())
	assert.False(t, JobStatusInProgress.Terminal())
	assert.False(t, JobStatus("running").Valid())
}

func TestJob_Durations(t *testing.T) {
	created := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	started := created.Add(90 * time.Second)
	finished := started.Add(5*time.Minute + 400*time.Millisecond)

	job := Job{ID: "j1", CreatedAt: created}
	assert.Nil(t, job.QueueSeconds())
	assert.Nil(t, job.ExecutionSeconds())
	assert.Nil(t, job.TotalSeconds())

	job.StartedAt = &started
	job.FinishedAt = &finished
	require.NotNil(t, job.QueueSeconds())
	assert.Equal(t, int64(90), *job.QueueSeconds())
	assert.Equal(t, int64(300), *job.ExecutionSeconds())
	assert.Equal(t, int64(390), *job.TotalSeconds())
}

func TestJob_MarshalJSON_IncludesDurations(t *testing.T) {
	created := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	started := created.Add(2 * time.Second)
	job := Job{
		ID:              "j1",
		DeploymentID:    "d1",
		Status:          JobStatusInProgress,
		CreatedAt:       created,
		StartedAt:       &started,
		IntegrationName: "aws-config",
		Queue:           "default",
		TimeoutSeconds:  60,
		Config:          json.RawMessage(`{"region":"us-east-1"}`),
	}

	b, err := json.Marshal(job)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "aws-config", got["integration_name"])
	assert.Equal(t, "in-progress", got["status"])
	assert.InDelta(t, 2, got["duration_in_queue"], 0)
	assert.Nil(t, got["duration_in_execution"])
	assert.Nil(t, got["duration_total"])
	assert.InDelta(t, 60, got["timeout"], 0)
}

func TestCompleteJobRequest(t *testing.T) {
	t.Run("defaults to done with empty object", func(t *testing.T) {
		req := CompleteJobRequest{}
		req.Normalize()
		require.NoError(t, req.Validate())
		assert.Equal(t, JobStatusDone, req.Status)
		assert.JSONEq(t, `{}`, string(req.Result))
	})

	t.Run("rejects non-terminal status", func(t *testing.T) {
		req := CompleteJobRequest{Status: JobStatusInProgress}
		req.Normalize()
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, "status", apperrors.GetField(err))
	})

	t.Run("accepts error payload", func(t *testing.T) {
		req := CompleteJobRequest{Status: JobStatusError, Result: json.RawMessage(`{"error":"boom"}`)}
		req.Normalize()
		require.NoError(t, req.Validate())
	})
}

func TestTimeRange_Validate(t *testing.T) {
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	err := TimeRange{}.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	require.NoError(t, TimeRange{Before: &feb}.Validate())
	require.NoError(t, TimeRange{After: &jan}.Validate())
	require.NoError(t, TimeRange{Before: &feb, After: &jan}.Validate())
	require.NoError(t, TimeRange{Before: &jan, After: &feb}.Validate(), "disjoint bounds are an empty window")
}

func TestJobListOptions_Normalize(t *testing.T) {
	opts := JobListOptions{Page: 0, PerPage: 500}
	opts.Normalize()
	assert.Equal(t, 1, opts.Page)
	assert.Equal(t, MaxPerPage, opts.PerPage)
	assert.Equal(t, 0, opts.Offset())

	opts = JobListOptions{Page: 3}
	opts.Normalize()
	assert.Equal(t, DefaultPerPage, opts.PerPage)
	assert.Equal(t, 40, opts.Offset())
}

func TestNewPagination(t *testing.T) {
	assert.Equal(t, Pagination{Page: 1, PerPage: 20, Total: 41, Pages: 3}, NewPagination(1, 20, 41))
	assert.Equal(t, 0, NewPagination(1, 20, 0).Pages)
}
