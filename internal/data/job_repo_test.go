package data

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/target/integrations-dispatch/internal/domain/model"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

func TestCompleteConflict(t *testing.T) {
	tests := []struct {
		name    string
		status  model.JobStatus
		next    model.JobStatus
		wantMsg string
	}{
		{
			name:    "queued job was never claimed",
			status:  model.JobStatusQueued,
			next:    model.JobStatusDone,
			wantMsg: "job j1 is queued and has not been claimed",
		},
		{
			name:    "claimed after the update missed",
			status:  model.JobStatusInProgress,
			next:    model.JobStatusError,
			wantMsg: "job j1 moved to in-progress during completion; retry",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := completeConflict("j1", tt.status, tt.next)
			assert.True(t, apperrors.IsConflict(err))
			assert.EqualError(t, err, tt.wantMsg)
		})
	}
}
