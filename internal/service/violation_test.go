package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/integrations-dispatch/internal/domain/model"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
	"github.com/target/integrations-dispatch/internal/mocks"
)

func TestViolationService_ListForTenant(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockViolationRepository(ctrl)
	svc, err := NewViolationService(ViolationServiceOptions{Repo: repo})
	require.NoError(t, err)
	ctx := context.Background()

	stored := []*model.Violation{
		{ID: "v1", TaskName: "mfa", Severity: model.SeverityHigh, Output: json.RawMessage(`{}`)},
		{ID: "v2", TaskName: "keys", Severity: model.SeverityLow, Output: json.RawMessage(`{}`)},
	}
	repo.EXPECT().ListByTenant(gomock.Any(), "acme").Return(stored, nil).Times(2)

	all, err := svc.ListForTenant(ctx, "acme", "")
	require.NoError(t, err)
	assert.Equal(t, stored, all)

	out, err := svc.ListForTenant(ctx, "acme", "[?severity=='high'].task_name")
	require.NoError(t, err)
	assert.Equal(t, []any{"mfa"}, out)

	_, err = svc.ListForTenant(ctx, "acme", "[?severity==")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "filter", apperrors.GetField(err))
}

func TestJobQueryService_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc, err := NewJobQueryService(repo)
	require.NoError(t, err)

	repo.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, nil)
	repo.EXPECT().Count(gomock.Any(), gomock.Any()).Return(0, nil)

	page, err := svc.List(context.Background(), model.JobListOptions{TenantID: "acme"})
	require.NoError(t, err)
	assert.NotNil(t, page.Jobs, "an empty page encodes as []")
	assert.Equal(t, 0, page.Pagination.Total)
}
