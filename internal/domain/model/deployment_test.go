package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreateDeploymentRequest_Normalize(t *testing.T) {
	req := CreateDeploymentRequest{
		TenantID:      "acme",
		IntegrationID: "i1",
		Config:        json.RawMessage(`{}`),
		Schedule:      strPtr("   "),
	}
	req.Normalize()

	assert.Equal(t, DefaultQueue, req.Queue)
	require.NotNil(t, req.Timeout)
	assert.Equal(t, DefaultTimeoutSeconds, *req.Timeout)
	require.NotNil(t, req.Enabled)
	assert.True(t, *req.Enabled)
	assert.Nil(t, req.Schedule)
}

func TestCreateDeploymentRequest_Validate(t *testing.T) {
	base := func() CreateDeploymentRequest {
		return CreateDeploymentRequest{
			TenantID:      "acme",
			IntegrationID: "i1",
			Config:        json.RawMessage(`{"bucket":"logs"}`),
		}
	}

	tests := []struct {
		name      string
		mutate    func(r *CreateDeploymentRequest)
		wantField string
	}{
		{name: "valid", mutate: func(*CreateDeploymentRequest) {}},
		{name: "valid with schedule", mutate: func(r *CreateDeploymentRequest) { r.Schedule = strPtr("*/5 * * * *") }},
		{name: "missing tenant", mutate: func(r *CreateDeploymentRequest) { r.TenantID = "" }, wantField: "tenant_id"},
		{name: "missing integration", mutate: func(r *CreateDeploymentRequest) { r.IntegrationID = " " }, wantField: "integration_id"},
		{name: "missing config", mutate: func(r *CreateDeploymentRequest) { r.Config = nil }, wantField: "config"},
		{name: "config not object", mutate: func(r *CreateDeploymentRequest) { r.Config = json.RawMessage(`[1]`) }, wantField: "config"},
		{name: "zero timeout", mutate: func(r *CreateDeploymentRequest) { r.Timeout = intPtr(0) }, wantField: "timeout"},
		{name: "bad schedule", mutate: func(r *CreateDeploymentRequest) { r.Schedule = strPtr("every hour") }, wantField: "schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.mutate(&req)
			req.Normalize()
			err := req.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.wantField, apperrors.GetField(err))
		})
	}
}

func TestUpdateDeploymentRequest_Validate(t *testing.T) {
	err := (&UpdateDeploymentRequest{}).Validate()
	require.Error(t, err)

	require.NoError(t, (&UpdateDeploymentRequest{Enabled: new(bool)}).Validate())

	clearReq := &UpdateDeploymentRequest{Schedule: strPtr("")}
	require.NoError(t, clearReq.Validate())
	assert.True(t, clearReq.ClearsSchedule())

	err = (&UpdateDeploymentRequest{Queue: strPtr("  ")}).Validate()
	require.Error(t, err)
	assert.Equal(t, "queue", apperrors.GetField(err))

	err = (&UpdateDeploymentRequest{Timeout: intPtr(-1)}).Validate()
	assert.Equal(t, "timeout", apperrors.GetField(err))

	err = (&UpdateDeploymentRequest{Schedule: strPtr("99 * * * *")}).Validate()
	assert.Equal(t, "schedule", apperrors.GetField(err))
}

func TestDeployment_Recurring(t *testing.T) {
	d := Deployment{Enabled: true, Schedule: strPtr("@hourly")}
	assert.True(t, d.Recurring())
	d.Enabled = false
	assert.False(t, d.Recurring())
	d = Deployment{Enabled: true}
	assert.False(t, d.Recurring())
}

func TestCreateViolationRequest_Validate(t *testing.T) {
	valid := func() CreateViolationRequest {
		return CreateViolationRequest{
			TaskName:          "s3_public_buckets",
			ControlReferences: json.RawMessage(`[{"id":"CIS-2.1.5","framework":"cis"}]`),
			Output:            json.RawMessage(`{"bucket":"logs","public":true}`),
		}
	}

	req := valid()
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, SeverityMedium, req.Severity)
	assert.JSONEq(t, `{}`, string(req.Meta))

	req = valid()
	req.Severity = "HIGH"
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, SeverityHigh, req.Severity)

	tests := []struct {
		name   string
		mutate func(r *CreateViolationRequest)
		field  string
	}{
		{"missing task", func(r *CreateViolationRequest) { r.TaskName = "" }, "task_name"},
		{"missing refs", func(r *CreateViolationRequest) { r.ControlReferences = nil }, "control_references"},
		{"refs not array", func(r *CreateViolationRequest) { r.ControlReferences = json.RawMessage(`{}`) }, "control_references"},
		{"missing output", func(r *CreateViolationRequest) { r.Output = json.RawMessage(`null`) }, "output"},
		{"bad severity", func(r *CreateViolationRequest) { r.Severity = "urgent" }, "severity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			r.Normalize()
			err := r.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.field, apperrors.GetField(err))
		})
	}
}

func TestCreateIntegrationRequest(t *testing.T) {
	req := CreateIntegrationRequest{Name: " aws-config ", Schema: json.RawMessage(`{"type":"object"}`)}
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, "aws-config", req.Title)
	require.NotNil(t, req.Description)
	assert.Contains(t, *req.Description, "does not have a description")

	bad := CreateIntegrationRequest{Name: "x", Schema: json.RawMessage(`{`)}
	bad.Normalize()
	assert.Equal(t, "schema", apperrors.GetField(bad.Validate()))

	noSchema := CreateIntegrationRequest{Name: "x"}
	noSchema.Normalize()
	assert.Equal(t, "schema", apperrors.GetField(noSchema.Validate()))
}
