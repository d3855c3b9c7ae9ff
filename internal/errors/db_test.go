package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	if err := MapDBError(nil); err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError_ContextErrorsAreTransient(t *testing.T) {
	for _, in := range []error{context.DeadlineExceeded, context.Canceled} {
		err := MapDBError(fmt.Errorf("query: %w", in))
		if !IsTransientStore(err) {
			t.Errorf("MapDBError(%v) code = %v, want %v", in, GetCode(err), ErrCodeTransientStore)
		}
		if !errors.Is(err, in) {
			t.Errorf("MapDBError(%v) should preserve cause", in)
		}
	}
}

func TestMapDBError_NoRows(t *testing.T) {
	err := MapDBError(pgx.ErrNoRows)
	if !IsNotFound(err) {
		t.Errorf("MapDBError(pgx.ErrNoRows) should be NotFound, got %v", GetCode(err))
	}
}

func TestMapDBError_PassesAppErrorThrough(t *testing.T) {
	in := Conflict("job not claimed")
	if got := MapDBError(in); got != error(in) {
		t.Errorf("MapDBError(AppError) = %v, want the same error", got)
	}
}

func TestMapDBError_PgErrors(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantCode  ErrorCode
		wantField string
	}{
		{
			name:      "unique with column name",
			pgErr:     &pgconn.PgError{Code: pgerrcode.UniqueViolation, ColumnName: "name"},
			wantCode:  ErrCodeConflict,
			wantField: "name",
		},
		{
			name: "unique parsed from detail",
			pgErr: &pgconn.PgError{
				Code:   pgerrcode.UniqueViolation,
				Detail: "Key (name)=(aws-config) already exists.",
			},
			wantCode:  ErrCodeConflict,
			wantField: "name",
		},
		{
			name:      "unique inferred from constraint",
			pgErr:     &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "integrations_name_key"},
			wantCode:  ErrCodeConflict,
			wantField: "name",
		},
		{
			name: "foreign key missing parent",
			pgErr: &pgconn.PgError{
				Code:   pgerrcode.ForeignKeyViolation,
				Detail: `Key (job_id)=(x) is not present in table "jobs".`,
			},
			wantCode: ErrCodeValidation,
		},
		{
			name:      "check violation",
			pgErr:     &pgconn.PgError{Code: pgerrcode.CheckViolation, ColumnName: "timeout_seconds"},
			wantCode:  ErrCodeValidation,
			wantField: "timeout_seconds",
		},
		{
			name:     "invalid uuid text",
			pgErr:    &pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation},
			wantCode: ErrCodeValidation,
		},
		{
			name:     "lock not available",
			pgErr:    &pgconn.PgError{Code: pgerrcode.LockNotAvailable},
			wantCode: ErrCodeTransientStore,
		},
		{
			name:     "serialization failure",
			pgErr:    &pgconn.PgError{Code: pgerrcode.SerializationFailure},
			wantCode: ErrCodeTransientStore,
		},
		{
			name:     "admin shutdown",
			pgErr:    &pgconn.PgError{Code: pgerrcode.AdminShutdown},
			wantCode: ErrCodeTransientStore,
		},
		{
			name:     "undefined table",
			pgErr:    &pgconn.PgError{Code: pgerrcode.UndefinedTable},
			wantCode: ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if got := GetCode(err); got != tt.wantCode {
				t.Fatalf("code = %v, want %v", got, tt.wantCode)
			}
			if tt.wantField != "" && GetField(err) != tt.wantField {
				t.Errorf("field = %q, want %q", GetField(err), tt.wantField)
			}
		})
	}
}

func TestMapDBError_UnknownErrorUnchanged(t *testing.T) {
	in := errors.New("something else")
	if got := MapDBError(in); !errors.Is(got, in) || GetCode(got) != "" {
		t.Errorf("MapDBError(unknown) = %v, want unchanged", got)
	}
}

func TestInferFieldFromConstraint(t *testing.T) {
	tests := map[string]string{
		"integrations_name_key":      "name",
		"deployments_tenant_id_key":  "",
		"":                           "",
		"jobs_pkey":                  "",
	}
	for in, want := range tests {
		if got := inferFieldFromConstraint(in); got != want {
			t.Errorf("inferFieldFromConstraint(%q) = %q, want %q", in, got, want)
		}
	}
}
