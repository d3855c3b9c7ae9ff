package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

func TestClassify(t *testing.T) {
	assert.Empty(t, Classify(nil))
	assert.Equal(t, "not_found", Classify(fmt.Errorf("get: %w", apperrors.NotFound("job"))))
	assert.Equal(t, "transient_store", Classify(apperrors.TransientStore(context.DeadlineExceeded, "claim")))
	assert.Equal(t, "errors_errorstring", Classify(errors.New("plain")))
	assert.Equal(t, "context_deadlineexceedederror", Classify(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
}
