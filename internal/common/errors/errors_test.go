package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("transform: %w", NewInvalidFeatureValueError("experience_required", "five"))

	assert.True(t, stderrors.Is(err, ErrInvalidFeatureValue))
	assert.False(t, stderrors.Is(err, ErrSchemaVersionMismatch))
	assert.Equal(t, ErrCodeInvalidFeatureValue, CodeOf(err))

	stdErr, ok := AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, "experience_required", stdErr.Field())
}

func TestLoggedOnlyCodes_AreNotRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      *StandardError
		sentinel error
	}{
		{name: "malformed field", err: NewMalformedRawFieldError("experience", "beaucoup"), sentinel: ErrMalformedRawField},
		{name: "duplicate", err: NewDuplicateIngestionError("https://jobs/1"), sentinel: ErrDuplicateIngestion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, stderrors.Is(tt.err, tt.sentinel))
			assert.False(t, tt.err.Retryable)
		})
	}
}

func TestTrainingAborted_UnwrapsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := NewTrainingAbortedError("Persisting", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, ErrTrainingAborted))
	assert.Equal(t, "Persisting", err.Metadata["stage"])
	assert.Contains(t, err.Error(), "disk full")
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(stderrors.New("plain")))
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantRetries int
		wantField   string
	}{
		{
			name:        "retryable database error",
			err:         NewDatabaseInsertFailedError(stderrors.New("conn reset")),
			wantRetries: 3,
		},
		{
			name:        "invalid feature value carries field",
			err:         NewInvalidFeatureValueError("Bac +2", "yes"),
			wantRetries: 0,
			wantField:   "Bac +2",
		},
		{
			name:        "schema mismatch never retried",
			err:         NewSchemaVersionMismatchError("a", "b"),
			wantRetries: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, string(tt.err.Code), bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)

			vars := bpmn.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, vars["errorField"])
			} else {
				assert.NotContains(t, vars, "errorField")
			}
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidFeatureValue))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeSchemaVersionMismatch))
	assert.Equal(t, "MODEL", GetErrorCategory(ErrCodeTrainingAborted))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeDatabaseInsertFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexRequestFailed))
	assert.Equal(t, "INGESTION", GetErrorCategory(ErrCodeDuplicateIngestion))
	assert.Equal(t, "OTHER", GetErrorCategory("SOMETHING_ELSE"))
}

func TestNormalize_WrapsUnknownErrors(t *testing.T) {
	stdErr := Normalize(stderrors.New("kaboom"))
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), stdErr.Code)
	assert.Equal(t, "kaboom", stdErr.Details)
	assert.False(t, IsRetryableErrorCode(stdErr.Code))
}
