package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTutorError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("disk exploded")

	// When: wrapping with TutorError
	te := PersistError("write docstore", originalErr)

	// Then: the chain still reaches the original error
	require.NotNil(t, te)
	assert.Equal(t, originalErr, errors.Unwrap(te))
	assert.True(t, errors.Is(te, originalErr))
}

func TestTutorError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{"config error", ErrCodeConfigInvalid, "bad chunk size", "[ERR_102_CONFIG_INVALID] bad chunk size"},
		{"no index", ErrCodeNoIndex, "index not built", "[ERR_506_NO_INDEX] index not built"},
		{"network error", ErrCodeNetworkTimeout, "request timed out", "[ERR_301_NETWORK_TIMEOUT] request timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.code, tt.message, nil).Error())
		})
	}
}

func TestTutorError_Is_MatchesSentinelByCode(t *testing.T) {
	// Given: a no-index error wrapped by fmt.Errorf
	err := fmt.Errorf("retrieve: %w", New(ErrCodeNoIndex, "index not built", nil))

	// Then: it matches the sentinel but not a different code
	assert.True(t, errors.Is(err, ErrNoIndex))
	assert.False(t, errors.Is(err, ErrModelMismatch))
}

func TestCategoryAndSeverity_DerivedFromCode(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodePersistFailed, CategoryIO, SeverityFatal, false},
		{ErrCodeNetworkUnavailable, CategoryNetwork, SeverityWarning, true},
		{ErrCodeQueryEmpty, CategoryValidation, SeverityError, false},
		{ErrCodeEmbeddingFailed, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestIsFatal_WorksThroughWrapping(t *testing.T) {
	err := fmt.Errorf("build: %w", PersistError("save cache", nil))
	assert.True(t, IsFatal(err))
	assert.Equal(t, ErrCodePersistFailed, GetCode(err))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.Empty(t, GetCode(errors.New("plain")))
}

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	err := New(ErrCodeNoIndex, "index not built", nil).
		WithSuggestion("run 'tutor index' first")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: index not built")
	assert.Contains(t, out, "Hint: run 'tutor index' first")
	assert.Contains(t, out, "Code: ERR_506_NO_INDEX")
}

func TestFormatForLog_FlattensDetails(t *testing.T) {
	err := New(ErrCodeModelMismatch, "model differs", nil).
		WithDetail("index_model", "static").
		WithDetail("query_model", "nomic")

	fields := FormatForLog(err)

	assert.Equal(t, ErrCodeModelMismatch, fields["error_code"])
	assert.Equal(t, "static", fields["detail_index_model"])
	assert.Equal(t, "nomic", fields["detail_query_model"])
	assert.Equal(t, map[string]any{"error": "plain"}, FormatForLog(errors.New("plain")))
}
