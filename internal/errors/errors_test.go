package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("source offline")

	// When: wrapping it
	err := New(ErrCodeSourceFailed, "listing documents", originalErr)

	// Then: unwrapping returns the original error
	require.NotNil(t, err)
	assert.Equal(t, originalErr, errors.Unwrap(err))
	assert.True(t, errors.Is(err, originalErr))
}

func TestError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "unknown strategy",
			err:      New(ErrCodeUnknownStrategy, "unknown retriever type \"x\"", nil),
			expected: "[ERR_101_UNKNOWN_STRATEGY] unknown retriever type \"x\"",
		},
		{
			name:     "with distinct cause",
			err:      New(ErrCodeRetrievalFailed, "bm25 retrieval failed", errors.New("boom")),
			expected: "[ERR_501_RETRIEVAL_FAILED] bm25 retrieval failed: boom",
		},
		{
			name:     "wrapped cause not repeated",
			err:      Wrap(ErrCodeSourceFailed, errors.New("boom")),
			expected: "[ERR_503_SOURCE_FAILED] boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestError_Is_MatchesByCode(t *testing.T) {
	err := New(ErrCodeEmbeddingFailed, "provider down", nil)

	assert.True(t, errors.Is(err, New(ErrCodeEmbeddingFailed, "other message", nil)))
	assert.False(t, errors.Is(err, New(ErrCodeSourceFailed, "provider down", nil)))
}

func TestError_Is_MatchesCategorySentinels(t *testing.T) {
	tests := []struct {
		code          string
		configuration bool
		retrieval     bool
	}{
		{ErrCodeUnknownStrategy, true, false},
		{ErrCodeConfigInvalid, true, false},
		{ErrCodeMissingRetriever, true, false},
		{ErrCodeInvalidQuery, false, false},
		{ErrCodeRetrievalFailed, false, true},
		{ErrCodeEmbeddingFailed, false, true},
		{ErrCodeSourceFailed, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := fmt.Errorf("context: %w", New(tt.code, "msg", nil))
			assert.Equal(t, tt.configuration, IsConfiguration(err))
			assert.Equal(t, tt.retrieval, IsRetrieval(err))
		})
	}
}

func TestCategoryAndSeverity_DerivedFromCode(t *testing.T) {
	cfg := New(ErrCodeConfigInvalid, "bad", nil)
	assert.Equal(t, CategoryConfig, cfg.Category)
	assert.Equal(t, SeverityFatal, cfg.Severity)

	q := New(ErrCodeInvalidQuery, "bad", nil)
	assert.Equal(t, CategoryValidation, q.Category)
	assert.Equal(t, SeverityWarning, q.Severity)

	r := New(ErrCodeRetrievalFailed, "bad", nil)
	assert.Equal(t, CategoryRetrieval, r.Category)
	assert.Equal(t, SeverityError, r.Severity)

	assert.Equal(t, CategoryRetrieval, categoryFromCode("short"))
}

func TestWrap_KeepsExistingError(t *testing.T) {
	// Given: an error that is already structured
	orig := UnknownStrategy("nope")

	// When: wrapping it again with a different code
	wrapped := Wrap(ErrCodeRetrievalFailed, fmt.Errorf("create: %w", orig))

	// Then: the original code survives
	assert.Equal(t, ErrCodeUnknownStrategy, wrapped.Code)
	assert.Nil(t, Wrap(ErrCodeRetrievalFailed, nil))
}

func TestRetrievalError_CarriesStrategyName(t *testing.T) {
	err := RetrievalError("bm25", errors.New("corpus unavailable"))

	assert.Equal(t, ErrCodeRetrievalFailed, err.Code)
	assert.Equal(t, "bm25", err.Details["retriever"])
	assert.Contains(t, err.Error(), "bm25 retrieval failed")
	assert.Equal(t, ErrCodeRetrievalFailed, GetCode(fmt.Errorf("x: %w", err)))
	assert.Empty(t, GetCode(errors.New("plain")))
}
