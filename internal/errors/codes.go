// Package errors provides the structured error type shared by every
// retrieval component.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors (bad strategy type, invalid config, missing children)
//   - 4XX: Validation errors (bad query input)
//   - 5XX: Retrieval errors (strategy, embedding or source failures)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates a retriever was built with unusable settings.
	CategoryConfig Category = "CONFIG"
	// CategoryValidation indicates bad caller input.
	CategoryValidation Category = "VALIDATION"
	// CategoryRetrieval indicates a failure while answering a query.
	CategoryRetrieval Category = "RETRIEVAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates the retriever cannot be used at all.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the retriever is usable.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeUnknownStrategy  = "ERR_101_UNKNOWN_STRATEGY"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeMissingRetriever = "ERR_103_MISSING_RETRIEVER"

	// Validation errors (400-499)
	ErrCodeInvalidQuery = "ERR_401_INVALID_QUERY"

	// Retrieval errors (500-599)
	ErrCodeRetrievalFailed = "ERR_501_RETRIEVAL_FAILED"
	ErrCodeEmbeddingFailed = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSourceFailed    = "ERR_503_SOURCE_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryRetrieval
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '4':
		return CategoryValidation
	default:
		return CategoryRetrieval
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryConfig:
		return SeverityFatal
	case CategoryValidation:
		return SeverityWarning
	default:
		return SeverityError
	}
}
