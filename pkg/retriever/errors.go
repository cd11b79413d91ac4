package retriever

import (
	aerrors "github.com/milad-o/agenticflow-sub002/internal/errors"
)

// Error is the structured error returned by retrievers.
type Error = aerrors.Error

// Sentinels for errors.Is.
var (
	// ErrConfiguration matches errors raised while building a retriever.
	ErrConfiguration = aerrors.ErrConfiguration
	// ErrRetrieval matches errors raised while answering a query.
	ErrRetrieval = aerrors.ErrRetrieval
)

// ConfigurationError reports an unusable retriever configuration.
func ConfigurationError(message string, cause error) *Error {
	return aerrors.ConfigError(message, cause)
}

// RetrievalError reports a failed retrieval by the named strategy.
func RetrievalError(kind string, cause error) *Error {
	return aerrors.RetrievalError(kind, cause)
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool {
	return aerrors.IsConfiguration(err)
}

// IsRetrievalError reports whether err is a retrieval error.
func IsRetrievalError(err error) bool {
	return aerrors.IsRetrieval(err)
}
