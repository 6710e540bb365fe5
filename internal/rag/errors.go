package rag

import (
	"errors"
	"fmt"
)

// ErrEmptyEmbedding is returned when an embedder responds without an error
// but also without a vector for an input text.
var ErrEmptyEmbedding = errors.New("rag: embedder returned no embedding")

// ErrUnsupportedFormat is returned when no parser is registered for the
// requested format discriminant.
var ErrUnsupportedFormat = errors.New("rag: unsupported document format")

// ConfigError reports an invalid or incomplete component configuration.
// It is raised at construction time so misconfiguration never surfaces as a
// per-call failure.
type ConfigError struct {
	// Component names the component that rejected its configuration
	// (e.g. "embedder", "vectorstore").
	Component string

	// Reason is a human-readable description of what is missing or invalid.
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Component, e.Reason)
}

// NewConfigError constructs a ConfigError for the given component.
func NewConfigError(component, format string, args ...any) *ConfigError {
	return &ConfigError{Component: component, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
