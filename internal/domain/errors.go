package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports invalid parameters, an empty corpus or missing model configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotBuilt is returned when a query or save runs before build or load.
	ErrNotBuilt = errors.New("knowledge base not built")

	// ErrMissingArtifact is returned when a persisted index directory is incomplete.
	ErrMissingArtifact = errors.New("missing artifact")

	// ErrModelMismatch reports that the recorded embedding model differs from the embedder in use.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrCorruptArtifact is returned when a persisted file cannot be decoded.
	ErrCorruptArtifact = errors.New("corrupt artifact")
)

// Error carries one of the sentinel kinds above plus the context it occurred in.
type Error struct {
	Op     string // operation name
	Path   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error of the given kind with a formatted detail message.
func NewError(op string, kind error, path string, format string, args ...any) *Error {
	return &Error{
		Op:     op,
		Path:   path,
		Detail: fmt.Sprintf(format, args...),
		Err:    kind,
	}
}
