package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindsSurviveWrapping(t *testing.T) {
	base := NewError("load", ErrMissingArtifact, "/tmp/kb", "kb.index not found")
	wrapped := fmt.Errorf("starting chat: %w", base)

	assert.True(t, errors.Is(wrapped, ErrMissingArtifact))
	assert.False(t, errors.Is(wrapped, ErrNotBuilt))

	var de *Error
	require.True(t, errors.As(wrapped, &de))
	assert.Equal(t, "load", de.Op)
	assert.Equal(t, "/tmp/kb", de.Path)
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "with detail and path",
			err:  NewError("load", ErrMissingArtifact, "/kb", "kb.index not found"),
			want: "load: missing artifact: kb.index not found (path=/kb)",
		},
		{
			name: "without path",
			err:  NewError("chunk", ErrConfiguration, "", "overlap %d >= size %d", 4, 4),
			want: "chunk: configuration error: overlap 4 >= size 4",
		},
		{
			name: "bare",
			err:  &Error{Op: "retrieve", Err: ErrNotBuilt},
			want: "retrieve: knowledge base not built",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
