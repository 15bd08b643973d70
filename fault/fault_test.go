package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{Argument("invalid path"), "Argument error: invalid path"},
		{NotFound(""), "Not found"},
		{Forbidden("other user"), "Forbidden: other user"},
		{Conflict("file already exists"), "Conflict: file already exists"},
		{EntryAlreadyExists(""), "Entry already exists"},
		{DB("corrupted file metadata", nil), "Server error: corrupted file metadata"},
		{Server("S3 failure", nil), "Server error: S3 failure"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := DB("creating file failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Cause())
	assert.NotContains(t, err.Error(), "connection reset")
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Conflict("x"))

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))

	assert.True(t, Is(wrapped, KindConflict))
	assert.False(t, Is(wrapped, KindServer))
	assert.False(t, Is(nil, KindUnknown))
}

func TestTransientServer(t *testing.T) {
	err := TransientServer("retry later", nil)

	require.Equal(t, KindServer, err.Kind)
	assert.True(t, IsTransient(err))
	assert.False(t, IsTransient(Server("boom", nil)))
	assert.False(t, IsTransient(errors.New("plain")))
}
