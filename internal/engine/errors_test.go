package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	err := NewInitializationError("schema script failed", errors.New("near \"CREAT\": syntax error"))
	assert.Equal(t, `INITIALIZATION: initialize: schema script failed: near "CREAT": syntax error`, err.Error())

	notReady := NewNotReadyError("export")
	assert.Equal(t, "NOT_READY: export: store is not initialized", notReady.Error())
}

func TestError_UnwrapAndHelpers(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := fmt.Errorf("flush: %w", NewWriteError("studydb.snapshot", cause))

	assert.True(t, IsWrite(err))
	assert.False(t, IsMigration(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrCodeWrite, CodeOf(err))
}

func TestError_Recoverable(t *testing.T) {
	assert.True(t, NewMigrationError("x", nil).Recoverable())
	assert.True(t, NewWriteError("k", nil).Recoverable())
	assert.False(t, NewInitializationError("x", nil).Recoverable())
	assert.False(t, NewBackupFormatError("x", nil).Recoverable())
	assert.False(t, NewNotReadyError("x").Recoverable())
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.False(t, IsBackupFormat(nil))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("document")
	require.NoError(t, err)
	assert.Equal(t, Document, k)

	_, err = ParseKind("indexeddb")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown engine")
}
