package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/studydb/internal/blob"
)

func TestFaultyStore(t *testing.T) {
	ctx := context.Background()
	s := NewFaultyStore(blob.NewMemoryStore(0))
	boom := errors.New("boom")

	require.NoError(t, s.Put(ctx, "app.snapshot", []byte("one")))
	assert.Equal(t, 1, s.Puts("app.snapshot"))

	s.FailPuts("snapshot", boom)
	assert.ErrorIs(t, s.Put(ctx, "app.snapshot", []byte("two")), boom)
	require.NoError(t, s.Put(ctx, "app.engine", []byte("relational")))
	assert.Equal(t, 1, s.Puts("app.snapshot"))
	assert.Equal(t, []byte("one"), s.LastPut("app.snapshot"))

	s.FailPuts("", nil)
	require.NoError(t, s.Put(ctx, "app.snapshot", []byte("three")))
	assert.Equal(t, 2, s.Puts("app.snapshot"))

	s.FailGets(boom)
	_, _, err := s.Get(ctx, "app.snapshot")
	assert.ErrorIs(t, err, boom)

	s.FailGets(nil)
	data, ok, err := s.Get(ctx, "app.snapshot")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("three"), data)
}
