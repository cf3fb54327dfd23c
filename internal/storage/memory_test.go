package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	t.Run("download missing object", func(t *testing.T) {
		_, err := s.Download(ctx, "b", "missing.pdf")
		require.ErrorIs(t, err, ErrObjectNotFound)
	})

	t.Run("upload then download", func(t *testing.T) {
		require.NoError(t, s.Upload(ctx, "b", "a/scan.pdf", []byte("data"), "application/pdf", false))

		got, err := s.Download(ctx, "b", "a/scan.pdf")
		require.NoError(t, err)
		assert.Equal(t, []byte("data"), got)

		ok, err := s.Exists(ctx, "b", "a/scan.pdf")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("upload without upsert rejects overwrite", func(t *testing.T) {
		err := s.Upload(ctx, "b", "a/scan.pdf", []byte("other"), "application/pdf", false)
		require.Error(t, err)
	})

	t.Run("upload with upsert overwrites", func(t *testing.T) {
		require.NoError(t, s.Upload(ctx, "b", "a/scan.pdf", []byte("v2"), "application/pdf", true))

		got, err := s.Download(ctx, "b", "a/scan.pdf")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("list by prefix", func(t *testing.T) {
		require.NoError(t, s.Upload(ctx, "b", "a/other.pdf", []byte("x"), "application/pdf", true))
		require.NoError(t, s.Upload(ctx, "b", "z/far.pdf", []byte("x"), "application/pdf", true))

		keys, err := s.List(ctx, "b", "a/")
		require.NoError(t, err)
		assert.Equal(t, []string{"a/other.pdf", "a/scan.pdf"}, keys)
	})

	t.Run("delete removes the object", func(t *testing.T) {
		s.Delete(ctx, "b", "a/scan.pdf")
		ok, err := s.Exists(ctx, "b", "a/scan.pdf")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
