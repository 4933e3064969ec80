package gcs

import (
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "artifacts"})
	require.Error(t, err)

	_, err = New(&storage.Client{}, Config{})
	require.Error(t, err)

	store, err := New(&storage.Client{}, Config{Bucket: "artifacts", Prefix: "/codeecho/sessions/"})
	require.NoError(t, err)
	require.Equal(t, "codeecho/sessions", store.prefix)
}
