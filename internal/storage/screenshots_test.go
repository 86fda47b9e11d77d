package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fixedKeys struct {
	key string
	err error
}

func (k fixedKeys) NewKey() (string, error) { return k.key, k.err }

func TestScreenshotStorePut(t *testing.T) {
	t.Parallel()

	provider := NewMemoryProvider()
	store := NewScreenshotStore(provider, fixedKeys{key: "abc123"}, "screenshots", "https://pub.example.dev/")

	url, err := store.Put(context.Background(), []byte("jpeg-bytes"))
	require.NoError(t, err)
	require.Equal(t, "https://pub.example.dev/screenshots/abc123.jpg", url)

	data, ok := provider.Get("screenshots/abc123.jpg")
	require.True(t, ok)
	require.Equal(t, []byte("jpeg-bytes"), data)
}

func TestScreenshotStoreKeyFailure(t *testing.T) {
	t.Parallel()

	store := NewScreenshotStore(NewMemoryProvider(), fixedKeys{err: errors.New("entropy gone")}, "", "https://pub.example.dev")
	_, err := store.Put(context.Background(), []byte("x"))
	require.Error(t, err)
}

func TestMemoryProviderCopiesData(t *testing.T) {
	t.Parallel()

	provider := NewMemoryProvider()
	buf := []byte("original")
	require.NoError(t, provider.Save(context.Background(), "k", buf))
	buf[0] = 'X'

	data, ok := provider.Get("k")
	require.True(t, ok)
	require.Equal(t, []byte("original"), data)
	require.Equal(t, 1, provider.Len())
}
