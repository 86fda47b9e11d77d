package storage

import (
	"context"
	"fmt"
	"strings"
)

// KeyGenerator produces random object keys.
type KeyGenerator interface {
	NewKey() (string, error)
}

// ScreenshotStore writes screenshot blobs under the service key convention
// and maps them to public-fetchable URLs.
type ScreenshotStore struct {
	provider   Provider
	keys       KeyGenerator
	prefix     string
	publicBase string
}

// NewScreenshotStore builds a ScreenshotStore. prefix defaults to
// "screenshots"; publicBase is the fixed public origin objects resolve under.
func NewScreenshotStore(provider Provider, keys KeyGenerator, prefix, publicBase string) *ScreenshotStore {
	if prefix == "" {
		prefix = "screenshots"
	}
	return &ScreenshotStore{
		provider:   provider,
		keys:       keys,
		prefix:     strings.Trim(prefix, "/"),
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

// Put stores img under a freshly generated key and returns its public URL.
func (s *ScreenshotStore) Put(ctx context.Context, img []byte) (string, error) {
	id, err := s.keys.NewKey()
	if err != nil {
		return "", fmt.Errorf("generate screenshot key: %w", err)
	}
	key := fmt.Sprintf("%s/%s.jpg", s.prefix, id)
	if err := s.provider.Save(ctx, key, img); err != nil {
		return "", fmt.Errorf("store screenshot: %w", err)
	}
	return s.publicBase + "/" + key, nil
}
