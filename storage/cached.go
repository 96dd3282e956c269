package storage

import (
	"bytes"
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore fronts another store with an in-process LRU of recently read or written blobs.
// Only successful reads are cached, so a missing blob is looked up again every time.
type CachedStore struct {
	next  BlobStore
	cache *lru.Cache[string, []byte]
}

// NewCachedStore wraps next with an LRU holding up to size blobs.
func NewCachedStore(next BlobStore, size int) (*CachedStore, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create blob cache: %w", err)
	}
	return &CachedStore{next: next, cache: cache}, nil
}

func (s *CachedStore) Get(ctx context.Context, path string) ([]byte, error) {
	if data, ok := s.cache.Get(path); ok {
		return bytes.Clone(data), nil
	}
	data, err := s.next.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	s.cache.Add(path, bytes.Clone(data))
	return data, nil
}

func (s *CachedStore) Put(ctx context.Context, data []byte, path string) error {
	if err := s.next.Put(ctx, data, path); err != nil {
		s.cache.Remove(path)
		return err
	}
	s.cache.Add(path, bytes.Clone(data))
	return nil
}

func (s *CachedStore) Close() error {
	s.cache.Purge()
	return Close(s.next)
}
