package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheStore keeps blobs in memcached. Values are subject to the server's item size limit
// (1 MiB by default) and to eviction, so it suits short-lived deployments and tests.
type MemcacheStore struct {
	client *memcache.Client
}

// NewMemcacheStore creates a client for one or more comma-separated server addresses.
func NewMemcacheStore(servers string) *MemcacheStore {
	return &MemcacheStore{
		client: memcache.New(strings.Split(servers, ",")...),
	}
}

func (s *MemcacheStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	item, err := s.client.Get(memcacheKey(path))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, notFound(path)
	}
	if err != nil {
		return nil, fmt.Errorf("memcache get %s: %w", path, err)
	}
	return item.Value, nil
}

func (s *MemcacheStore) Put(ctx context.Context, data []byte, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.client.Set(&memcache.Item{
		Key:   memcacheKey(path),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("memcache set %s: %w", path, err)
	}
	return nil
}

// Ping checks every server is reachable.
func (s *MemcacheStore) Ping() error {
	return s.client.Ping()
}

func (s *MemcacheStore) Close() error {
	return s.client.Close()
}

// memcache keys may not contain spaces or control characters.
func memcacheKey(path string) string {
	return strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return '_'
		}
		return r
	}, path)
}
