package kv

import (
	"context"
	"slices"

	"github.com/puzpuzpuz/xsync/v4"
)

// MemoryStore keeps values in process memory. Nothing survives Close.
type MemoryStore struct {
	values *xsync.Map[string, []byte]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: xsync.NewMap[string, []byte]()}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := s.values.Load(key)
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.values.Store(key, slices.Clone(value))
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.values.Delete(key)
	return nil
}

func (s *MemoryStore) Close() error {
	s.values.Clear()
	return nil
}
