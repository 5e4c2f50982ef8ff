package mocks

import (
	"context"

	"github.com/brettbedarf/deskfs/kv"
	"github.com/stretchr/testify/mock"
)

// MockKVStore implements kv.Store for testing across packages
type MockKVStore struct {
	mock.Mock
}

func (m *MockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)

	// Handle function return types (for stateful tests)
	if fn, ok := args.Get(0).(func(context.Context, string) []byte); ok {
		return fn(ctx, key), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKVStore) Set(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)

	if fn, ok := args.Get(0).(func(context.Context, string, []byte) error); ok {
		return fn(ctx, key, value)
	}
	return args.Error(0)
}

func (m *MockKVStore) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockKVStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ kv.Store = (*MockKVStore)(nil)
