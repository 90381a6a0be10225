package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, s Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockStore) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Session), args.Error(1)
}

func (m *MockStore) Save(ctx context.Context, s Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) Lock(ctx context.Context, id uuid.UUID) (func(), error) {
	args := m.Called(ctx, id)
	unlock, _ := args.Get(0).(func())
	return unlock, args.Error(1)
}
