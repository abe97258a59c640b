package test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/repository"
)

// MockStateStore is a testify mock of repository.StateStore.
type MockStateStore struct {
	mock.Mock
}

var _ repository.StateStore = (*MockStateStore)(nil)

func (m *MockStateStore) Save(ctx context.Context, state *model.BatchState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockStateStore) Load(ctx context.Context, modelName string) (*model.BatchState, bool, error) {
	args := m.Called(ctx, modelName)
	state, _ := args.Get(0).(*model.BatchState)
	return state, args.Bool(1), args.Error(2)
}

func (m *MockStateStore) Delete(ctx context.Context, modelName string) error {
	args := m.Called(ctx, modelName)
	return args.Error(0)
}

func (m *MockStateStore) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}
