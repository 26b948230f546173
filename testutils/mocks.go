package testutils

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, identifier, password string) (uint, error) {
	args := m.Called(ctx, identifier, password)
	return args.Get(0).(uint), args.Error(1)
}

type MockReplayTracker struct {
	mock.Mock
}

func (m *MockReplayTracker) Record(ctx context.Context, subjectID uint, tokenID string) (int64, error) {
	args := m.Called(ctx, subjectID, tokenID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReplayTracker) Count(ctx context.Context, subjectID uint) (int64, error) {
	args := m.Called(ctx, subjectID)
	return args.Get(0).(int64), args.Error(1)
}
