package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"primer-server/internal/messaging"
)

// MockEventPublisher is a mock type for the EventPublisher type
type MockEventPublisher struct {
	mock.Mock
}

// PublishStoryEvent provides a mock function with given fields: ctx, event
func (_m *MockEventPublisher) PublishStoryEvent(ctx context.Context, event messaging.StoryEvent) error {
	ret := _m.Called(ctx, event)
	return ret.Error(0)
}

// NewMockEventPublisher creates a new instance of MockEventPublisher. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockEventPublisher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockEventPublisher {
	m := &MockEventPublisher{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ messaging.EventPublisher = (*MockEventPublisher)(nil)
