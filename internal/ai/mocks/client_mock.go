package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"primer-server/internal/ai"
	"primer-server/internal/model"
)

// MockClient is a mock type for the ai.Client type
type MockClient struct {
	mock.Mock
}

// Complete provides a mock function with given fields: ctx, prompt, history
func (_m *MockClient) Complete(ctx context.Context, prompt string, history []model.PromptPair) (string, error) {
	ret := _m.Called(ctx, prompt, history)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, []model.PromptPair) string); ok {
		r0 = rf(ctx, prompt, history)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(string)
		}
	}

	return r0, ret.Error(1)
}

// Summarize provides a mock function with given fields: ctx, prompt, completion
func (_m *MockClient) Summarize(ctx context.Context, prompt string, completion string) (ai.Summary, error) {
	ret := _m.Called(ctx, prompt, completion)

	var r0 ai.Summary
	if rf, ok := ret.Get(0).(func(context.Context, string, string) ai.Summary); ok {
		r0 = rf(ctx, prompt, completion)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(ai.Summary)
		}
	}

	return r0, ret.Error(1)
}

// GenerateImage provides a mock function with given fields: ctx, imagePrompt
func (_m *MockClient) GenerateImage(ctx context.Context, imagePrompt string) (ai.Image, error) {
	ret := _m.Called(ctx, imagePrompt)

	var r0 ai.Image
	if rf, ok := ret.Get(0).(func(context.Context, string) ai.Image); ok {
		r0 = rf(ctx, imagePrompt)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(ai.Image)
		}
	}

	return r0, ret.Error(1)
}

// Synthesize provides a mock function with given fields: ctx, text
func (_m *MockClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ret := _m.Called(ctx, text)

	var r0 []byte
	if rf, ok := ret.Get(0).(func(context.Context, string) []byte); ok {
		r0 = rf(ctx, text)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]byte)
		}
	}

	return r0, ret.Error(1)
}

// ListModels provides a mock function with given fields: ctx
func (_m *MockClient) ListModels(ctx context.Context) ([]ai.Model, error) {
	ret := _m.Called(ctx)

	var r0 []ai.Model
	if rf, ok := ret.Get(0).(func(context.Context) []ai.Model); ok {
		r0 = rf(ctx)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]ai.Model)
		}
	}

	return r0, ret.Error(1)
}

// NewMockClient creates a new instance of MockClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ ai.Client = (*MockClient)(nil)
