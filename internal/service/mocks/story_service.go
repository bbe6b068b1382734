package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"primer-server/internal/model"
	"primer-server/internal/service"
)

// MockStoryService is a mock type for the StoryService type
type MockStoryService struct {
	mock.Mock
}

func (_m *MockStoryService) ResolveUser(ctx context.Context, email string, name string) (*model.User, error) {
	ret := _m.Called(ctx, email, name)

	var r0 *model.User
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.User)
	}
	return r0, ret.Error(1)
}

func (_m *MockStoryService) CreateStory(ctx context.Context, userID uuid.UUID, title string) (*model.Story, error) {
	ret := _m.Called(ctx, userID, title)

	var r0 *model.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Story)
	}
	return r0, ret.Error(1)
}

func (_m *MockStoryService) ListStories(ctx context.Context, userID uuid.UUID) ([]model.Story, error) {
	ret := _m.Called(ctx, userID)

	var r0 []model.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Story)
	}
	return r0, ret.Error(1)
}

func (_m *MockStoryService) LatestStory(ctx context.Context, userID uuid.UUID) (*model.Story, error) {
	ret := _m.Called(ctx, userID)

	var r0 *model.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Story)
	}
	return r0, ret.Error(1)
}

func (_m *MockStoryService) GetStory(ctx context.Context, userID uuid.UUID, storyID uuid.UUID) (*model.Story, error) {
	ret := _m.Called(ctx, userID, storyID)

	var r0 *model.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Story)
	}
	return r0, ret.Error(1)
}

func (_m *MockStoryService) DeleteStory(ctx context.Context, userID uuid.UUID, storyID uuid.UUID) error {
	ret := _m.Called(ctx, userID, storyID)
	return ret.Error(0)
}

func (_m *MockStoryService) ListPages(ctx context.Context, userID uuid.UUID, storyID uuid.UUID) ([]model.Page, error) {
	ret := _m.Called(ctx, userID, storyID)

	var r0 []model.Page
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Page)
	}
	return r0, ret.Error(1)
}

func (_m *MockStoryService) GetPage(ctx context.Context, userID uuid.UUID, storyID uuid.UUID, number int) (*model.Page, error) {
	ret := _m.Called(ctx, userID, storyID, number)

	var r0 *model.Page
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Page)
	}
	return r0, ret.Error(1)
}

func (_m *MockStoryService) NarratePage(ctx context.Context, userID uuid.UUID, pageID uuid.UUID) (*model.Page, error) {
	ret := _m.Called(ctx, userID, pageID)

	var r0 *model.Page
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Page)
	}
	return r0, ret.Error(1)
}

// NewMockStoryService creates a new instance of MockStoryService. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockStoryService(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStoryService {
	m := &MockStoryService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ service.StoryService = (*MockStoryService)(nil)
