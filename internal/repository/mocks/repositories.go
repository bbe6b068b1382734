package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"primer-server/internal/model"
	"primer-server/internal/repository"
)

// MockUserRepository is a mock type for the UserRepository type
type MockUserRepository struct {
	mock.Mock
}

// GetOrCreateByEmail provides a mock function with given fields: ctx, email, name
func (_m *MockUserRepository) GetOrCreateByEmail(ctx context.Context, email string, name string) (*model.User, error) {
	ret := _m.Called(ctx, email, name)

	var r0 *model.User
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.User)
	}
	return r0, ret.Error(1)
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	ret := _m.Called(ctx, id)

	var r0 *model.User
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.User)
	}
	return r0, ret.Error(1)
}

// MockStoryRepository is a mock type for the StoryRepository type
type MockStoryRepository struct {
	mock.Mock
}

// Create provides a mock function with given fields: ctx, story
func (_m *MockStoryRepository) Create(ctx context.Context, story *model.Story) error {
	ret := _m.Called(ctx, story)
	return ret.Error(0)
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *MockStoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Story, error) {
	ret := _m.Called(ctx, id)

	var r0 *model.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Story)
	}
	return r0, ret.Error(1)
}

// GetWithPages provides a mock function with given fields: ctx, id
func (_m *MockStoryRepository) GetWithPages(ctx context.Context, id uuid.UUID) (*model.Story, error) {
	ret := _m.Called(ctx, id)

	var r0 *model.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Story)
	}
	return r0, ret.Error(1)
}

// ListByUser provides a mock function with given fields: ctx, userID
func (_m *MockStoryRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Story, error) {
	ret := _m.Called(ctx, userID)

	var r0 []model.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Story)
	}
	return r0, ret.Error(1)
}

// LatestByUser provides a mock function with given fields: ctx, userID
func (_m *MockStoryRepository) LatestByUser(ctx context.Context, userID uuid.UUID) (*model.Story, error) {
	ret := _m.Called(ctx, userID)

	var r0 *model.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Story)
	}
	return r0, ret.Error(1)
}

// Delete provides a mock function with given fields: ctx, id, userID
func (_m *MockStoryRepository) Delete(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	ret := _m.Called(ctx, id, userID)
	return ret.Error(0)
}

// MockPageRepository is a mock type for the PageRepository type
type MockPageRepository struct {
	mock.Mock
}

// Create provides a mock function with given fields: ctx, page
func (_m *MockPageRepository) Create(ctx context.Context, page *model.Page) (*model.Page, error) {
	ret := _m.Called(ctx, page)

	var r0 *model.Page
	if rf, ok := ret.Get(0).(func(context.Context, *model.Page) *model.Page); ok {
		r0 = rf(ctx, page)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Page)
	}
	return r0, ret.Error(1)
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *MockPageRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Page, error) {
	ret := _m.Called(ctx, id)

	var r0 *model.Page
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Page)
	}
	return r0, ret.Error(1)
}

// GetByNumber provides a mock function with given fields: ctx, storyID, number
func (_m *MockPageRepository) GetByNumber(ctx context.Context, storyID uuid.UUID, number int) (*model.Page, error) {
	ret := _m.Called(ctx, storyID, number)

	var r0 *model.Page
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Page)
	}
	return r0, ret.Error(1)
}

// ListByStory provides a mock function with given fields: ctx, storyID
func (_m *MockPageRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]model.Page, error) {
	ret := _m.Called(ctx, storyID)

	var r0 []model.Page
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Page)
	}
	return r0, ret.Error(1)
}

// SetAudioFile provides a mock function with given fields: ctx, id, audioFile
func (_m *MockPageRepository) SetAudioFile(ctx context.Context, id uuid.UUID, audioFile string) error {
	ret := _m.Called(ctx, id, audioFile)
	return ret.Error(0)
}

var (
	_ repository.UserRepository  = (*MockUserRepository)(nil)
	_ repository.StoryRepository = (*MockStoryRepository)(nil)
	_ repository.PageRepository  = (*MockPageRepository)(nil)
)
