package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/joefazee/categorias/app/categories"
	"github.com/joefazee/categorias/models"
)

type MockCategoryRepository struct {
	mock.Mock
}

func (m *MockCategoryRepository) Insert(ctx context.Context, category *models.Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *MockCategoryRepository) Save(ctx context.Context, category *models.Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *MockCategoryRepository) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

func (m *MockCategoryRepository) List(ctx context.Context, q categories.Query) ([]models.Category, int64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]models.Category), args.Get(1).(int64), args.Error(2)
}

func (m *MockCategoryRepository) SlugsWithPrefix(ctx context.Context, base string) ([]string, error) {
	args := m.Called(ctx, base)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCategoryRepository) Delete(ctx context.Context, id int64, policy categories.RemovePolicy) error {
	args := m.Called(ctx, id, policy)
	return args.Error(0)
}

func (m *MockCategoryRepository) PublishedPosts(ctx context.Context, categoryID int64) ([]models.Post, error) {
	args := m.Called(ctx, categoryID)
	return args.Get(0).([]models.Post), args.Error(1)
}

func (m *MockCategoryRepository) RecountPosts(ctx context.Context) ([]categories.CountDrift, error) {
	args := m.Called(ctx)
	return args.Get(0).([]categories.CountDrift), args.Error(1)
}

func (m *MockCategoryRepository) AttachPost(ctx context.Context, postID, categoryID int64) (bool, error) {
	args := m.Called(ctx, postID, categoryID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCategoryRepository) DetachPost(ctx context.Context, postID, categoryID int64) (bool, error) {
	args := m.Called(ctx, postID, categoryID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCategoryRepository) SavePost(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockCategoryRepository) DeletePost(ctx context.Context, postID int64) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}

// MockMembershipHooks stands in for the category service on the event side.
type MockMembershipHooks struct {
	mock.Mock
}

func (m *MockMembershipHooks) AttachPost(ctx context.Context, postID, categoryID int64) (bool, error) {
	args := m.Called(ctx, postID, categoryID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMembershipHooks) DetachPost(ctx context.Context, postID, categoryID int64) (bool, error) {
	args := m.Called(ctx, postID, categoryID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMembershipHooks) SavePost(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockMembershipHooks) DeletePost(ctx context.Context, postID int64) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}
