package usecase_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"skypress/domain/model"
	"skypress/infrastructure/queue"
)

// Mock implementations of the pipeline's collaborators.

type MockSocial struct {
	mock.Mock
}

func (m *MockSocial) Login(ctx context.Context, identifier, secret string) (*model.Session, model.AccountStatus, error) {
	args := m.Called(ctx, identifier, secret)
	var s *model.Session
	if args.Get(0) != nil {
		s = args.Get(0).(*model.Session)
	}
	return s, args.Get(1).(model.AccountStatus), args.Error(2)
}

func (m *MockSocial) SubmitPost(ctx context.Context, s *model.Session, post *model.OutboundPost) (*model.RecordRef, error) {
	args := m.Called(ctx, s, post)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RecordRef), args.Error(1)
}

func (m *MockSocial) UploadBlob(ctx context.Context, s *model.Session, data []byte, mimeType string) (model.BlobRef, error) {
	args := m.Called(ctx, s, data, mimeType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.BlobRef), args.Error(1)
}

func (m *MockSocial) Repost(ctx context.Context, s *model.Session, subject model.RecordRef) (*model.RecordRef, error) {
	args := m.Called(ctx, s, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RecordRef), args.Error(1)
}

func (m *MockSocial) UndoRepost(ctx context.Context, s *model.Session, uri string) error {
	args := m.Called(ctx, s, uri)
	return args.Error(0)
}

func (m *MockSocial) ResolveHandle(ctx context.Context, s *model.Session, handle string) (string, error) {
	args := m.Called(ctx, s, handle)
	return args.String(0), args.Error(1)
}

func (m *MockSocial) GetRecordCID(ctx context.Context, s *model.Session, repo, collection, rkey string) (string, error) {
	args := m.Called(ctx, s, repo, collection, rkey)
	return args.String(0), args.Error(1)
}

type MockMediaStore struct {
	mock.Mock
}

func (m *MockMediaStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockMediaStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MockAccount struct {
	mock.Mock
}

func (m *MockAccount) GetCredentials(ctx context.Context, accountID string) (*model.Credentials, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Credentials), args.Error(1)
}

func (m *MockAccount) RecordViolation(ctx context.Context, accountID string, status model.AccountStatus, detail string) error {
	args := m.Called(ctx, accountID, status, detail)
	return args.Error(0)
}

func (m *MockAccount) HasViolation(ctx context.Context, accountID string) (bool, error) {
	args := m.Called(ctx, accountID)
	return args.Bool(0), args.Error(1)
}

type MockPostRepo struct {
	mock.Mock
}

func (m *MockPostRepo) GetDuePosts(ctx context.Context, now time.Time) ([]*model.Post, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Post), args.Error(1)
}

func (m *MockPostRepo) GetChildSegments(ctx context.Context, rootID int64) ([]*model.Post, error) {
	args := m.Called(ctx, rootID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Post), args.Error(1)
}

func (m *MockPostRepo) MarkPublished(ctx context.Context, id int64, uri, cid, truncatedText string) error {
	args := m.Called(ctx, id, uri, cid, truncatedText)
	return args.Error(0)
}

func (m *MockPostRepo) ClearPostNow(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPostRepo) RecomputeRepostCount(ctx context.Context, postID int64) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}

type MockRepostRepo struct {
	mock.Mock
}

func (m *MockRepostRepo) GetDueReposts(ctx context.Context, now time.Time) ([]*model.Repost, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Repost), args.Error(1)
}

func (m *MockRepostRepo) DeleteExpiredReposts(ctx context.Context, now time.Time) ([]int64, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

type MockTaskQueue struct {
	mock.Mock
}

func (m *MockTaskQueue) Publish(ctx context.Context, task *model.Task, delay time.Duration) error {
	args := m.Called(ctx, task, delay)
	return args.Error(0)
}

func (m *MockTaskQueue) Subscribe(ctx context.Context, batchSize int, handler queue.BatchHandler) error {
	args := m.Called(ctx, batchSize, handler)
	return args.Error(0)
}

// stubHandleCache is a map-backed IHandleCache.
type stubHandleCache struct {
	entries map[string]string
}

func newStubHandleCache() *stubHandleCache {
	return &stubHandleCache{entries: map[string]string{}}
}

func (c *stubHandleCache) Get(_ context.Context, handle string) (string, bool) {
	did, ok := c.entries[handle]
	return did, ok
}

func (c *stubHandleCache) Set(_ context.Context, handle, did string) {
	c.entries[handle] = did
}
