package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"skypress/domain/model"
	"skypress/usecase"
)

func newPublisher(posts *MockPostRepo, social *MockSocial, media *MockMediaStore, account *MockAccount) *usecase.PostPublisher {
	resolver := usecase.NewEmbedResolver(social, media, account, newStubHandleCache(), usecase.ResolverConfig{})
	return usecase.NewPostPublisher(posts, social, media, resolver, 256)
}

func strptr(s string) *string { return &s }

func TestPublisher_SinglePost(t *testing.T) {
	posts := new(MockPostRepo)
	social := new(MockSocial)
	media := new(MockMediaStore)
	publisher := newPublisher(posts, social, media, new(MockAccount))

	session := &model.Session{DID: "did:plc:alice"}
	post := &model.Post{ID: 7, AccountID: "acct-1", Text: "hello world"}

	social.On("SubmitPost", mock.Anything, session, mock.MatchedBy(func(o *model.OutboundPost) bool {
		return o.Text == "hello world" && o.Reply == nil && o.Attachment == nil
	})).Return(&model.RecordRef{URI: "at://did:plc:alice/app.bsky.feed.post/r1", CID: "c1"}, nil)
	posts.On("MarkPublished", mock.Anything, int64(7), "at://did:plc:alice/app.bsky.feed.post/r1", "c1", "hello world").
		Return(nil)

	report, err := publisher.Publish(context.Background(), post, session)
	require.NoError(t, err)
	require.True(t, report.FullSuccess())
	require.Equal(t, 1, report.Expected)
	require.Equal(t, 1, report.Got)
	require.Len(t, report.Records, 1)
	posts.AssertExpectations(t)
}

func TestPublisher_AlreadyPostedIsIdempotent(t *testing.T) {
	posts := new(MockPostRepo)
	social := new(MockSocial)
	publisher := newPublisher(posts, social, new(MockMediaStore), new(MockAccount))

	post := &model.Post{ID: 7, AccountID: "acct-1", Posted: true}
	report, err := publisher.Publish(context.Background(), post, &model.Session{})
	require.NoError(t, err)
	require.True(t, report.FullSuccess())
	social.AssertNotCalled(t, "SubmitPost", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublisher_RootFailureAborts(t *testing.T) {
	posts := new(MockPostRepo)
	social := new(MockSocial)
	publisher := newPublisher(posts, social, new(MockMediaStore), new(MockAccount))

	session := &model.Session{DID: "did:plc:alice"}
	root := &model.Post{ID: 1, AccountID: "acct-1", Text: "root", IsThreadRoot: true}

	social.On("SubmitPost", mock.Anything, session, mock.Anything).
		Return(nil, &model.RemoteError{Status: model.StatusPlatformOutage, Msg: "upstream down"})

	report, err := publisher.Publish(context.Background(), root, session)
	require.Error(t, err)
	require.Nil(t, report)
	posts.AssertNotCalled(t, "GetChildSegments", mock.Anything, mock.Anything)
}

func TestPublisher_ThreadStopsAtFirstChildFailure(t *testing.T) {
	posts := new(MockPostRepo)
	social := new(MockSocial)
	publisher := newPublisher(posts, social, new(MockMediaStore), new(MockAccount))

	session := &model.Session{DID: "did:plc:alice"}
	rootID := int64(10)
	root := &model.Post{ID: rootID, AccountID: "acct-1", Text: "root", IsThreadRoot: true}
	children := []*model.Post{
		{ID: 11, AccountID: "acct-1", Text: "child one", IsChildPost: true, RootID: &rootID, Order: 1},
		{ID: 12, AccountID: "acct-1", Text: "child two", IsChildPost: true, RootID: &rootID, Order: 2},
		{ID: 13, AccountID: "acct-1", Text: "child three", IsChildPost: true, RootID: &rootID, Order: 3},
	}

	rootRef := model.RecordRef{URI: "at://did:plc:alice/app.bsky.feed.post/root", CID: "cr"}
	oneRef := model.RecordRef{URI: "at://did:plc:alice/app.bsky.feed.post/c1", CID: "c1"}

	social.On("SubmitPost", mock.Anything, session, mock.MatchedBy(func(o *model.OutboundPost) bool {
		return o.Text == "root"
	})).Return(&rootRef, nil)
	social.On("SubmitPost", mock.Anything, session, mock.MatchedBy(func(o *model.OutboundPost) bool {
		return o.Text == "child one" && o.Reply != nil && o.Reply.Root == rootRef && o.Reply.Parent == rootRef
	})).Return(&oneRef, nil)
	social.On("SubmitPost", mock.Anything, session, mock.MatchedBy(func(o *model.OutboundPost) bool {
		return o.Text == "child two" && o.Reply != nil && o.Reply.Parent == oneRef
	})).Return(nil, &model.RemoteError{Status: model.StatusPlatformOutage, Msg: "rate limited"})

	posts.On("MarkPublished", mock.Anything, rootID, rootRef.URI, rootRef.CID, "root").Return(nil)
	posts.On("MarkPublished", mock.Anything, int64(11), oneRef.URI, oneRef.CID, "child one").Return(nil)
	posts.On("GetChildSegments", mock.Anything, rootID).Return(children, nil)

	report, err := publisher.Publish(context.Background(), root, session)
	require.NoError(t, err)
	require.Equal(t, 4, report.Expected)
	require.Equal(t, 2, report.Got)
	require.False(t, report.FullSuccess())
	// Child three replies to child two, so it must never be attempted.
	social.AssertNumberOfCalls(t, "SubmitPost", 3)
}

func TestPublisher_ResumesPartialThread(t *testing.T) {
	posts := new(MockPostRepo)
	social := new(MockSocial)
	publisher := newPublisher(posts, social, new(MockMediaStore), new(MockAccount))

	session := &model.Session{DID: "did:plc:alice"}
	rootID := int64(20)
	root := &model.Post{
		ID: rootID, AccountID: "acct-1", Text: "root", IsThreadRoot: true,
		URI: strptr("at://did:plc:alice/app.bsky.feed.post/root"), CID: strptr("cr"),
	}
	children := []*model.Post{
		{
			ID: 21, AccountID: "acct-1", Text: "child one", IsChildPost: true, RootID: &rootID, Order: 1,
			Posted: true,
			URI:    strptr("at://did:plc:alice/app.bsky.feed.post/c1"), CID: strptr("c1"),
		},
		{ID: 22, AccountID: "acct-1", Text: "child two", IsChildPost: true, RootID: &rootID, Order: 2},
	}

	twoRef := model.RecordRef{URI: "at://did:plc:alice/app.bsky.feed.post/c2", CID: "c2"}
	social.On("SubmitPost", mock.Anything, session, mock.MatchedBy(func(o *model.OutboundPost) bool {
		return o.Text == "child two" &&
			o.Reply != nil &&
			o.Reply.Root.URI == *root.URI &&
			o.Reply.Parent.URI == *children[0].URI
	})).Return(&twoRef, nil)

	posts.On("GetChildSegments", mock.Anything, rootID).Return(children, nil)
	posts.On("MarkPublished", mock.Anything, int64(22), twoRef.URI, twoRef.CID, "child two").Return(nil)

	report, err := publisher.Publish(context.Background(), root, session)
	require.NoError(t, err)
	require.Equal(t, 3, report.Expected)
	require.Equal(t, 3, report.Got)
	require.True(t, report.FullSuccess())
	// Only the outstanding segment was submitted.
	social.AssertNumberOfCalls(t, "SubmitPost", 1)
}

func TestPublisher_ReleasesMediaAfterSubmit(t *testing.T) {
	posts := new(MockPostRepo)
	social := new(MockSocial)
	media := new(MockMediaStore)
	publisher := newPublisher(posts, social, media, new(MockAccount))

	session := &model.Session{DID: "did:plc:alice"}
	post := &model.Post{
		ID: 30, AccountID: "acct-1", Text: "with picture",
		Embeds: []model.EmbedDescriptor{
			{Kind: model.EmbedImage, Image: &model.ImageDescriptor{StorageKey: "key-1", MimeType: "image/png"}},
		},
	}

	media.On("Fetch", mock.Anything, "key-1").Return([]byte("png-bytes"), nil)
	social.On("UploadBlob", mock.Anything, session, []byte("png-bytes"), "image/png").
		Return(model.BlobRef([]byte(`{"ref":"b"}`)), nil)
	social.On("SubmitPost", mock.Anything, session, mock.Anything).
		Return(&model.RecordRef{URI: "at://u", CID: "c"}, nil)
	posts.On("MarkPublished", mock.Anything, int64(30), "at://u", "c", "with picture").Return(nil)
	media.On("Delete", mock.Anything, "key-1").Return(nil)

	_, err := publisher.Publish(context.Background(), post, session)
	require.NoError(t, err)
	media.AssertCalled(t, "Delete", mock.Anything, "key-1")
}

func TestPublisher_TruncatesRetainedText(t *testing.T) {
	posts := new(MockPostRepo)
	social := new(MockSocial)
	resolver := usecase.NewEmbedResolver(social, new(MockMediaStore), new(MockAccount), newStubHandleCache(), usecase.ResolverConfig{})
	publisher := usecase.NewPostPublisher(posts, social, new(MockMediaStore), resolver, 5)

	session := &model.Session{DID: "did:plc:alice"}
	post := &model.Post{ID: 40, AccountID: "acct-1", Text: "abcdefghij"}

	social.On("SubmitPost", mock.Anything, session, mock.Anything).
		Return(&model.RecordRef{URI: "at://u", CID: "c"}, nil)
	posts.On("MarkPublished", mock.Anything, int64(40), "at://u", "c", "abcde").Return(nil)

	_, err := publisher.Publish(context.Background(), post, session)
	require.NoError(t, err)
	posts.AssertExpectations(t)
}
