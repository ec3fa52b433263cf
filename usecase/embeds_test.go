package usecase_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"skypress/domain/model"
	"skypress/usecase"
)

func newResolver(social *MockSocial, media *MockMediaStore, account *MockAccount) *usecase.EmbedResolver {
	return usecase.NewEmbedResolver(social, media, account, newStubHandleCache(), usecase.ResolverConfig{
		MaxImages:    4,
		MaxBlobBytes: 1_000_000,
	})
}

func TestEmbedResolver_ImageAndVideoConflict(t *testing.T) {
	social := new(MockSocial)
	media := new(MockMediaStore)
	account := new(MockAccount)
	resolver := newResolver(social, media, account)

	session := &model.Session{DID: "did:plc:alice"}
	media.On("Fetch", mock.Anything, "img-1").Return([]byte("image-bytes"), nil)
	social.On("UploadBlob", mock.Anything, session, []byte("image-bytes"), "image/png").
		Return(model.BlobRef(json.RawMessage(`{"ref":"img"}`)), nil)

	embeds := []model.EmbedDescriptor{
		{Kind: model.EmbedImage, Image: &model.ImageDescriptor{StorageKey: "img-1", MimeType: "image/png"}},
		{Kind: model.EmbedVideo, Video: &model.VideoDescriptor{StorageKey: "vid-1", MimeType: "video/mp4"}},
	}

	att, err := resolver.Resolve(context.Background(), embeds, session, "acct-1")
	require.Error(t, err)
	var violation *model.RecordViolationError
	require.ErrorAs(t, err, &violation)
	require.Equal(t, model.EmbedImage, violation.Have)
	require.Equal(t, model.EmbedVideo, violation.Got)
	require.Nil(t, att, "no partial attachment on a record violation")
}

func TestEmbedResolver_QuoteWithImage(t *testing.T) {
	social := new(MockSocial)
	media := new(MockMediaStore)
	account := new(MockAccount)
	resolver := newResolver(social, media, account)

	session := &model.Session{DID: "did:plc:alice"}
	media.On("Fetch", mock.Anything, "img-1").Return([]byte("image-bytes"), nil)
	social.On("UploadBlob", mock.Anything, session, []byte("image-bytes"), "image/jpeg").
		Return(model.BlobRef(json.RawMessage(`{"ref":"img"}`)), nil)
	social.On("ResolveHandle", mock.Anything, session, "bob.example.com").
		Return("did:plc:bob", nil)
	social.On("GetRecordCID", mock.Anything, session, "did:plc:bob", "app.bsky.feed.post", "3kabc").
		Return("bafyquoted", nil)

	embeds := []model.EmbedDescriptor{
		{Kind: model.EmbedImage, Image: &model.ImageDescriptor{StorageKey: "img-1", MimeType: "image/jpeg", Alt: "a cat"}},
		{Kind: model.EmbedRecord, Record: &model.QuoteDescriptor{Permalink: "https://bsky.app/profile/bob.example.com/post/3kabc"}},
	}

	att, err := resolver.Resolve(context.Background(), embeds, session, "acct-1")
	require.NoError(t, err)
	require.NotNil(t, att)
	require.Len(t, att.Images, 1)
	require.Equal(t, "a cat", att.Images[0].Alt)
	require.NotNil(t, att.Quote)
	require.Equal(t, "at://did:plc:bob/app.bsky.feed.post/3kabc", att.Quote.URI)
	require.Equal(t, "bafyquoted", att.Quote.CID)
	social.AssertExpectations(t)
}

func TestEmbedResolver_QuoteFailureIsRecoverable(t *testing.T) {
	social := new(MockSocial)
	media := new(MockMediaStore)
	account := new(MockAccount)
	resolver := newResolver(social, media, account)

	session := &model.Session{DID: "did:plc:alice"}
	social.On("ResolveHandle", mock.Anything, session, "gone.example.com").
		Return("", &model.RemoteError{Status: model.StatusUnhandled, Msg: "unknown handle"})
	media.On("Fetch", mock.Anything, "img-1").Return([]byte("image-bytes"), nil)
	social.On("UploadBlob", mock.Anything, session, []byte("image-bytes"), "image/png").
		Return(model.BlobRef(json.RawMessage(`{"ref":"img"}`)), nil)

	embeds := []model.EmbedDescriptor{
		{Kind: model.EmbedRecord, Record: &model.QuoteDescriptor{Permalink: "https://bsky.app/profile/gone.example.com/post/3kabc"}},
		{Kind: model.EmbedImage, Image: &model.ImageDescriptor{StorageKey: "img-1", MimeType: "image/png"}},
	}

	att, err := resolver.Resolve(context.Background(), embeds, session, "acct-1")
	require.NoError(t, err, "a failed quote reference must not fail the post")
	require.NotNil(t, att)
	require.Nil(t, att.Quote)
	require.Len(t, att.Images, 1)
}

func TestEmbedResolver_LinkCardSurvivesThumbnailFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	social := new(MockSocial)
	media := new(MockMediaStore)
	account := new(MockAccount)
	resolver := newResolver(social, media, account)

	session := &model.Session{DID: "did:plc:alice"}
	embeds := []model.EmbedDescriptor{
		{Kind: model.EmbedLink, Link: &model.LinkDescriptor{
			URL:      "https://example.com/article",
			Title:    "An article",
			ThumbURL: ts.URL + "/missing.jpg",
		}},
	}

	att, err := resolver.Resolve(context.Background(), embeds, session, "acct-1")
	require.NoError(t, err)
	require.NotNil(t, att)
	require.NotNil(t, att.External)
	require.Equal(t, "https://example.com/article", att.External.URL)
	require.Empty(t, att.External.Thumb, "thumbnail failure must not produce a thumb field")
	social.AssertNotCalled(t, "UploadBlob", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEmbedResolver_MediaTooLargeRecordsViolation(t *testing.T) {
	social := new(MockSocial)
	media := new(MockMediaStore)
	account := new(MockAccount)
	resolver := newResolver(social, media, account)

	session := &model.Session{DID: "did:plc:alice"}
	media.On("Fetch", mock.Anything, "vid-1").Return([]byte("big-video"), nil)
	social.On("UploadBlob", mock.Anything, session, []byte("big-video"), "video/mp4").
		Return(nil, &model.RemoteError{Status: model.StatusMediaTooLarge, Code: "BlobTooLarge", Msg: "too big"})
	account.On("RecordViolation", mock.Anything, "acct-1", model.StatusMediaTooLarge, "too big").
		Return(nil).Once()

	embeds := []model.EmbedDescriptor{
		{Kind: model.EmbedVideo, Video: &model.VideoDescriptor{StorageKey: "vid-1", MimeType: "video/mp4"}},
	}

	_, err := resolver.Resolve(context.Background(), embeds, session, "acct-1")
	require.Error(t, err)
	account.AssertExpectations(t)
}

func TestEmbedResolver_EmptyEmbeds(t *testing.T) {
	resolver := newResolver(new(MockSocial), new(MockMediaStore), new(MockAccount))
	att, err := resolver.Resolve(context.Background(), nil, &model.Session{}, "acct-1")
	require.NoError(t, err)
	require.Nil(t, att)
}
