package repository

import (
	"context"

	"skypress/domain/model"
)

// ISocial is the remote publish API. Expected authentication failures come
// back as an AccountStatus value, not an error; error is reserved for
// transport problems and unexpected responses (carrying *model.RemoteError
// where the platform returned a typed body).
type ISocial interface {
	Login(ctx context.Context, identifier, secret string) (*model.Session, model.AccountStatus, error)
	SubmitPost(ctx context.Context, s *model.Session, post *model.OutboundPost) (*model.RecordRef, error)
	UploadBlob(ctx context.Context, s *model.Session, data []byte, mimeType string) (model.BlobRef, error)
	Repost(ctx context.Context, s *model.Session, subject model.RecordRef) (*model.RecordRef, error)
	UndoRepost(ctx context.Context, s *model.Session, uri string) error
	ResolveHandle(ctx context.Context, s *model.Session, handle string) (string, error)
	// GetRecordCID fetches the content identifier of a record by collection
	// and key within the given repo.
	GetRecordCID(ctx context.Context, s *model.Session, repo, collection, rkey string) (string, error)
}
