package repository

import "context"

// IMediaStore is the object-storage collaborator holding uploaded media bytes
// until they are transmitted to the remote platform.
type IMediaStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
