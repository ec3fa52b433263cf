package repository

import (
	"context"
	"time"

	"skypress/domain/model"
)

// IPost defines the persistence operations the publication pipeline needs for
// scheduled posts.
type IPost interface {
	// GetDuePosts returns unposted root/standalone posts whose scheduled time
	// has elapsed, excluding post-now posts and posts whose owning account has
	// an active violation.
	GetDuePosts(ctx context.Context, now time.Time) ([]*model.Post, error)
	// GetChildSegments returns a root's child posts ordered by thread order.
	GetChildSegments(ctx context.Context, rootID int64) ([]*model.Post, error)
	// MarkPublished stores the remote reference, truncates the retained text,
	// clears the embed list and the post-now flag.
	MarkPublished(ctx context.Context, id int64, uri, cid, truncatedText string) error
	// ClearPostNow drops the post-now flag without marking the post published.
	// Used after partial thread success so the retry path is the scheduler,
	// not the immediate path.
	ClearPostNow(ctx context.Context, id int64) error
	// RecomputeRepostCount refreshes the post's remaining-repost counter from
	// the repost table and trims exhausted cadence groups from its cadence
	// list.
	RecomputeRepostCount(ctx context.Context, postID int64) error
}

// IRepost defines persistence for scheduled repost occurrences.
type IRepost interface {
	// GetDueReposts returns repost rows whose scheduled time has elapsed,
	// excluding accounts with an active violation.
	GetDueReposts(ctx context.Context, now time.Time) ([]*model.Repost, error)
	// DeleteExpiredReposts removes past-due repost rows and returns the ids of
	// parent posts that need their counters recomputed.
	DeleteExpiredReposts(ctx context.Context, now time.Time) ([]int64, error)
}
