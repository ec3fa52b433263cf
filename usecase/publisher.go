package usecase

import (
	"context"
	"time"

	"skypress/domain/model"
	"skypress/domain/repository"
	"skypress/infrastructure/logger"
)

// PostPublisher turns one post entity (plus its ordered thread children) into
// remote submissions, chaining reply references and reporting partial
// success.
type PostPublisher struct {
	posts    repository.IPost
	social   repository.ISocial
	media    repository.IMediaStore
	resolver *EmbedResolver

	retainedRunes int
}

func NewPostPublisher(posts repository.IPost, social repository.ISocial, media repository.IMediaStore, resolver *EmbedResolver, retainedRunes int) *PostPublisher {
	if retainedRunes == 0 {
		retainedRunes = 256
	}
	return &PostPublisher{
		posts:         posts,
		social:        social,
		media:         media,
		resolver:      resolver,
		retainedRunes: retainedRunes,
	}
}

// alreadyPublished centralizes the resume inference: a segment counts as
// published when flagged, or when a previous partially-completed run stored
// its remote reference without finishing the thread.
func alreadyPublished(p *model.Post) bool {
	return p.Posted || (p.URI != nil && p.CID != nil)
}

// Publish submits the root and, for thread roots, its children in strict
// order. Re-delivered work is not re-submitted: published segments are seeded
// into the reply chain instead. The first child failure stops the walk since
// later children reply to earlier ones.
func (p *PostPublisher) Publish(ctx context.Context, root *model.Post, s *model.Session) (*model.PublicationReport, error) {
	// Idempotency guard for at-least-once queues.
	if !root.IsThreadRoot && root.Posted {
		logger.GetLogger().WithField("postID", root.ID).Info("Post already published, skipping")
		return &model.PublicationReport{Expected: 1, Got: 1}, nil
	}

	report := &model.PublicationReport{Expected: 1}

	var rootRef model.RecordRef
	if alreadyPublished(root) {
		// Recovering a partially-completed thread: seed the chain with the
		// existing reference instead of re-submitting the root.
		rootRef = model.RecordRef{URI: *root.URI, CID: *root.CID}
		report.Got = 1
	} else {
		ref, err := p.submitSegment(ctx, root, s, nil)
		if err != nil {
			// A thread cannot proceed without its root.
			return nil, err
		}
		rootRef = *ref
		report.Records = append(report.Records, *ref)
		report.Got = 1
	}

	if !root.IsThreadRoot {
		return report, nil
	}

	children, err := p.posts.GetChildSegments(ctx, root.ID)
	if err != nil {
		return nil, err
	}
	report.Expected = 1 + len(children)

	parentRef := rootRef
	for _, child := range children {
		if alreadyPublished(child) {
			parentRef = model.RecordRef{URI: *child.URI, CID: *child.CID}
			report.Got++
			continue
		}
		reply := &model.ReplyRefs{Root: rootRef, Parent: parentRef}
		ref, err := p.submitSegment(ctx, child, s, reply)
		if err != nil {
			logger.GetLogger().
				WithField("rootID", root.ID).
				WithField("childID", child.ID).
				WithField("order", child.Order).
				WithField("error", err).
				Warn("Thread child failed, stopping thread walk")
			break
		}
		report.Records = append(report.Records, *ref)
		report.Got++
		parentRef = *ref
	}

	return report, nil
}

// submitSegment resolves one segment's embeds, submits it, and persists the
// outcome: remote reference stored, retained text truncated, uploaded media
// released.
func (p *PostPublisher) submitSegment(ctx context.Context, post *model.Post, s *model.Session, reply *model.ReplyRefs) (*model.RecordRef, error) {
	att, err := p.resolver.Resolve(ctx, post.Embeds, s, post.AccountID)
	if err != nil {
		return nil, err
	}

	outbound := &model.OutboundPost{
		Text:       post.Text,
		CreatedAt:  time.Now().UTC(),
		Reply:      reply,
		Attachment: att,
	}
	if post.Sensitivity != "" {
		outbound.Labels = []string{post.Sensitivity}
	}

	ref, err := p.social.SubmitPost(ctx, s, outbound)
	if err != nil {
		return nil, err
	}

	if err := p.posts.MarkPublished(ctx, post.ID, ref.URI, ref.CID, truncateRunes(post.Text, p.retainedRunes)); err != nil {
		// The record is live remotely; losing the local mark would cause a
		// duplicate on redelivery, so this is loud.
		logger.GetLogger().WithField("postID", post.ID).WithField("error", err).
			Error("Failed to persist published reference")
		return nil, err
	}
	p.releaseMedia(ctx, post)
	return ref, nil
}

func (p *PostPublisher) releaseMedia(ctx context.Context, post *model.Post) {
	for _, embed := range post.Embeds {
		var key string
		switch {
		case embed.Image != nil:
			key = embed.Image.StorageKey
		case embed.Video != nil:
			key = embed.Video.StorageKey
		}
		if key == "" {
			continue
		}
		if err := p.media.Delete(ctx, key); err != nil {
			logger.GetLogger().WithField("key", key).WithField("error", err).
				Warn("Failed to release uploaded media")
		}
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
