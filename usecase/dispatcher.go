package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skypress/domain/model"
	"skypress/domain/repository"
	"skypress/infrastructure/logger"
	"skypress/infrastructure/queue"
)

// DispatcherConfig controls retry and backpressure behavior.
type DispatcherConfig struct {
	BaseDelay    time.Duration
	MaxAttempts  int
	Backpressure bool
	Agents       AgentConfig
}

// Dispatcher consumes batches of queued tasks. One AgentMap is created per
// batch to amortize login cost across the batch's messages.
type Dispatcher struct {
	accounts  repository.IAccount
	social    repository.ISocial
	publisher *PostPublisher
	taskQueue queue.ITaskQueue
	cfg       DispatcherConfig
}

func NewDispatcher(
	accounts repository.IAccount,
	social repository.ISocial,
	publisher *PostPublisher,
	taskQueue queue.ITaskQueue,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = 30 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	return &Dispatcher{
		accounts:  accounts,
		social:    social,
		publisher: publisher,
		taskQueue: taskQueue,
		cfg:       cfg,
	}
}

// ProcessBatch dispatches each message by kind, acknowledges terminal
// outcomes and schedules linear-backoff retries for transient ones. When
// backpressure is enabled, one coalesced blast marker is re-published per
// batch that scheduled at least one retry, so delayed retries stay visible.
func (d *Dispatcher) ProcessBatch(ctx context.Context, messages []*queue.TaskMessage) {
	agents := NewAgentMap(d.accounts, d.social, d.cfg.Agents)
	announce := false

	for _, msg := range messages {
		task := msg.Task
		switch task.Kind {
		case model.TaskBlast:
			// Backpressure marker: its only job was to trigger this delivery.
			logger.GetLogger().Debug("Blast marker consumed")
			msg.Ack()

		case model.TaskPost:
			if task.Post == nil {
				logger.GetLogger().Error("Post task without payload, dropping")
				msg.Ack()
				continue
			}
			if err := d.RunPost(ctx, agents, task.Post); err != nil {
				announce = d.retry(ctx, msg, err) || announce
			} else {
				msg.Ack()
			}

		case model.TaskRepost:
			if task.Repost == nil {
				logger.GetLogger().Error("Repost task without payload, dropping")
				msg.Ack()
				continue
			}
			if err := d.RunRepost(ctx, agents, task.Repost); err != nil {
				announce = d.retry(ctx, msg, err) || announce
			} else {
				msg.Ack()
			}

		default:
			// Unknown kinds are acknowledged immediately to avoid poison
			// loops.
			logger.GetLogger().WithField("kind", task.Kind).Error("Unrecognized task kind, dropping")
			msg.Ack()
		}
	}

	if announce && d.cfg.Backpressure {
		marker := &model.Task{Kind: model.TaskBlast}
		if err := d.taskQueue.Publish(ctx, marker, 0); err != nil {
			logger.GetLogger().WithField("error", err).Error("Failed to publish blast marker")
		}
	}
}

// RunPost publishes one scheduled post (or thread) using a session from the
// batch cache. Partial thread success clears the post-now flag instead of
// failing the task.
func (d *Dispatcher) RunPost(ctx context.Context, agents *AgentMap, post *model.Post) error {
	session, err := agents.GetOrCreate(ctx, post.AccountID, model.TaskPost)
	if err != nil {
		// Transient login failure: the task must come back.
		return err
	}
	if session == nil {
		// Terminal: violation already recorded or credentials do not exist.
		return nil
	}

	report, err := d.publisher.Publish(ctx, post, session)
	if err != nil {
		return err
	}
	if !report.FullSuccess() {
		logger.GetLogger().
			WithField("postID", post.ID).
			WithField("expected", report.Expected).
			WithField("got", report.Got).
			Warn("Thread published partially")
		if err := d.publisher.posts.ClearPostNow(ctx, post.ID); err != nil {
			logger.GetLogger().WithField("error", err).Error("Failed to clear post-now flag")
		}
	}
	return nil
}

// RunRepost executes one repost using a session from the batch cache.
func (d *Dispatcher) RunRepost(ctx context.Context, agents *AgentMap, repost *model.Repost) error {
	session, err := agents.GetOrCreate(ctx, repost.AccountID, model.TaskRepost)
	if err != nil {
		// The queue message is the only copy of a repost once its row is
		// pruned, so a transient login failure must not settle the task.
		return err
	}
	if session == nil {
		return nil
	}
	ref, err := d.social.Repost(ctx, session, model.RecordRef{URI: repost.URI, CID: repost.CID})
	if err != nil {
		return err
	}
	logger.GetLogger().
		WithField("repostID", repost.ID).
		WithField("uri", ref.URI).
		Info("Repost submitted")
	return nil
}

// retry classifies the failure and either drops the message (account-level
// and invariant failures, exhausted attempts) or re-publishes it with
// attempt+1 and a linear backoff delay. Returns whether a blast marker is
// warranted.
func (d *Dispatcher) retry(ctx context.Context, msg *queue.TaskMessage, cause error) bool {
	task := msg.Task
	lg := logger.GetLogger().
		WithField("kind", task.Kind).
		WithField("attempt", task.Attempt).
		WithField("error", cause)

	var violation *model.RecordViolationError
	if errors.As(cause, &violation) {
		// Malformed post content: retrying cannot fix it.
		lg.Error("Record violation, dropping task")
		msg.Ack()
		return false
	}
	var remote *model.RemoteError
	if errors.As(cause, &remote) {
		if remote.Status.AccountLevel() {
			lg.Warn("Account-level failure, recording violation and dropping task")
			if accountID := task.AccountID(); accountID != "" {
				if err := d.accounts.RecordViolation(ctx, accountID, remote.Status, remote.Msg); err != nil {
					logger.GetLogger().WithField("error", err).Error("Failed to record violation")
				}
			}
			msg.Ack()
			return false
		}
		if remote.Status == model.StatusMediaTooLarge {
			// Already recorded as a violation by the resolver.
			lg.Warn("Media too large, dropping task")
			msg.Ack()
			return false
		}
	}

	attempt := task.Attempt + 1
	if attempt >= d.cfg.MaxAttempts {
		lg.Error(fmt.Sprintf("Dropping task after %d attempts", attempt))
		msg.Ack()
		return false
	}

	delay := d.cfg.BaseDelay * time.Duration(attempt)
	retried := *task
	retried.Attempt = attempt
	if err := d.taskQueue.Publish(ctx, &retried, delay); err != nil {
		lg.WithField("publishError", err).Error("Failed to schedule retry, returning message to queue")
		msg.Nack()
		return false
	}
	lg.WithField("delay", delay).Info("Retry scheduled")
	msg.Ack()
	return true
}
