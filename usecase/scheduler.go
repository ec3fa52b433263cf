package usecase

import (
	"context"
	"sync"
	"time"

	"skypress/domain/model"
	"skypress/domain/repository"
	"skypress/infrastructure/logger"
	"skypress/infrastructure/queue"
)

// SchedulerConfig controls task routing.
type SchedulerConfig struct {
	QueueEnabled bool
	Agents       AgentConfig
}

// Scheduler selects due work on a fixed cadence and routes each unit either
// onto the task queue or to direct execution.
type Scheduler struct {
	posts      repository.IPost
	reposts    repository.IRepost
	accounts   repository.IAccount
	social     repository.ISocial
	dispatcher *Dispatcher
	taskQueue  queue.ITaskQueue
	cfg        SchedulerConfig
}

func NewScheduler(
	posts repository.IPost,
	reposts repository.IRepost,
	accounts repository.IAccount,
	social repository.ISocial,
	dispatcher *Dispatcher,
	taskQueue queue.ITaskQueue,
	cfg SchedulerConfig,
) *Scheduler {
	return &Scheduler{
		posts:      posts,
		reposts:    reposts,
		accounts:   accounts,
		social:     social,
		dispatcher: dispatcher,
		taskQueue:  taskQueue,
		cfg:        cfg,
	}
}

// RunTick collects due posts and reposts, routes them, and prunes past-due
// repost rows. Accounts with an active violation never show up in the due
// queries.
func (s *Scheduler) RunTick(ctx context.Context) {
	now := time.Now().UTC()

	duePosts, err := s.posts.GetDuePosts(ctx, now)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Collecting due posts failed")
	}
	dueReposts, err := s.reposts.GetDueReposts(ctx, now)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Collecting due reposts failed")
	}
	if len(duePosts) > 0 || len(dueReposts) > 0 {
		logger.GetLogger().
			WithField("posts", len(duePosts)).
			WithField("reposts", len(dueReposts)).
			Info("Scheduling due work")
	}

	// The session cache below only serves the direct path; queued tasks get
	// their own per-batch cache in the dispatcher.
	agents := NewAgentMap(s.accounts, s.social, s.cfg.Agents)
	var wg sync.WaitGroup

	for _, post := range duePosts {
		post := post
		if s.cfg.QueueEnabled {
			task := &model.Task{Kind: model.TaskPost, Post: post}
			if err := s.taskQueue.Publish(ctx, task, 0); err != nil {
				logger.GetLogger().WithField("postID", post.ID).WithField("error", err).
					Error("Failed to enqueue post task")
			}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.dispatcher.RunPost(ctx, agents, post); err != nil {
				logger.GetLogger().WithField("postID", post.ID).WithField("error", err).
					Error("Direct post execution failed")
			}
		}()
	}

	for _, repost := range dueReposts {
		repost := repost
		if s.cfg.QueueEnabled {
			task := &model.Task{Kind: model.TaskRepost, Repost: repost}
			if err := s.taskQueue.Publish(ctx, task, 0); err != nil {
				logger.GetLogger().WithField("repostID", repost.ID).WithField("error", err).
					Error("Failed to enqueue repost task")
			}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.dispatcher.RunRepost(ctx, agents, repost); err != nil {
				logger.GetLogger().WithField("repostID", repost.ID).WithField("error", err).
					Error("Direct repost execution failed")
			}
		}()
	}

	wg.Wait()
	s.pruneReposts(ctx, now)
}

// RunCleanup is the weekly pass: it prunes anything the hourly ticks missed.
func (s *Scheduler) RunCleanup(ctx context.Context) {
	s.pruneReposts(ctx, time.Now().UTC())
}

// pruneReposts deletes past-due repost rows and recomputes the remaining
// counters (and cadence lists) of the affected parent posts.
func (s *Scheduler) pruneReposts(ctx context.Context, now time.Time) {
	postIDs, err := s.reposts.DeleteExpiredReposts(ctx, now)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Deleting expired reposts failed")
		return
	}
	for _, id := range postIDs {
		if err := s.posts.RecomputeRepostCount(ctx, id); err != nil {
			logger.GetLogger().WithField("postID", id).WithField("error", err).
				Error("Recomputing repost count failed")
		}
	}
}
