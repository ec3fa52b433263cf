package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skypress/domain/repository"
	"skypress/infrastructure/cache"
	"skypress/infrastructure/clients/skyapi"
	"skypress/infrastructure/configuration"
	"skypress/infrastructure/logger"
	"skypress/infrastructure/mediastore"
	"skypress/infrastructure/persistence"
	"skypress/infrastructure/queue"
	httpHandler "skypress/interfaces/http"
	"skypress/server"
	"skypress/usecase"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence).
	configuration.LoadEnvFromFile("config.env", ".env")

	db, err := InitiateDatabase()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Database initialization failed")
		os.Exit(1)
	}
	ensure := persistence.EnsureSchema
	if useMSSQL() {
		ensure = persistence.EnsureSchemaMSSQL
	}
	if err := ensure(db); err != nil {
		logger.GetLogger().WithField("error", err).Error("Failed ensuring schema")
		os.Exit(1)
	}

	mongoClient, err := mediastore.NewMongoDb(
		configuration.C.Media.Mongo.Host,
		configuration.C.Media.Mongo.Port,
		configuration.C.Media.Mongo.User,
		configuration.C.Media.Mongo.Password,
		configuration.C.Media.Mongo.Name,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("MongoDB connection failed")
		os.Exit(1)
	}
	media := mediastore.NewMongoStore(mongoClient, configuration.C.Media.Mongo.Name, configuration.C.Media.Collection)

	redisClient, err := cache.NewCache(
		ctx,
		fmt.Sprintf("%s:%s", configuration.C.RedisClient.Host, configuration.C.RedisClient.Port),
		configuration.C.RedisClient.Username,
		configuration.C.RedisClient.Password,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - handle resolutions will not be cached")
		redisClient = nil
	}
	handleCache := cache.NewHandleCache(redisClient,
		time.Duration(configuration.C.Scheduler.HandleCacheTTLMins)*time.Minute)

	taskQueue, err := InitiateQueue(ctx)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Queue initialization failed")
		os.Exit(1)
	}

	social := skyapi.NewClient(&skyapi.Config{ServiceURL: configuration.C.Sky.ServiceURL})

	var (
		postRepo    repository.IPost    = persistence.NewPostRepository(db)
		repostRepo  repository.IRepost  = persistence.NewRepostRepository(db)
		accountRepo repository.IAccount = persistence.NewAccountRepository(db)
	)
	if useMSSQL() {
		postRepo = persistence.NewPostRepositoryMSSQL(db)
		repostRepo = persistence.NewRepostRepositoryMSSQL(db)
		accountRepo = persistence.NewAccountRepositoryMSSQL(db)
	}

	agentCfg := usecase.AgentConfig{
		CachePostAgents:   configuration.C.Scheduler.CachePostAgents,
		CacheRepostAgents: configuration.C.Scheduler.CacheRepostAgents,
	}
	resolver := usecase.NewEmbedResolver(social, media, accountRepo, handleCache, usecase.ResolverConfig{
		MaxImages:    configuration.C.Sky.MaxImages,
		MaxBlobBytes: configuration.C.Sky.MaxBlobBytes,
	})
	publisher := usecase.NewPostPublisher(postRepo, social, media, resolver,
		configuration.C.Scheduler.RetainedTextRunes)
	dispatcher := usecase.NewDispatcher(accountRepo, social, publisher, taskQueue, usecase.DispatcherConfig{
		BaseDelay:    time.Duration(configuration.C.Scheduler.BaseDelaySeconds) * time.Second,
		MaxAttempts:  configuration.C.Scheduler.MaxAttempts,
		Backpressure: configuration.C.Scheduler.Backpressure,
		Agents:       agentCfg,
	})
	scheduler := usecase.NewScheduler(postRepo, repostRepo, accountRepo, social, dispatcher, taskQueue, usecase.SchedulerConfig{
		QueueEnabled: configuration.C.Scheduler.QueueEnabled,
		Agents:       agentCfg,
	})

	// Hourly publish tick, weekly repost cleanup.
	c := cron.New()
	if _, err := c.AddFunc("@hourly", func() { scheduler.RunTick(ctx) }); err != nil {
		logger.GetLogger().WithField("error", err).Error("Failed to register hourly tick")
		os.Exit(1)
	}
	if _, err := c.AddFunc("@weekly", func() { scheduler.RunCleanup(ctx) }); err != nil {
		logger.GetLogger().WithField("error", err).Error("Failed to register weekly cleanup")
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	if configuration.C.Scheduler.QueueEnabled {
		g.Go(func() error {
			return taskQueue.Subscribe(ctx, configuration.C.Scheduler.BatchSize, dispatcher.ProcessBatch)
		})
	}

	adminHandler := httpHandler.NewAdminHandler(db, scheduler)
	router := server.InitiateRouter(adminHandler)

	app := configuration.C.App
	logger.GetLogger().
		WithField("port", app.Port).
		WithField("queueEnabled", configuration.C.Scheduler.QueueEnabled).
		WithField("queueBackend", configuration.C.Scheduler.QueueBackend).
		Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", app.Port),
			Handler: router,
		}
		var err error
		if app.TLSEnabled && app.TLSCertFile != "" && app.TLSKeyFile != "" {
			err = httpServer.ListenAndServeTLS(app.TLSCertFile, app.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// InitiateDatabase opens the relational store. DB_VENDOR=mssql selects Azure
// SQL; the default is PostgreSQL.
func InitiateDatabase() (*sql.DB, error) {
	if useMSSQL() {
		return persistence.NewMSSQLDB()
	}
	return persistence.NewPostgreSQLDB()
}

func useMSSQL() bool { return os.Getenv("DB_VENDOR") == "mssql" }

// InitiateQueue builds the task transport selected by config.
func InitiateQueue(ctx context.Context) (queue.ITaskQueue, error) {
	switch configuration.C.Scheduler.QueueBackend {
	case "servicebus":
		client, err := queue.NewServiceBus(configuration.C.ServiceBus.Namespace)
		if err != nil {
			return nil, err
		}
		return queue.NewServiceBusQueue(client, configuration.C.ServiceBus.Queue), nil
	default:
		client, err := queue.NewPubSub(ctx, configuration.C.Pubsub.ProjectID)
		if err != nil {
			return nil, err
		}
		return queue.NewPubSubQueue(client,
			configuration.C.Pubsub.Topic,
			configuration.C.Pubsub.Subscription,
		), nil
	}
}
