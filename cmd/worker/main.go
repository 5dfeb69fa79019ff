package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/prism-platform/notification-service/internal/channels"
	"github.com/prism-platform/notification-service/internal/config"
	"github.com/prism-platform/notification-service/internal/database"
	"github.com/prism-platform/notification-service/internal/jobs"
	"github.com/prism-platform/notification-service/internal/monitoring"
	"github.com/prism-platform/notification-service/internal/notification"
	"github.com/prism-platform/notification-service/internal/queue"
	"github.com/prism-platform/notification-service/internal/users"
)

const deliveryTimeout = 30 * time.Second

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Notification Worker")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Initialize metrics
	metrics := monitoring.NewMetrics()

	// Connect to PostgreSQL
	postgres, err := database.NewPostgresDB(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer postgres.Close()

	if err := postgres.InitSchema(); err != nil {
		logger.Fatal("Failed to initialize database schema", zap.Error(err))
	}
	logger.Info("Database connected and schema initialized")

	// Connect to Redis
	redis, err := database.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Redis connected")

	// Kafka producer feeds the dispatcher for scheduled sends
	producer := queue.NewProducer(cfg.Kafka)
	defer producer.Close()

	// Wire up stores and the notification service
	store := notification.NewStore(postgres, redis, logger)
	templates := notification.NewTemplateStore(postgres)
	prefs := notification.NewPreferenceStore(postgres, redis, logger)
	history := notification.NewHistoryStore(postgres)
	batches := notification.NewBatchStore(postgres)
	userStore := users.NewStore(postgres)
	analyzer := notification.NewAnalyzer(postgres)

	dispatcher := notification.NewDispatcher(prefs, producer, history, logger)
	service := notification.NewService(store, templates, prefs, history, dispatcher, redis, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Register channel senders. In-app is always available; email and push
	// join only when their provider is configured.
	manager := channels.NewManager()
	manager.Register(channels.NewInAppSender(redis))
	if cfg.Channels.SendGrid.APIKey != "" {
		manager.Register(channels.NewEmailSender(cfg.Channels.SendGrid))
		logger.Info("Email sender registered")
	} else {
		logger.Warn("SendGrid API key not set, email deliveries will be dropped")
	}
	if cfg.Channels.Firebase.CredentialsPath != "" {
		pushSender, err := channels.NewPushSender(ctx, cfg.Channels.Firebase)
		if err != nil {
			logger.Error("Failed to initialize push sender", zap.Error(err))
		} else {
			manager.Register(pushSender)
			logger.Info("Push sender registered")
		}
	} else {
		logger.Warn("Firebase credentials not set, push deliveries will be dropped")
	}

	worker := &deliveryWorker{
		store:   store,
		history: history,
		users:   userStore,
		manager: manager,
		metrics: metrics,
		logger:  logger,
	}
	coordinator := notification.NewCoordinator(batches, templates, userStore, service, logger)

	// Consume delivery jobs
	deliveryConsumer := queue.NewDeliveryConsumer(cfg.Kafka, "notification-worker")
	defer deliveryConsumer.Close()
	go func() {
		if err := deliveryConsumer.ConsumeDeliveries(ctx, worker.handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Delivery consumer stopped", zap.Error(err))
		}
	}()
	logger.Info("Delivery consumer started")

	// Consume batch jobs
	batchConsumer := queue.NewBatchConsumer(cfg.Kafka, "notification-worker-batches")
	defer batchConsumer.Close()
	go func() {
		err := batchConsumer.ConsumeBatches(ctx, func(job queue.BatchJob) error {
			jobCtx, jobCancel := context.WithTimeout(ctx, 5*time.Minute)
			defer jobCancel()
			_, err := coordinator.ProcessBatch(jobCtx, job.BatchID)
			return err
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Batch consumer stopped", zap.Error(err))
		}
	}()
	logger.Info("Batch consumer started")

	// Periodic jobs: scheduled dispatch, cleanup and analytics
	runner := jobs.NewRunner(logger)
	runner.Add(jobs.NewScheduledJob(service, logger), cfg.Jobs.ScheduledInterval)
	runner.Add(jobs.NewCleanupJob(store, history, cfg.Retention, metrics, logger), cfg.Jobs.CleanupInterval)
	runner.Add(jobs.NewAnalyticsJob(analyzer, cfg.Jobs.AnalyticsWindow, metrics, logger), cfg.Jobs.AnalyticsInterval)
	runner.Start(ctx)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	runner.Wait()
	logger.Info("Worker exited")
}

// deliveryWorker executes one delivery job: resolve the notification and
// user, run the channel sender and append the history row
type deliveryWorker struct {
	store   *notification.Store
	history *notification.HistoryStore
	users   *users.Store
	manager *channels.Manager
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

func (w *deliveryWorker) handle(job queue.DeliveryJob) error {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	notif, err := w.store.GetByID(ctx, job.NotificationID)
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			// Deleted between dispatch and delivery; nothing to do
			return nil
		}
		return err
	}
	if notif.IsExpired(time.Now()) {
		w.logger.Info("Skipping expired notification",
			zap.String("id", notif.ID), zap.String("channel", job.Channel))
		return nil
	}

	user, err := w.users.GetByID(ctx, job.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			w.logger.Warn("Delivery job for unknown user",
				zap.String("id", notif.ID), zap.String("user_id", job.UserID))
			return nil
		}
		return err
	}

	channel := notification.Channel(job.Channel)
	sender, ok := w.manager.Get(channel)
	if !ok {
		w.logger.Warn("No sender registered for channel",
			zap.String("id", notif.ID), zap.String("channel", job.Channel))
		return nil
	}

	start := time.Now()
	result, sendErr := sender.Send(ctx, notif, user)
	w.metrics.RecordChannelDuration(job.Channel, time.Since(start).Seconds())

	if result == nil || result.Skipped {
		return nil
	}

	now := time.Now()
	entry := &notification.History{
		NotificationID: notif.ID,
		UserID:         notif.UserID,
		Channel:        channel,
		Status:         result.Status,
	}
	switch result.Status {
	case notification.HistorySent:
		entry.SentAt = &now
		if result.Detail != "" {
			entry.Metadata = map[string]any{"external_id": result.Detail}
		}
		w.metrics.RecordNotificationSent(job.Channel)
	case notification.HistoryDelivered:
		entry.DeliveredAt = &now
		w.metrics.RecordNotificationDelivered(job.Channel)
	case notification.HistoryFailed:
		entry.Metadata = map[string]any{"error": result.Detail}
		w.metrics.RecordNotificationFailed(job.Channel)
	}

	if err := w.history.Record(ctx, entry); err != nil {
		w.logger.Error("Failed to record delivery history",
			zap.String("id", notif.ID), zap.String("channel", job.Channel), zap.Error(err))
	}
	return sendErr
}
