package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/Chedidayeh/meeting-bot/cmd/api"
	calendarUsecase "github.com/Chedidayeh/meeting-bot/internal/calendar/usecase"
	dispatchUsecase "github.com/Chedidayeh/meeting-bot/internal/dispatch/usecase"
	meetingDelivery "github.com/Chedidayeh/meeting-bot/internal/meeting/delivery"
	meetingdomain "github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
	meetingRepo "github.com/Chedidayeh/meeting-bot/internal/meeting/repository"
	"github.com/Chedidayeh/meeting-bot/internal/notification"
	ragDelivery "github.com/Chedidayeh/meeting-bot/internal/rag/delivery"
	ragUsecase "github.com/Chedidayeh/meeting-bot/internal/rag/usecase"
	"github.com/Chedidayeh/meeting-bot/internal/scheduler"
	userDelivery "github.com/Chedidayeh/meeting-bot/internal/user/delivery"
	userdomain "github.com/Chedidayeh/meeting-bot/internal/user/domain"
	userRepo "github.com/Chedidayeh/meeting-bot/internal/user/repository"
	userScheduler "github.com/Chedidayeh/meeting-bot/internal/user/scheduler"
	userUsecase "github.com/Chedidayeh/meeting-bot/internal/user/usecase"
	webhookDelivery "github.com/Chedidayeh/meeting-bot/internal/webhook/delivery"
	webhookUsecase "github.com/Chedidayeh/meeting-bot/internal/webhook/usecase"
	"github.com/Chedidayeh/meeting-bot/pkg/ai"
	aiFactory "github.com/Chedidayeh/meeting-bot/pkg/ai/factory"
	"github.com/Chedidayeh/meeting-bot/pkg/chroma"
	"github.com/Chedidayeh/meeting-bot/pkg/config"
	"github.com/Chedidayeh/meeting-bot/pkg/database"
	"github.com/Chedidayeh/meeting-bot/pkg/events"
	"github.com/Chedidayeh/meeting-bot/pkg/fcm"
	"github.com/Chedidayeh/meeting-bot/pkg/gcal"
	"github.com/Chedidayeh/meeting-bot/pkg/gmail"
	"github.com/Chedidayeh/meeting-bot/pkg/lock"
	"github.com/Chedidayeh/meeting-bot/pkg/logger"
	"github.com/Chedidayeh/meeting-bot/pkg/meetingbaas"
	"github.com/Chedidayeh/meeting-bot/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log := logger.New(logger.Options{
		Level:       cfg.LogLevel,
		JSON:        cfg.LogJSON,
		Service:     "meeting-bot",
		Environment: cfg.Environment,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&userdomain.User{},
		&userdomain.FCMToken{},
		&meetingdomain.Meeting{},
		&meetingdomain.TranscriptChunk{},
		&meetingdomain.ChatMessage{},
	); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	m := metrics.Default()

	// Initialize repositories (dependency injection)
	users := userRepo.NewUserRepository(db)
	fcmTokens := userRepo.NewFCMTokenRepository(db)
	meetings := meetingRepo.NewGormMeetingRepository(db)
	chunks := meetingRepo.NewGormChunkRepository(db)
	chats := meetingRepo.NewGormChatRepository(db)

	// Per-meeting locks are shared through Redis when several instances run
	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.RedisURL != "" {
		redisLocker, err := lock.NewRedisLocker(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisLocker.Close()
		locker = redisLocker
	} else {
		log.Warn().Msg("REDIS_URL not set, using in-process locks (single instance only)")
	}

	// AI provider for summaries, answers and embeddings
	aiProvider, err := aiFactory.NewProvider(aiFactory.Config{
		Provider:             ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:         cfg.GeminiApiKey,
		GeminiChatModel:      cfg.GeminiChatModel,
		GeminiEmbeddingModel: cfg.GeminiEmbeddingModel,
		OllamaBaseURL:        cfg.OllamaBaseURL,
		OllamaModel:          cfg.OllamaModel,
		OllamaEmbeddingModel: cfg.OllamaEmbeddingModel,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize AI provider")
	}

	vectorIndex, err := chroma.NewChromaClient(ctx, cfg, aiProvider, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Chroma client")
	}

	// Meeting lifecycle events (optional)
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.GoogleProjectID != "" {
		pubsubPublisher, err := events.NewPubSubPublisher(ctx, cfg.GoogleProjectID, cfg.PubSubTopic, cfg.GoogleCredentialsFile, log)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Pub/Sub publisher, events disabled")
		} else {
			publisher = pubsubPublisher
		}
	}
	defer publisher.Close()

	// Push notifications (optional)
	var push notification.PushSender
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials, log)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize FCM client, push notifications disabled")
		} else {
			push = fcmClient
		}
	}

	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)
	calendarClient := gcal.NewClient(cfg.GoogleClientID, cfg.GoogleClientSecret)
	botClient := meetingbaas.NewClient(cfg.MeetingBaasBaseURL, cfg.MeetingBaasAPIKey, cfg.ExternalCallTimeout)

	if cfg.WebhookPublicURL == "" {
		log.Warn().Msg("WEBHOOK_PUBLIC_URL not set, bots will not report completion")
	}
	if cfg.MeetingBaasWebhookSecret == "" {
		log.Warn().Msg("MEETINGBAAS_WEBHOOK_SECRET not set, webhook signatures are not verified")
	}

	// Use cases
	userUc := userUsecase.NewUserUsecase(users, fcmTokens)
	notifier := notification.NewService(gmailService, push, users, fcmTokens, publisher, cfg.AppBaseURL, log)

	syncEngine := calendarUsecase.NewSyncEngine(calendarClient, users, meetings, m, cfg.ExternalCallTimeout, log)
	dispatcher := dispatchUsecase.NewDispatcher(meetings, users, botClient, locker, publisher, m, cfg.WebhookPublicURL, log)

	indexer := ragUsecase.NewIndexer(aiProvider, vectorIndex, chunks, meetings, m, log)
	queryEngine := ragUsecase.NewQueryEngine(aiProvider, aiProvider, vectorIndex, meetings, m, log)
	chatService := ragUsecase.NewChatService(queryEngine, userUc, chats, meetings, indexer, log)

	summarizer := webhookUsecase.NewSummarizer(aiProvider)
	pipeline := webhookUsecase.NewPipeline(meetings, users, botClient, summarizer, indexer, notifier, locker, m, log)

	// Background schedulers
	meetingScheduler := scheduler.NewMeetingScheduler(syncEngine, dispatcher, locker, m, cfg.SyncInterval, log)
	meetingScheduler.Start()

	resetScheduler, err := userScheduler.NewUsageResetScheduler(users, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize usage reset scheduler")
	}
	resetScheduler.Start()

	// HTTP
	handler := api.NewHandler(
		meetingDelivery.NewMeetingHandler(meetings, dispatcher),
		ragDelivery.NewRAGHandler(chatService),
		userDelivery.NewUserHandler(userUc),
		webhookDelivery.NewWebhookHandler(pipeline, cfg.MeetingBaasWebhookSecret, log),
		promhttp.Handler(),
		cfg,
		log,
	)
	server := handler.Server(":" + cfg.Port)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	meetingScheduler.Stop()
	resetScheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
