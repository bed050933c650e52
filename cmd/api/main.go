package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"recently-viewed-backend/internal/application"
	"recently-viewed-backend/internal/application/webhook_handlers"
	"recently-viewed-backend/internal/config"
	"recently-viewed-backend/internal/domain"
	apiinfra "recently-viewed-backend/internal/infrastructure/api"
	"recently-viewed-backend/internal/infrastructure/encryption"
	"recently-viewed-backend/internal/infrastructure/metrics"
	"recently-viewed-backend/internal/infrastructure/pubsub"
	"recently-viewed-backend/internal/infrastructure/ratelimit"
	"recently-viewed-backend/internal/infrastructure/repository"
	shopifyinfra "recently-viewed-backend/internal/infrastructure/shopify"
	"recently-viewed-backend/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const shutdownTimeout = 15 * time.Second

// stores groups the persistence backends selected by configuration
type stores struct {
	sessions ports.SessionStore
	states   ports.OAuthStateStore
	eventLog ports.WebhookEventLog
	limiter  ports.WebhookRateLimiter
	closers  []func(context.Context) error
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	s := &stores{eventLog: repository.NopWebhookEventLog{}}

	var redisClient *redis.Client
	if cfg.UsesRedis() {
		client, err := repository.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		redisClient = client
		s.closers = append(s.closers, func(context.Context) error { return client.Close() })
		logger.Info().Msg("Connected to Redis")
	}

	switch cfg.SessionStore {
	case config.StoreRedis:
		s.sessions = repository.NewRedisSessionStore(redisClient)
		s.states = repository.NewRedisOAuthStateStore(redisClient)
	case config.StoreMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client.Disconnect)
		if err := client.Ping(ctx, nil); err != nil {
			return nil, err
		}
		repo := repository.NewMongoRepository(client.Database(cfg.MongoDatabase))
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		s.sessions = repo
		s.states = repo.OAuthStates()
		s.eventLog = repo
		logger.Info().Str("database", cfg.MongoDatabase).Msg("Connected to MongoDB")
	default:
		s.sessions = repository.NewMemorySessionStore()
		s.states = repository.NewMemoryOAuthStateStore()
		logger.Warn().Msg("Using in-memory session store, sessions are lost on restart")
	}

	if cfg.EncryptionKey != "" {
		encryptionSvc, err := encryption.NewService(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		s.sessions = shopifyinfra.NewTokenManager(s.sessions, encryptionSvc, logger)
	}

	if cfg.RateLimitStore == config.StoreRedis {
		s.limiter = ratelimit.NewRedisFixedWindow(redisClient, cfg.WebhookRateLimit, cfg.WebhookRateWindow, logger)
	} else {
		limiter := ratelimit.NewFixedWindow(cfg.WebhookRateLimit, cfg.WebhookRateWindow)
		go limiter.RunPruner(ctx, cfg.WebhookRateWindow)
		s.limiter = limiter
	}
	return s, nil
}

func (s *stores) close(ctx context.Context, logger zerolog.Logger) {
	for _, closeFn := range s.closers {
		if err := closeFn(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to close store")
		}
	}
}

func main() {
	cfg, envLoaded, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger := newLogger(cfg)
	if !envLoaded {
		logger.Warn().Msg(".env file not found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.SessionStore).Msg("Failed to open stores")
	}

	m := metrics.New()
	client := shopifyinfra.NewClient(cfg.APIKey, cfg.APISecret, cfg.HTTPTimeout, logger,
		shopifyinfra.WithAPIVersion(cfg.APIVersion),
		shopifyinfra.WithRateLimiter(shopifyinfra.NewRateLimiter(logger)),
		shopifyinfra.WithCallObserver(m.ObserveShopifyCall),
	)

	webhookManager := application.NewWebhookManager(
		shopifyinfra.NewWebhookRegistry(cfg.APIKey, cfg.APISecret, cfg.APIVersion, cfg.HTTPTimeout, logger),
		logger,
	)
	oauthService := application.NewOAuthService(
		cfg.APIKey,
		cfg.ScopeList(),
		client,
		st.sessions,
		st.states,
		shopifyinfra.NewCallbackVerifier(cfg.APIKey, cfg.APISecret),
		logger,
		application.WithStrictCallback(cfg.OAuthStrict),
		application.WithWebhookManager(webhookManager),
	)
	billingService := application.NewBillingService(client, st.sessions, domain.DefaultPlan, cfg.BillingTest, logger)

	dispatcher := application.NewWebhookDispatcher(logger)
	dispatcher.RegisterHandler(webhook_handlers.NewAppUninstalledHandler(logger, st.sessions))
	dispatcher.RegisterHandler(webhook_handlers.NewShopUpdateHandler(logger))
	dispatcher.RegisterHandler(webhook_handlers.NewCustomerPrivacyHandler(logger))
	dispatcher.RegisterHandler(webhook_handlers.NewShopRedactHandler(logger))

	events := pubsub.NewWebhookPubSub(logger)
	events.OnDrop(m.ObserveWebhookDropped)
	compliance := events.Subscribe(ctx, pubsub.Filter{Topics: domain.ComplianceTopics})
	worker := application.NewComplianceWorker(st.sessions, logger)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx, compliance.Events)
	}()

	gateway := apiinfra.NewWebhookGateway(
		shopifyinfra.NewWebhookVerifier(cfg.APISecret),
		st.limiter,
		dispatcher,
		st.eventLog,
		events,
		m,
		logger,
	)

	router := apiinfra.NewRouter(apiinfra.Dependencies{
		OAuth:          oauthService,
		Billing:        billingService,
		Gateway:        gateway,
		Sessions:       st.sessions,
		SessionTokens:  shopifyinfra.NewSessionTokenVerifier(cfg.APIKey, cfg.APISecret),
		Metrics:        m,
		AppURL:         cfg.AppURL,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("store", cfg.SessionStore).
			Bool("oauthStrict", cfg.OAuthStrict).
			Bool("billingTest", cfg.BillingTest).
			Msg("Starting API server")
		logger.Info().Msg("Swagger documentation available at http://localhost:" + cfg.Port + "/swagger/index.html")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to shut down server gracefully")
	}
	webhookManager.Wait()
	<-workerDone
	st.close(shutdownCtx, logger)
	logger.Info().Msg("Server stopped")
}
