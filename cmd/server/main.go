package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/supportdesk/support-server-go/internal/agent"
	"github.com/supportdesk/support-server-go/internal/auth"
	"github.com/supportdesk/support-server-go/internal/clerk"
	"github.com/supportdesk/support-server-go/internal/config"
	"github.com/supportdesk/support-server-go/internal/database"
	"github.com/supportdesk/support-server-go/internal/handler"
	"github.com/supportdesk/support-server-go/internal/jobs"
	"github.com/supportdesk/support-server-go/internal/knowledge"
	"github.com/supportdesk/support-server-go/internal/middleware"
	"github.com/supportdesk/support-server-go/internal/redis"
	"github.com/supportdesk/support-server-go/internal/repository"
	"github.com/supportdesk/support-server-go/internal/scheduler"
	"github.com/supportdesk/support-server-go/internal/secrets"
	"github.com/supportdesk/support-server-go/internal/service"
	"github.com/supportdesk/support-server-go/internal/sse"
	"github.com/supportdesk/support-server-go/internal/vapi"
	"github.com/supportdesk/support-server-go/migrations"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	contactSessionRepo := repository.NewContactSessionRepository(db.DB)
	convRepo := repository.NewConversationRepository(db.DB)
	msgRepo := repository.NewMessageRepository(db.DB)
	pluginRepo := repository.NewPluginRepository(db.DB)
	subscriptionRepo := repository.NewSubscriptionRepository(db.DB)
	widgetRepo := repository.NewWidgetSettingsRepository(db.DB)
	secretRepo := repository.NewSecretRepository(db.DB)

	var limiter service.RateLimiter
	switch cfg.RateLimitBackend {
	case config.RateLimitRedis:
		limiter = service.NewRedisRateLimiter(redisClient.Client)
	default:
		memoryLimiter := service.NewMemoryRateLimiter()
		memoryLimiter.Start()
		defer memoryLimiter.Stop()
		limiter = memoryLimiter
	}

	var secretBackend secrets.Backend
	switch cfg.SecretStore {
	case config.SecretStoreAWS:
		awsStore, err := secrets.NewAWSStore(context.Background(), cfg.AWSRegion)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create aws secret store")
		}
		secretBackend = awsStore
	case config.SecretStoreMemory:
		log.Warn().Msg("SECRET_STORE=memory: plugin credentials are lost on restart")
		secretBackend = secrets.NewMemoryStore()
	default:
		secretBackend = secrets.NewDatabaseStore(secretRepo, cfg.EncryptionKey)
	}
	secretStore := secrets.NewStore(secretBackend, cfg.ExternalCallTimeout())

	tasks := scheduler.New(cfg.SchedulerWorkers, config.AgentReplyTimeout)
	tasks.Start()
	defer tasks.Stop()

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	clerkClient := clerk.NewClient(cfg.ClerkAPIURL, cfg.ClerkSecretKey, cfg.ExternalCallTimeout())
	vapiClient := vapi.NewClient(vapi.DefaultBaseURL, cfg.ExternalCallTimeout())

	subscriptionService := service.NewSubscriptionService(subscriptionRepo, clerkClient)
	organizationService := service.NewOrganizationService(clerkClient)
	widgetService := service.NewWidgetSettingsService(widgetRepo)
	pluginService := service.NewPluginService(pluginRepo, secretStore, tasks, vapiClient)
	contactSessionService := service.NewContactSessionService(contactSessionRepo, convRepo, limiter)
	convService := service.NewConversationService(
		db, convRepo, msgRepo, widgetRepo, contactSessionService,
		limiter, subscriptionService, broker, tasks,
	)

	if cfg.AIEnabled() {
		model, err := agent.NewAnthropicModel(cfg.AnthropicAPIKey, cfg.AIModel)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create language model")
		}

		tools := agent.NewRegistry(
			agent.NewEscalateTool(convService),
			agent.NewResolveTool(convService),
		)
		if cfg.KnowledgeEnabled() {
			index, err := knowledge.NewQdrantIndex(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.QdrantCollection)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to connect to qdrant")
			}
			defer index.Close()

			embedder, err := knowledge.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbedModel)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to create embedder")
			}
			searcher := knowledge.NewSearcher(index, embedder, cfg.ExternalCallTimeout())
			tools.Register(agent.NewSearchTool(convService, searcher, model))
		}

		convService.SetResponder(agent.NewSupportAgent(model, tools, convService))
		log.Info().Strs("tools", tools.Names()).Str("model", cfg.AIModel).Msg("support agent enabled")
	} else {
		log.Warn().Msg("ANTHROPIC_API_KEY is empty: customer messages get no AI reply")
	}

	verifier, err := auth.NewVerifier(cfg.ClerkJWTPublicKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load clerk jwt public key")
	}
	authMiddleware := middleware.NewAuthMiddleware(verifier)
	ipRateLimitMiddleware := middleware.NewIPRateLimitMiddleware(limiter, service.PublicIPPolicy)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	publicHandler := handler.NewPublicHandler(
		contactSessionService, convService, organizationService, widgetService, pluginService,
	)
	privateHandler := handler.NewPrivateHandler(contactSessionService, convService, widgetService, pluginService)
	webhookHandler := handler.NewWebhookHandler(subscriptionService)
	eventsHandler := handler.NewEventsHandler(broker)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	corsMiddleware := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	r.Route("/public", func(r chi.Router) {
		r.Use(corsMiddleware)
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(ipRateLimitMiddleware.Handler)
		r.Mount("/", publicHandler.Routes())
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(corsMiddleware)
		r.Use(authMiddleware.Handler)
		r.Use(middleware.NoStore)

		// The event stream outlives the request timeout.
		r.Get("/events", eventsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
			r.Mount("/", privateHandler.Routes())
		})
	})

	if cfg.ClerkWebhookSecret != "" {
		svixMiddleware, err := middleware.NewSvixSignatureMiddleware(cfg.ClerkWebhookSecret)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid clerk webhook secret")
		}
		r.Route("/webhooks", func(r chi.Router) {
			r.Use(svixMiddleware.Handler)
			r.Post("/clerk", webhookHandler.Clerk)
		})
	} else {
		log.Warn().Msg("CLERK_WEBHOOK_SECRET is empty: subscription webhooks are disabled")
	}

	cleanupJob := jobs.NewCleanupJob(contactSessionService, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
