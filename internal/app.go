package internal

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	logger_adapter "crm-sync-service/internal/adapters/logger"
	"crm-sync-service/internal/adapters/crmclient"
	postgres_adapter "crm-sync-service/internal/adapters/postgres"
	rabbitmq_adapter "crm-sync-service/internal/adapters/rabbitmq"
	"crm-sync-service/internal/adapters/rediscache"
	"crm-sync-service/internal/adapters/rest"
	"crm-sync-service/internal/configs"
	"crm-sync-service/internal/constants"
	"crm-sync-service/internal/core/port"
	"crm-sync-service/internal/core/usecase"
	fluentlogger "crm-sync-service/pkg/fluent_logger"
	"crm-sync-service/pkg/postgres"
	"crm-sync-service/pkg/rabbitmq/rabbitmq_common"
	"crm-sync-service/pkg/rabbitmq/rabbitmq_producer"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type App struct {
	config    *configs.AppConfig
	apiServer *rest.Server

	dbPool        *pgxpool.Pool
	redisClient   *redis.Client
	eventProducer *rabbitmq_producer.Publisher
	logger        port.LoggerPort
	fluentClient  *fluent.Fluent
}

func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	// --- 1. ИНИЦИАЛИЗАЦИЯ ЛОГГЕРОВ ---
	var activeLoggers []port.LoggerPort

	slogCfg := logger_adapter.SlogConfig{
		Level:    parseLogLevel(appConfig.StdoutLogger.Level),
		IsJSON:   false, // текстовый формат
		UseColor: true,
	}
	stdoutLogger := logger_adapter.NewSlogAdapter(slogCfg)
	activeLoggers = append(activeLoggers, stdoutLogger)

	// Добавляем Fluent Bit логгер, если он включен в конфигурации
	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{
		"service_name": appConfig.AppName,
	})

	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	// --- 2. ИНФРАСТРУКТУРА: POSTGRES, REDIS, RABBITMQ ---
	dbPool, err := postgres.NewClient(context.Background(), postgres.Config{DatabaseURL: appConfig.Database.URL})
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", err, nil)
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	appLogger.Info("PostgreSQL connection pool initialized.", nil)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     appConfig.Redis.Addr,
		Password: appConfig.Redis.Password,
		DB:       appConfig.Redis.DB,
	})

	producerLogger := baseLogger.WithFields(port.Fields{"component": "rabbitmq_producer"})
	pkgLoggerBridge := rabbitmq_adapter.NewPkgLoggerBridge(producerLogger)

	connManagerLogger := baseLogger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"})
	connManagerBridge := rabbitmq_adapter.NewPkgLoggerBridge(connManagerLogger)
	connManager, err := rabbitmq_common.GetManager(appConfig.RabbitMQ.URL, connManagerBridge)
	if err != nil {
		appLogger.Error("Failed to create connection manager", err, nil)
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}
	appLogger.Info("RabbitMQ Connection Manager initialized.", nil)

	producerCfg := rabbitmq_producer.PublisherConfig{
		Config:                   rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
		ExchangeName:             constants.SyncExchange,
		ExchangeType:             "direct",
		DurableExchange:          true,
		DeclareExchangeIfMissing: true,
		Logger:                   pkgLoggerBridge,
	}
	eventProducer, err := rabbitmq_producer.NewPublisher(producerCfg, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create event producer: %w", err)
	}
	appLogger.Info("RabbitMQ Event Producer initialized.", nil)

	// --- 3. АДАПТЕРЫ ---
	propertyStorage, err := postgres_adapter.NewPostgresPropertyAdapter(dbPool)
	if err != nil {
		return nil, fmt.Errorf("failed to create property storage adapter: %w", err)
	}
	sessionStorage, err := postgres_adapter.NewPostgresSyncSessionAdapter(dbPool)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync session adapter: %w", err)
	}
	settingsStorage, err := postgres_adapter.NewPostgresSyncSettingsAdapter(dbPool)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync settings adapter: %w", err)
	}

	lookupCache, err := rediscache.NewRedisLookupCacheAdapter(redisClient, appConfig.Redis.LookupTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup cache adapter: %w", err)
	}

	indexRefresher, err := rabbitmq_adapter.NewIndexRefreshAdapter(eventProducer, constants.RoutingKeyIndexRefresh)
	if err != nil {
		return nil, fmt.Errorf("failed to create index refresh adapter: %w", err)
	}

	limiter := crmclient.NewFixedWindowLimiter(constants.RateLimitRequests, constants.RateLimitWindow)
	crmClient, err := crmclient.NewClient(settingsStorage, limiter)
	if err != nil {
		return nil, fmt.Errorf("failed to create crm client: %w", err)
	}

	// --- 4. USE CASES ---
	runSyncUseCase, err := usecase.NewRunSyncUseCase(
		crmClient, propertyStorage, sessionStorage, settingsStorage,
		indexRefresher, lookupCache,
		appConfig.Sync.BatchSize, appConfig.Sync.BatchPause, appConfig.Sync.RunDeadline,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run sync use case: %w", err)
	}
	handleWebhookUseCase, err := usecase.NewHandleWebhookEventUseCase(crmClient, propertyStorage, sessionStorage)
	if err != nil {
		return nil, fmt.Errorf("failed to create handle webhook use case: %w", err)
	}
	getLastSessionUseCase, err := usecase.NewGetLastSessionUseCase(sessionStorage)
	if err != nil {
		return nil, fmt.Errorf("failed to create get last session use case: %w", err)
	}
	getLookupsUseCase, err := usecase.NewGetLookupsUseCase(crmClient, lookupCache)
	if err != nil {
		return nil, fmt.Errorf("failed to create get lookups use case: %w", err)
	}

	appLogger.Info("All use cases initialized", nil)

	// --- 5. REST ---
	syncHandlers := rest.NewSyncHandlers(runSyncUseCase, getLastSessionUseCase, getLookupsUseCase)
	webhookHandlers, err := rest.NewWebhookHandlers(handleWebhookUseCase, appConfig.Sync.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook handlers: %w", err)
	}
	apiServer := rest.NewServer(appConfig.Rest.PORT, syncHandlers, webhookHandlers, baseLogger)

	application := &App{
		config:        appConfig,
		apiServer:     apiServer,
		dbPool:        dbPool,
		redisClient:   redisClient,
		eventProducer: eventProducer,
		logger:        appLogger,
		fluentClient:  fluentClient,
	}

	return application, nil
}

// Run запускает все компоненты приложения и управляет их жизненным циклом.
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		if a.apiServer != nil {
			if err := a.apiServer.Stop(context.Background()); err != nil {
				a.logger.Error("Error during API server shutdown", err, nil)
			}
		}

		if a.eventProducer != nil {
			if err := a.eventProducer.Close(); err != nil {
				a.logger.Error("Error closing event producer", err, nil)
			}
		}

		if a.redisClient != nil {
			if err := a.redisClient.Close(); err != nil {
				a.logger.Error("Error closing redis client", err, nil)
			}
		}

		if a.dbPool != nil {
			a.dbPool.Close()
		}

		a.logger.Info("Application shut down gracefully.", nil)

		if a.fluentClient != nil {
			if err := a.fluentClient.Close(); err != nil {
				// Логируем в stdout, так как fluent может быть уже недоступен
				fmt.Printf("ERROR: Error closing fluent client: %v\n", err)
			}
		}
	}()

	a.logger.Info("Application is starting...", nil)

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server...", port.Fields{"port": a.config.Rest.PORT})
		if err := a.apiServer.Start(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}()

	// Ожидание сигнала на завершение или ошибки от одного из компонентов
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	a.logger.Info("Application running. Waiting for signals or server error...", nil)
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received OS signal, shutting down...", port.Fields{"signal": receivedSignal.String()})
	case <-appCtx.Done():
		a.logger.Warn("Context was cancelled unexpectedly, shutting down...", nil)
	case err := <-serverErrors:
		a.logger.Error("HTTP server failed to start, shutting down", err, nil)
	}

	cancelApp()

	return nil
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		log.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}
