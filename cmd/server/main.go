package main

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignatzorin/escrow-backend/internal/app/background"
	"github.com/ignatzorin/escrow-backend/internal/config"
	"github.com/ignatzorin/escrow-backend/internal/db"
	"github.com/ignatzorin/escrow-backend/internal/domain/port"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	httpRouter "github.com/ignatzorin/escrow-backend/internal/http/router"
	"github.com/ignatzorin/escrow-backend/internal/infrastructure/kafka"
	"github.com/ignatzorin/escrow-backend/internal/infrastructure/metrics"
	"github.com/ignatzorin/escrow-backend/internal/infrastructure/notify"
	"github.com/ignatzorin/escrow-backend/internal/infrastructure/payment"
	"github.com/ignatzorin/escrow-backend/internal/infrastructure/persistence"
	"github.com/ignatzorin/escrow-backend/internal/interface/http/handler"
	"github.com/ignatzorin/escrow-backend/internal/logger"
	"github.com/ignatzorin/escrow-backend/internal/service"
	"github.com/ignatzorin/escrow-backend/internal/storage"
	"github.com/ignatzorin/escrow-backend/internal/usecase/escrow"
	"github.com/ignatzorin/escrow-backend/internal/ws"
	"github.com/ignatzorin/escrow-backend/migrations"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.Env)
	logger.L().WithField("env", cfg.Env).WithField("store", cfg.Store).Info("запуск escrow сервиса")

	// Хранилище сделок.
	var (
		repo   repository.EscrowRepository
		dbConn *sqlx.DB
	)
	switch cfg.Store {
	case config.StoreMemory:
		logger.L().Warn("сделки хранятся в памяти и будут потеряны при перезапуске")
		repo = persistence.NewMemoryEscrowRepository()
	default:
		dbConn, err = db.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("main: ошибка подключения к базе: %v", err)
		}
		defer safeClose(dbConn)

		if err := db.RunMigrations(ctx, dbConn, migrationsFS(cfg.MigrationsPath)); err != nil {
			log.Fatalf("main: ошибка миграций: %v", err)
		}
		repo = persistence.NewEscrowRepositoryAdapter(dbConn)
	}

	gateway := newPaymentGateway(cfg)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Получатели событий по сделкам.
	sinks := []notify.Sink{
		{Name: "log", Notifier: notify.LogNotifier{}},
		{Name: "ws", Notifier: hub},
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka.NewEscrowEventPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.L().WithError(err).Warn("ошибка закрытия kafka publisher")
			}
		}()
		sinks = append(sinks, notify.Sink{Name: "kafka", Notifier: publisher})
	}

	engine := escrow.NewEngine(repo, gateway, notify.NewDispatcher(sinks...), port.SystemClock{}, escrow.Config{
		DefaultFeePercentage:   cfg.Escrow.DefaultFeePercent,
		DefaultInspectionHours: cfg.Escrow.DefaultInspectionHours,
		FundingWindow:          cfg.Escrow.FundingWindow,
		StatsCacheTTL:          cfg.Escrow.StatsCacheTTL,
	})
	engine.SetStatsCache(service.NewCacheService(ctx))
	engine.SetMetrics(metrics.NewEscrowMetrics(prometheus.DefaultRegisterer))

	tasks := background.NewBackgroundTasks(engine, cfg.Escrow.SweepInterval)
	tasks.StartAll(ctx)

	attachments, err := storage.NewAttachmentStorage(cfg.Attachment.StoragePath, cfg.Attachment.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	var pinger handler.Pinger
	if dbConn != nil {
		pinger = dbConn
	}

	router := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Escrow:     handler.NewEscrowHandler(engine),
		Dispute:    handler.NewDisputeHandler(engine),
		Attachment: handler.NewAttachmentHandler(engine, attachments),
		Health:     handler.NewHealthHandler(pinger, cfg.Store),
		WS:         handler.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
		Metrics:    promhttp.Handler(),
	}, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}

	tasks.Wait()
}

// newPaymentGateway выбирает платёжный шлюз: внешний, если задан адрес, иначе песочницу.
func newPaymentGateway(cfg *config.Config) port.PaymentGateway {
	if cfg.Payment.GatewayURL != "" {
		return payment.NewHTTPGateway(cfg.Payment.GatewayURL, cfg.Payment.APIKey, cfg.Payment.Timeout)
	}

	logger.L().Warn("PAYMENT_GATEWAY_URL не задан, используется песочница платежей")
	sandbox, err := payment.NewSandboxGateway()
	if err != nil {
		log.Fatalf("main: не удалось создать песочницу платежей: %v", err)
	}
	return sandbox
}

// migrationsFS возвращает встроенные миграции или каталог из MIGRATIONS_PATH.
func migrationsFS(path string) fs.FS {
	if path == "" {
		return migrations.FS
	}
	return os.DirFS(path)
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
