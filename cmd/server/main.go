package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/agent-marketplace/internal/config"
	"github.com/ignatzorin/agent-marketplace/internal/db"
	"github.com/ignatzorin/agent-marketplace/internal/goroutine"
	httpHandlers "github.com/ignatzorin/agent-marketplace/internal/http/handlers"
	httpRouter "github.com/ignatzorin/agent-marketplace/internal/http/router"
	"github.com/ignatzorin/agent-marketplace/internal/logger"
	"github.com/ignatzorin/agent-marketplace/internal/repository"
	"github.com/ignatzorin/agent-marketplace/internal/service"
	"github.com/ignatzorin/agent-marketplace/internal/storage"
	"github.com/ignatzorin/agent-marketplace/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, logger.Log, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Инициализируем вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	documentStorage, err := storage.NewDocumentStorage(cfg.DocumentStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	jobRepo := repository.NewJobRepository(dbConn)
	escrowRepo := repository.NewEscrowRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	agentRepo := repository.NewAgentRepository(dbConn)
	chatRepo := repository.NewChatRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub(logger.Log)
	goroutine.SafeGo(hub.Run)

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	jobService := service.NewJobService(jobRepo, hub, logger.Log)
	bidService := service.NewBidService(jobRepo, agentRepo, hub, logger.Log)
	escrowService := service.NewEscrowService(escrowRepo)
	disputeService := service.NewDisputeService(disputeRepo, jobRepo, hub, logger.Log)
	agentService := service.NewAgentService(agentRepo, jobRepo, documentStorage, logger.Log)
	chatService := service.NewChatService(chatRepo, jobRepo, hub)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	jobHandler := httpHandlers.NewJobHandler(jobService, escrowService)
	bidHandler := httpHandlers.NewBidHandler(bidService, jobService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService)
	agentHandler := httpHandlers.NewAgentHandler(agentService)
	chatHandler := httpHandlers.NewChatHandler(chatService)
	statsHandler := httpHandlers.NewStatsHandler(jobService)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager, logger.Log)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, authHandler, jobHandler, bidHandler, disputeHandler, agentHandler, chatHandler, statsHandler, healthHandler, wsHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
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
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
