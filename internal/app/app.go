package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aureeture/mentor_sessions/internal/config"
	"github.com/aureeture/mentor_sessions/internal/controller/api"
	"github.com/aureeture/mentor_sessions/internal/media"
	"github.com/aureeture/mentor_sessions/internal/notify"
	"github.com/aureeture/mentor_sessions/internal/presence"
	"github.com/aureeture/mentor_sessions/internal/repository"
	"github.com/aureeture/mentor_sessions/internal/service"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// App владеет пулом БД, клиентом redis и HTTP-сервером
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redis.Client
	http   *fiber.App
}

// Connect открывает пул соединений с Postgres и проверяет его
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// New собирает все зависимости сервиса
func New(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger, pool: pool}

	var tracker service.PresenceTracker
	if cfg.RedisAddr != "" {
		client, err := presence.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			// Присутствие необязательно: сервис работает и без redis
			logger.Warn("Redis unavailable, presence tracking disabled",
				zap.String("addr", cfg.RedisAddr),
				zap.Error(err))
		} else {
			a.redis = client
			tracker = presence.NewTracker(client)
		}
	}

	dispatcher, err := newDispatcher(cfg, logger)
	if err != nil {
		return nil, err
	}

	tokens, err := media.NewJWTIssuer(cfg.MediaTokenSecret, "mentor_sessions")
	if err != nil {
		return nil, fmt.Errorf("create media token issuer: %w", err)
	}

	// Repositories
	sessionRepo := repository.NewSessionRepository(pool, logger)
	availabilityRepo := repository.NewAvailabilityRepository(pool)

	// Services
	sessionService := service.NewSessionService(sessionRepo, dispatcher, time.Now, logger)
	availabilityService := service.NewAvailabilityService(availabilityRepo, sessionRepo, cfg.Location(), logger)
	joinService := service.NewJoinService(sessionRepo, tokens, tracker, time.Now, cfg.JoinWindow(), cfg.MediaTokenTTLSeconds, logger)
	menteeService := service.NewMenteeService(sessionRepo, time.Now, logger)

	// HTTP
	a.http = fiber.New(fiber.Config{
		AppName:               "mentor_sessions",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})
	a.http.Use(recover.New())
	a.http.Use(fiberlogger.New())

	api.RegisterRoutes(a.http,
		api.RouteConfig{AuthSecret: cfg.AuthJWTSecret, InternalToken: cfg.InternalAPIToken},
		api.NewSessionHandler(sessionService, joinService, logger),
		api.NewMentorHandler(availabilityService, sessionService, menteeService, logger),
	)

	return a, nil
}

func newDispatcher(cfg *config.Config, logger *zap.Logger) (service.Dispatcher, error) {
	if cfg.TelegramToken == "" {
		logger.Info("Telegram token not set, notifications go to the log")
		return notify.NewLogDispatcher(logger), nil
	}

	dispatcher, err := notify.NewTelegramDispatcher(cfg.TelegramToken, cfg.TelegramDefaultChatID, logger)
	if err != nil {
		return nil, fmt.Errorf("create telegram dispatcher: %w", err)
	}
	return dispatcher, nil
}

// Run обслуживает HTTP до отмены ctx, затем останавливает сервер
func (a *App) Run(ctx context.Context) error {
	addr := ":" + a.cfg.HTTPPort
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("HTTP server starting", zap.String("addr", addr))
		errCh <- a.http.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down HTTP server")
	if err := a.http.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("HTTP server stopped with error", zap.Error(err))
	}
	return nil
}

// Close освобождает ресурсы; пул закрывает вызывающий
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
}
