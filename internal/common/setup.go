package common

import (
	"context"
	"log"
	"strings"
	"time"

	"powerbank-rental-go/internal/database"
	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/notify"
	"powerbank-rental-go/internal/reconciler"
	"powerbank-rental-go/internal/rental"
	"powerbank-rental-go/internal/store"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		// Only log if the file exists but couldn't be read
		// (godotenv returns an error if .env doesn't exist)
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService  *database.Service
	Notifier   store.Notifier
	Rentals    *rental.Service
	Reconciler *reconciler.Service
	Redis      *redis.Client

	publisher *notify.AmqpNotifier
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the database and builds the rental core. Redis and
// the notification broker are optional: when configured but unreachable the
// services fall back to in-process behaviour.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	services := &Services{DbService: dbService}

	notifiers := notify.Fanout{notify.NewLogNotifier(zap.L())}
	if cfg.Amqp.Enabled {
		publisher, err := notify.DialAmqpNotifier(cfg.Amqp.Url, cfg.Amqp.NotificationQueue)
		if err != nil {
			zap.L().Warn("Notification broker unavailable, logging notifications only", zap.Error(err))
		} else {
			services.publisher = publisher
			notifiers = append(notifiers, publisher)
		}
	}
	services.Notifier = notifiers

	if cfg.Redis.Enabled {
		services.Redis = NewRedisClient(ctx, cfg.Redis)
	}

	services.Rentals = rental.NewService(dbService, dbService, services.Notifier, cfg.Rental)
	services.Reconciler = reconciler.NewService(dbService, services.Notifier, dbService, cfg.Rental)

	zap.L().Info("Services initialized",
		zap.Bool("redis", services.Redis != nil),
		zap.Bool("notification_broker", services.publisher != nil))
	return services, nil
}

// InitializeDatabaseOnly initializes just the database service
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

// NewRedisClient connects and pings Redis. It returns nil when the server
// cannot be reached so callers degrade to in-memory behaviour.
func NewRedisClient(ctx context.Context, cfg models.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zap.L().Warn("Redis unavailable, continuing without it", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}

func (cs *Services) Close() {
	if cs.publisher != nil {
		cs.publisher.Close()
	}
	if cs.Redis != nil {
		_ = cs.Redis.Close()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
