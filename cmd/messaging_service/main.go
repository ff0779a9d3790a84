package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"secure_messaging_service/internal/messaging/app"
	"secure_messaging_service/internal/messaging/realtime"
	"secure_messaging_service/internal/messaging/repository"
	"secure_messaging_service/internal/messaging/router"
	"secure_messaging_service/pkg/config"
	"secure_messaging_service/pkg/database"
	"secure_messaging_service/pkg/encrypt"
	"secure_messaging_service/pkg/logger"
	testtool "secure_messaging_service/pkg/test_tool"
	"secure_messaging_service/pkg/token"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.MessagingService, config.EnvConfig.MessagingServiceLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.Messaging](config.EnvConfig.MessagingService, config.EnvConfig.MessagingServiceYAMLPath)

	token.SetSecret(cfg.JWT.Secret)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. PostgreSQL (threads, messages, read receipts)
	dsn := database.PostgresDSN(cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Database)
	db, err := database.NewGormConnection(database.Connection{
		ConnectStr:    dsn,
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to postgreSQL database after retries",
			zap.String("host", cfg.PostgreSQL.Host),
			zap.Error(err),
		)
	}
	if err := repository.AutoMigrate(db); err != nil {
		logger.Log.Fatal("auto migrate failed", zap.Error(err))
	}

	// 2. MongoDB (access log), optional
	var accessLogs repository.AccessLogRepository
	if cfg.MongoSQL.Host != "" {
		uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
		mongo, err := database.NewMongoDB(ctx,
			database.Connection{
				ConnectStr:    uri,
				RetryCount:    cfg.MongoSQL.RetryCount,
				RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval),
			},
			cfg.MongoSQL.Database)
		if err != nil {
			logger.Log.Fatal("Unable to connect to mongoDB database after retries",
				zap.String("address", fmt.Sprintf("[%s:%d]", cfg.MongoSQL.Host, cfg.MongoSQL.Port)),
				zap.Error(err),
			)
		}
		defer mongo.Close(context.Background())
		accessLogs = repository.NewMongoAccessLogRepository(mongo.Database)
	} else {
		logger.Log.Warn("mongo host not set, message access log disabled")
	}

	// 3. 訊息加密
	codec, err := encrypt.NewAESCodec(cfg.Crypto.Secret, encrypt.Mode(cfg.Crypto.Mode))
	if err != nil {
		logger.Log.Fatal("init message codec", zap.Error(err))
	}
	logger.Log.Info("message codec ready", zap.String("mode", string(codec.Mode())))

	// 4. Realtime hub + fan-out driver
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	hub := realtime.NewHub(realtime.NewMetrics(registry))

	var pub app.Publisher = hub
	if cfg.Realtime.Driver == config.RealtimeRedis {
		redisClient, err := newRedisClient(cfg.Redis)
		if err != nil {
			logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
		}
		defer redisClient.Close()

		pubsub := repository.NewRedisPubSub(redisClient)
		go func() {
			if err := pubsub.Relay(ctx, hub); err != nil {
				logger.Log.Error("redis relay stopped", zap.Error(err))
			}
		}()
		pub = pubsub
	}
	logger.Log.Info("realtime driver", zap.String("driver", cfg.Realtime.Driver))

	// 5. 初始化 Repository
	threadRepo := repository.NewThreadRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	readRepo := repository.NewReadRepository(db)
	practitionerRepo := repository.NewPractitionerRepository(db)

	// 6. 初始化 UseCases
	threadUC := app.NewThreadUseCase(threadRepo, messageRepo, readRepo, practitionerRepo, codec, pub)
	messageUC := app.NewMessageUseCase(threadRepo, messageRepo, practitionerRepo, accessLogs, codec, pub)
	readUC := app.NewReadUseCase(threadRepo, messageRepo, readRepo, practitionerRepo, pub)
	typingUC := app.NewTypingUseCase(threadRepo, practitionerRepo, pub)

	// 7. 啟動 Fiber
	r := fiber.New(fiber.Config{AppName: config.EnvConfig.MessagingService})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.MessagingServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r,
		app.NewMessagingHandler(threadUC, messageUC, readUC),
		app.NewWebsocketHandler(hub, typingUC, cfg.Realtime.PingInterval),
		registry,
	)

	testtool.StartPprof()

	port := ":" + cfg.Port
	logger.Log.Info("Messaging Service listening", zap.String("port", port))
	if err := r.Listen(port); err != nil {
		logger.Log.Fatal("Failed to start Fiber", zap.Error(err))
	}
}

// newRedisClient single node when addr is set, otherwise sentinel from .env
func newRedisClient(c config.RedisConfig) (*redis.Client, error) {
	if c.Addr != "" {
		return database.NewRedisAddrClient(c.Addr, c.RedisDB)
	}
	masterName, sentinel := config.GetRedisSetting()
	return database.NewRedisClient(masterName, sentinel, c.RedisDB)
}
