package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/qcom/accounts/internal/config"
	"github.com/qcom/accounts/internal/handlers"
	"github.com/qcom/accounts/internal/middleware"
	"github.com/qcom/accounts/internal/notify"
	"github.com/qcom/accounts/internal/repository"
	"github.com/qcom/accounts/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("log_level", cfg.Server.LogLevel).Warn("Unknown log level, using info")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, closeStore, err := initStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize account store")
	}
	defer closeStore()

	notifier, closeNotifier, err := initNotifier(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize notifications")
	}

	jwtService, err := service.NewJWTService(&cfg.JWT, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize JWT service")
	}

	accountService := service.NewAccountService(
		store,
		service.NewBcryptHasher(cfg.Password.BcryptCost),
		service.NewOTPGenerator(cfg.OTP.Length),
		jwtService,
		notifier,
		service.AccountConfig{
			OTPExpiry: cfg.OTP.Expiry,
			VerifyURL: cfg.Server.BaseURL,
		},
		logger,
	)

	authHandlers := handlers.NewAuthHandlers(accountService, logger)
	authMiddleware := middleware.NewAuthMiddleware(jwtService, logger)
	router := handlers.NewRouter(authHandlers, authMiddleware, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	stop()
	closeNotifier()

	logger.Info("Server exited")
}

func initStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (repository.AccountStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreMongo:
		return initMongo(ctx, cfg, logger)
	case config.StoreMemory:
		logger.Warn("Using in-memory account store; data is lost on restart")
		return repository.NewMemoryRepository(), func() {}, nil
	default:
		client, err := initDynamoDB(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewDynamoAccountRepository(client, cfg.DynamoDB.TableName, logger), func() {}, nil
	}
}

func initDynamoDB(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*dynamodb.Client, error) {
	var awsCfg aws.Config
	var err error

	if cfg.DynamoDB.Endpoint != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.DynamoDB.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.DynamoDB.Endpoint,
						SigningRegion: cfg.DynamoDB.Region,
					}, nil
				})),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.DynamoDB.Region))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg)
	logger.Info("DynamoDB client initialized")
	return client, nil
}

func initMongo(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (repository.AccountStore, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	disconnect := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			logger.WithError(err).Error("Failed to disconnect from MongoDB")
		}
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		disconnect()
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	repo := repository.NewMongoAccountRepository(client.Database(cfg.Mongo.Database), cfg.Mongo.Collection, logger)
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		disconnect()
		return nil, nil, err
	}

	logger.WithField("database", cfg.Mongo.Database).Info("MongoDB client initialized")
	return repo, disconnect, nil
}

func initSender(cfg *config.Config, logger *logrus.Logger) notify.Sender {
	fallback := notify.NewLogSender(logger)

	var sms notify.Sender = fallback
	if twilio := notify.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber); twilio.Configured() {
		sms = twilio
	} else {
		logger.Warn("Twilio not configured, SMS messages will be logged")
	}

	var email notify.Sender = fallback
	if brevo := notify.NewBrevoSender(cfg.Brevo.APIKey, cfg.Brevo.FromEmail, cfg.Brevo.FromName); brevo.Configured() {
		email = brevo
	} else {
		logger.Warn("Brevo not configured, emails will be logged")
	}

	return notify.NewRouter(sms, email)
}

// initNotifier queues notifications in Redis when REDIS_URL is set and
// otherwise delivers them on background goroutines. The returned func drains
// in-flight deliveries.
func initNotifier(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (notify.Notifier, func(), error) {
	sender := initSender(cfg, logger)

	if cfg.Redis.URL == "" {
		dispatcher := notify.NewAsyncDispatcher(sender, 15*time.Second, logger)
		return dispatcher, dispatcher.Wait, nil
	}

	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	worker := notify.NewWorker(client, cfg.Redis.Queue, sender, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := worker.Run(ctx); err != nil {
			logger.WithError(err).Error("Notification worker stopped")
		}
	}()

	logger.WithField("queue", cfg.Redis.Queue).Info("Redis notification queue initialized")

	queue := notify.NewRedisQueue(client, cfg.Redis.Queue, logger)
	closeFn := func() {
		queue.Wait()
		<-done
		if err := client.Close(); err != nil {
			logger.WithError(err).Error("Failed to close Redis client")
		}
	}
	return queue, closeFn, nil
}
