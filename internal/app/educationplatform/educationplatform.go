// Package educationplatform собирает приложение: хранилище, кеш, брокер,
// платежный шлюз, сервисы и HTTP-сервер.
package educationplatform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/education-platform/internal/cache"
	"github.com/magabrotheeeer/education-platform/internal/config"
	"github.com/magabrotheeeer/education-platform/internal/lib/jwt"
	"github.com/magabrotheeeer/education-platform/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/education-platform/internal/paymentgateway"
	authservice "github.com/magabrotheeeer/education-platform/internal/services/auth"
	billingservice "github.com/magabrotheeeer/education-platform/internal/services/billing"
	courseservice "github.com/magabrotheeeer/education-platform/internal/services/course"
	fileservice "github.com/magabrotheeeer/education-platform/internal/services/file"
	lessonservice "github.com/magabrotheeeer/education-platform/internal/services/lesson"
	rbacservice "github.com/magabrotheeeer/education-platform/internal/services/rbac"
	userservice "github.com/magabrotheeeer/education-platform/internal/services/user"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

// Размер очереди фоновой обработки событий платежного провайдера.
const eventQueueSize = 256

// App хранит составные части приложения и управляет их жизненным циклом.
type App struct {
	server     *http.Server
	logger     *slog.Logger
	db         *repository.Storage
	queue      *billingservice.Queue
	rabbitConn *amqp.Connection
	rabbitCh   *amqp.Channel
}

// New инициализирует зависимости и собирает приложение.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Подпись токенов фиксирована, другой алгоритм в конфиге — ошибка деплоя.
	if cfg.Algorithm != "HS256" {
		return nil, fmt.Errorf("unsupported jwt algorithm: %s", cfg.Algorithm)
	}

	db, err := repository.New(ctx, cfg.ConnectionString, cfg.DatabaseName)
	if err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	rabbitConn, err := rabbitmq.Connect(cfg.RabbitMQConnection, cfg.ConnectRetries, cfg.ConnectDelay)
	if err != nil {
		return nil, err
	}
	rabbitCh, err := rabbitmq.SetupChannel(rabbitConn, rabbitmq.GetNotificationQueues())
	if err != nil {
		return nil, err
	}

	gateway := paymentgateway.New(cfg.Stripe, logger)
	notifier := billingservice.NewRabbitNotifier(rabbitCh)

	maker := jwt.NewMaker(cfg.AccessSecretKey, cfg.RefreshSecretKey,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	rbacService := rbacservice.New(db, logger)
	userService := userservice.New(db, rbacService, logger)
	authService := authservice.New(userService, db, db, maker, logger)
	courseService := courseservice.New(db, cacheRedis, logger)
	lessonService := lessonservice.New(db, logger)
	fileService := fileservice.New(db, logger)
	billingService := billingservice.New(db, gateway, notifier, logger)
	queue := billingservice.NewQueue(billingService, eventQueueSize, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, &Services{
		Auth:    authService,
		User:    userService,
		RBAC:    rbacService,
		Course:  courseService,
		Lesson:  lessonService,
		File:    fileService,
		Billing: billingService,
		Queue:   queue,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:     srv,
		logger:     logger,
		db:         db,
		queue:      queue,
		rabbitConn: rabbitConn,
		rabbitCh:   rabbitCh,
	}, nil
}

// Run запускает фоновую обработку событий и HTTP-сервер, останавливая
// их по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	go a.queue.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.db.Close(timeoutCtx); closeErr != nil {
			a.logger.Error("failed to close storage", slog.Any("err", closeErr))
		}
		_ = a.rabbitCh.Close()
		_ = a.rabbitConn.Close()
		return err
	}
}
