package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"todoTracker/internal/auth"
	"todoTracker/internal/config"
	"todoTracker/internal/handlers"
	"todoTracker/internal/logger"
	"todoTracker/internal/middleware"
	"todoTracker/internal/persistence"
	"todoTracker/internal/repository/kv"
	"todoTracker/internal/repository/kv/inmemory"
	"todoTracker/internal/repository/kv/postgres"
	"todoTracker/internal/repository/kv/redis"
	"todoTracker/internal/service"
	"todoTracker/internal/worker"
)

type App struct {
	config    *config.Config
	server    *http.Server
	router    *chi.Mux
	storage   kv.Store
	service   handlers.Service
	sweeper   *worker.SessionSweeper
	shutdowns []func() // функции для graceful shutdown
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) error {

	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}

	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})

	if err := a.initStorage(ctx); err != nil {
		return fmt.Errorf("инициализация хранилища: %w", err)
	}

	users := make([]auth.Credential, 0, len(a.config.Auth.Users))
	for _, user := range a.config.Auth.Users {
		users = append(users, auth.Credential{
			Username:     user.Username,
			PasswordHash: user.PasswordHash,
		})
	}

	authenticator := auth.NewAuthenticator(users)
	sessions := auth.NewSessionManager(a.storage, a.config.Auth.SessionTTL.Std())
	adapter := persistence.New(a.storage, a.config.Storage.KeyPrefix)

	taskService := service.NewTaskService(a.storage, adapter, sessions, authenticator)
	a.service = taskService

	sweepEvery := a.config.Auth.SweepEvery.Std()
	a.sweeper = worker.NewSessionSweeper(a.storage, sessions, &sweepEvery)

	a.initRouter(taskService)

	a.server = &http.Server{
		Addr:    a.config.GetServerAddr(),
		Handler: a.router,
	}

	return nil
}

func (a *App) initStorage(ctx context.Context) error {
	switch a.config.Storage.Type {
	case "postgres":
		storage, err := postgres.New(ctx, a.config.Storage.Postgres.URL)
		if err != nil {
			return err
		}
		a.storage = storage
		a.shutdowns = append(a.shutdowns, storage.Close)

	case "redis":
		storage, err := redis.New(ctx,
			a.config.Storage.Redis.Addr,
			a.config.Storage.Redis.Password,
			a.config.Storage.Redis.DB)
		if err != nil {
			return err
		}
		a.storage = storage
		a.shutdowns = append(a.shutdowns, storage.Close)

	case "inmemory":
		a.storage = inmemory.New()

	default:
		return fmt.Errorf("неизвестный тип хранилища: %s", a.config.Storage.Type)
	}
	return nil
}

func (a *App) initRouter(taskService *service.TaskService) {
	TaskHandler := handlers.NewTaskHandler(taskService)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.RateLimit(100))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", TaskHandler.Login) // POST /auth/login
		r.Get("/users", TaskHandler.Users)  // GET /auth/users

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(taskService))
			r.Post("/logout", TaskHandler.Logout) // POST /auth/logout
		})
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Use(middleware.Auth(taskService))

		r.Get("/", TaskHandler.GetTasks)      // GET /tasks?category=
		r.Post("/", TaskHandler.PostTask)     // POST /tasks
		r.Get("/stats", TaskHandler.GetStats) // GET /tasks/stats?category=

		r.Route("/{id}", func(r chi.Router) {
			r.Put("/", TaskHandler.UpdateTaskByID)    // PUT /tasks/{id}
			r.Delete("/", TaskHandler.DeleteTaskByID) // DELETE /tasks/{id}

			r.Post("/toggle", TaskHandler.ToggleTask) // POST /tasks/{id}/toggle
		})
	})

	r.Get("/health", TaskHandler.HealthCheck)

	a.router = r
}

// Run поднимает сервер и фоновую чистку, блокируется до отмены контекста
func (a *App) Run(ctx context.Context) error {
	go a.sweeper.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server started")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("запуск сервера: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка остановки сервера", err)
	}

	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	return nil
}
