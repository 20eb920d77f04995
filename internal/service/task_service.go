package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"todoTracker/internal/auth"
	"todoTracker/internal/logger"
	"todoTracker/internal/models/task"
	"todoTracker/internal/persistence"
	"todoTracker/internal/repository/kv"
	"todoTracker/internal/store"
)

// здесь живёт контракт синхронизации: загрузка слота ровно один раз
// на переход идентичности (вход или восстановление сессии), сохранение
// после каждой изменившей состояние мутации, сброс памяти при выходе

type TaskService struct {
	mtx          *sync.RWMutex
	stores       map[string]*store.TaskStore
	storage      kv.Store
	adapter      *persistence.Adapter
	sessions     *auth.SessionManager
	auth         *auth.Authenticator
	storeOptions []store.Option
}

func NewTaskService(storage kv.Store, adapter *persistence.Adapter, sessions *auth.SessionManager, authenticator *auth.Authenticator, storeOptions ...store.Option) *TaskService {
	return &TaskService{
		mtx:          &sync.RWMutex{},
		stores:       make(map[string]*store.TaskStore),
		storage:      storage,
		adapter:      adapter,
		sessions:     sessions,
		auth:         authenticator,
		storeOptions: storeOptions,
	}
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.storage.HealthCheck(ctx); err != nil {
		return fmt.Errorf("проверка здоровья сервиса: %w", err)
	}
	return nil
}

func (s *TaskService) Usernames() []string {
	return s.auth.Usernames()
}

// Login проверяет пароль по демо-списку, создаёт сессию и загружает
// слот пользователя в свежий in-memory store.
func (s *TaskService) Login(ctx context.Context, username, password string) (string, error) {
	if !s.auth.Verify(username, password) {
		return "", NewUnauthorized()
	}

	token, err := s.sessions.Create(ctx, username)
	if err != nil {
		return "", fmt.Errorf("создание сессии: %w", err)
	}

	taskStore := store.New(s.storeOptions...)
	taskStore.Replace(s.adapter.Load(ctx, username))

	s.mtx.Lock()
	s.stores[username] = taskStore
	s.mtx.Unlock()

	logger.Info("Service: Пользователь вошёл",
		zap.String("user", username),
		zap.Int("tasks_loaded", taskStore.Len()))
	return token, nil
}

// Logout снимает сессию и сбрасывает in-memory состояние пользователя.
// Слот в хранилище не трогается: при следующем входе задачи вернутся.
func (s *TaskService) Logout(ctx context.Context, token string) error {
	username, err := s.sessions.Current(ctx, token)
	if err != nil && !errors.Is(err, auth.ErrNoSession) && !errors.Is(err, auth.ErrSessionExpired) {
		return fmt.Errorf("чтение сессии: %w", err)
	}

	if err := s.sessions.Remove(ctx, token); err != nil {
		return fmt.Errorf("завершение сессии: %w", err)
	}

	if username != "" {
		s.mtx.Lock()
		if taskStore, exists := s.stores[username]; exists {
			taskStore.Clear()
			delete(s.stores, username)
		}
		s.mtx.Unlock()
		logger.Info("Service: Пользователь вышел", zap.String("user", username))
	}
	return nil
}

// CurrentUser отдаёт имя пользователя по токену сессии
func (s *TaskService) CurrentUser(ctx context.Context, token string) (string, error) {
	username, err := s.sessions.Current(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrNoSession) || errors.Is(err, auth.ErrSessionExpired) {
			return "", NewNoSession()
		}
		return "", fmt.Errorf("чтение сессии: %w", err)
	}
	return username, nil
}

// getStore возвращает store пользователя. Если процесс был перезапущен,
// а сессия ещё жива, слот загружается лениво — это то же восстановление
// сессии, один Load на переход идентичности.
func (s *TaskService) getStore(ctx context.Context, username string) *store.TaskStore {
	s.mtx.RLock()
	taskStore, exists := s.stores[username]
	s.mtx.RUnlock()
	if exists {
		return taskStore
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if taskStore, exists = s.stores[username]; exists {
		return taskStore
	}

	taskStore = store.New(s.storeOptions...)
	taskStore.Replace(s.adapter.Load(ctx, username))
	s.stores[username] = taskStore

	logger.Info("Service: Сессия восстановлена",
		zap.String("user", username),
		zap.Int("tasks_loaded", taskStore.Len()))
	return taskStore
}

func (s *TaskService) AddTask(ctx context.Context, username, text string, category task.Category, priority task.Priority) (*task.Task, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewValidationError("text", "текст задачи не может быть пустым")
	}
	if !category.Valid() {
		return nil, NewValidationError("category", "неизвестная категория")
	}
	if !priority.Valid() {
		return nil, NewValidationError("priority", "неизвестный приоритет")
	}

	taskStore := s.getStore(ctx, username)
	created := taskStore.Add(text, category, priority)
	if created == nil {
		// store перепроверяет вход и мог отклонить то, что прошло выше
		return nil, NewValidationError("task", "задача отклонена хранилищем")
	}

	s.adapter.Save(ctx, taskStore.All(), username)
	return created, nil
}

// EditTask меняет текст задачи. Неизвестный id — no-op, не ошибка.
func (s *TaskService) EditTask(ctx context.Context, username, id, newText string) error {
	if strings.TrimSpace(newText) == "" {
		return NewValidationError("text", "текст задачи не может быть пустым")
	}

	taskStore := s.getStore(ctx, username)
	if taskStore.Edit(id, newText) {
		s.adapter.Save(ctx, taskStore.All(), username)
	}
	return nil
}

// DeleteTask идемпотентно удаляет задачу по id
func (s *TaskService) DeleteTask(ctx context.Context, username, id string) error {
	taskStore := s.getStore(ctx, username)
	if taskStore.Delete(id) {
		s.adapter.Save(ctx, taskStore.All(), username)
	}
	return nil
}

// ToggleTask переключает флаг завершённости задачи
func (s *TaskService) ToggleTask(ctx context.Context, username, id string) error {
	taskStore := s.getStore(ctx, username)
	if taskStore.ToggleComplete(id) {
		s.adapter.Save(ctx, taskStore.All(), username)
	}
	return nil
}

func (s *TaskService) TasksByCategory(ctx context.Context, username string, category task.Category) ([]*task.Task, error) {
	if !category.Valid() {
		return nil, NewValidationError("category", "неизвестная категория")
	}
	return s.getStore(ctx, username).ByCategory(category), nil
}

func (s *TaskService) AllTasks(ctx context.Context, username string) []*task.Task {
	return s.getStore(ctx, username).All()
}

// Stats считает статистику завершённости: по категории или по всем задачам
func (s *TaskService) Stats(ctx context.Context, username string, category *task.Category) (store.Stats, error) {
	taskStore := s.getStore(ctx, username)

	if category == nil {
		return store.CompletionStats(taskStore.All()), nil
	}
	if !category.Valid() {
		return store.Stats{}, NewValidationError("category", "неизвестная категория")
	}
	return store.CompletionStats(taskStore.ByCategory(*category)), nil
}
