package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"todoTracker/internal/auth"
	"todoTracker/internal/models/task"
	"todoTracker/internal/persistence"
	"todoTracker/internal/repository/kv"
	"todoTracker/internal/repository/kv/inmemory"
	"todoTracker/internal/service"
	"todoTracker/internal/store"
)

const tasksPrefix = "todo-app-tasks-"

// MockKV - мок key-value хранилища
type MockKV struct {
	mock.Mock
}

func (m *MockKV) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockKV) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockKV) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockKV) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var _ kv.Store = (*MockKV)(nil)

func demoAuthenticator(t *testing.T) *auth.Authenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	require.NoError(t, err)
	return auth.NewAuthenticator([]auth.Credential{
		{Username: "admin", PasswordHash: string(hash)},
	})
}

func newService(storage kv.Store, authenticator *auth.Authenticator) *service.TaskService {
	adapter := persistence.New(storage, tasksPrefix)
	sessions := auth.NewSessionManager(storage, 24*time.Hour)
	return service.NewTaskService(storage, adapter, sessions, authenticator)
}

func isSessionKey(key string) bool {
	return strings.HasPrefix(key, auth.SessionKeyPrefix)
}

// TestTaskService_HealthCheck тестирует HealthCheck
func TestTaskService_HealthCheck(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(*MockKV)
		expectError bool
	}{
		{
			name: "success - health check passes",
			setupMock: func(m *MockKV) {
				m.On("HealthCheck", mock.Anything).Return(nil)
			},
			expectError: false,
		},
		{
			name: "error - health check fails",
			setupMock: func(m *MockKV) {
				m.On("HealthCheck", mock.Anything).Return(errors.New("storage connection failed"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockKV := new(MockKV)
			tt.setupMock(mockKV)

			svc := newService(mockKV, demoAuthenticator(t))
			err := svc.HealthCheck(context.Background())

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "проверка здоровья сервиса")
			} else {
				assert.NoError(t, err)
			}

			mockKV.AssertExpectations(t)
		})
	}
}

// TestTaskService_LoginRejectsBadCredentials тестирует отказ без обращения к хранилищу
func TestTaskService_LoginRejectsBadCredentials(t *testing.T) {
	mockKV := new(MockKV)
	svc := newService(mockKV, demoAuthenticator(t))

	_, err := svc.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)

	var businessErr *service.BusinessError
	require.ErrorAs(t, err, &businessErr)
	assert.Equal(t, "UNAUTHORIZED", businessErr.Code)

	// ни сессии, ни загрузки слота
	mockKV.AssertExpectations(t)
}

// TestTaskService_LoginLoadsSlot тестирует загрузку слота ровно один раз при входе
func TestTaskService_LoginLoadsSlot(t *testing.T) {
	ctx := context.Background()
	mockKV := new(MockKV)

	slot := `[{"id": "a", "text": "Persisted", "category": "Home", "priority": "High", "completed": false, "createdAt": 1}]`
	mockKV.On("Set", mock.Anything, mock.MatchedBy(isSessionKey), mock.Anything).Return(nil).Once()
	mockKV.On("Get", mock.Anything, tasksPrefix+"admin").Return(slot, nil).Once()

	svc := newService(mockKV, demoAuthenticator(t))

	token, err := svc.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	tasks := svc.AllTasks(ctx, "admin")
	require.Len(t, tasks, 1)
	assert.Equal(t, "Persisted", tasks[0].Text)

	// повторные чтения идут из памяти, Get больше не вызывается
	svc.AllTasks(ctx, "admin")
	mockKV.AssertExpectations(t)
}

// TestTaskService_SaveAfterEveryMutation тестирует сохранение после каждой изменившей состояние операции
func TestTaskService_SaveAfterEveryMutation(t *testing.T) {
	ctx := context.Background()
	mockKV := new(MockKV)

	mockKV.On("Set", mock.Anything, mock.MatchedBy(isSessionKey), mock.Anything).Return(nil).Once()
	mockKV.On("Get", mock.Anything, tasksPrefix+"admin").Return("", kv.ErrNotFound).Once()
	// четыре мутации — ровно четыре записи слота
	mockKV.On("Set", mock.Anything, tasksPrefix+"admin", mock.Anything).Return(nil).Times(4)

	svc := newService(mockKV, demoAuthenticator(t))

	_, err := svc.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	created, err := svc.AddTask(ctx, "admin", "Task", task.CategoryHome, task.PriorityHigh)
	require.NoError(t, err)

	require.NoError(t, svc.EditTask(ctx, "admin", created.ID, "Renamed"))
	require.NoError(t, svc.ToggleTask(ctx, "admin", created.ID))
	require.NoError(t, svc.DeleteTask(ctx, "admin", created.ID))

	// no-op операции записей не порождают
	require.NoError(t, svc.EditTask(ctx, "admin", "missing", "Text"))
	require.NoError(t, svc.ToggleTask(ctx, "admin", "missing"))
	require.NoError(t, svc.DeleteTask(ctx, "admin", "missing"))

	mockKV.AssertExpectations(t)
}

// TestTaskService_AddTaskValidation тестирует валидацию входа на границе сервиса
func TestTaskService_AddTaskValidation(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		category task.Category
		priority task.Priority
	}{
		{name: "empty text", text: "   ", category: task.CategoryHome, priority: task.PriorityHigh},
		{name: "bad category", text: "Valid", category: task.Category("Garage"), priority: task.PriorityHigh},
		{name: "bad priority", text: "Valid", category: task.CategoryHome, priority: task.Priority("Urgent")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// мутация отклоняется до обращения к состоянию, хранилище не трогается
			mockKV := new(MockKV)
			svc := newService(mockKV, demoAuthenticator(t))

			_, err := svc.AddTask(context.Background(), "admin", tt.text, tt.category, tt.priority)
			require.Error(t, err)

			var businessErr *service.BusinessError
			require.ErrorAs(t, err, &businessErr)
			assert.Equal(t, "VALIDATION_ERROR", businessErr.Code)

			mockKV.AssertExpectations(t)
		})
	}
}

// TestTaskService_LogoutResetsMemoryKeepsSlot тестирует сброс памяти при выходе без очистки слота
func TestTaskService_LogoutResetsMemoryKeepsSlot(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.New()
	svc := newService(storage, demoAuthenticator(t))

	token, err := svc.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	_, err = svc.AddTask(ctx, "admin", "Survives logout", task.CategoryWork, task.PriorityMedium)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))

	// сессия снята
	_, err = svc.CurrentUser(ctx, token)
	require.Error(t, err)

	// слот не тронут: новый вход возвращает задачи
	token2, err := svc.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	tasks := svc.AllTasks(ctx, "admin")
	require.Len(t, tasks, 1)
	assert.Equal(t, "Survives logout", tasks[0].Text)

	_, err = svc.CurrentUser(ctx, token2)
	assert.NoError(t, err)
}

// TestTaskService_SessionRestore тестирует ленивую загрузку слота после рестарта процесса
func TestTaskService_SessionRestore(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.New()

	first := newService(storage, demoAuthenticator(t))
	token, err := first.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	_, err = first.AddTask(ctx, "admin", "Before restart", task.CategorySchool, task.PriorityLow)
	require.NoError(t, err)

	// "рестарт": новый сервис над тем же хранилищем, сессия в слоте жива
	second := newService(storage, demoAuthenticator(t))

	username, err := second.CurrentUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "admin", username)

	tasks, err := second.TasksByCategory(ctx, "admin", task.CategorySchool)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Before restart", tasks[0].Text)
}

// TestTaskService_CurrentUserNoSession тестирует бизнес-ошибку при отсутствии сессии
func TestTaskService_CurrentUserNoSession(t *testing.T) {
	svc := newService(inmemory.New(), demoAuthenticator(t))

	_, err := svc.CurrentUser(context.Background(), "ghost-token")
	require.Error(t, err)

	var businessErr *service.BusinessError
	require.ErrorAs(t, err, &businessErr)
	assert.Equal(t, "NO_SESSION", businessErr.Code)
}

// TestTaskService_CurrentUserStorageFailure тестирует, что отказ хранилища
// не выдаётся за отсутствие сессии
func TestTaskService_CurrentUserStorageFailure(t *testing.T) {
	mockKV := new(MockKV)
	mockKV.On("Get", mock.Anything, mock.Anything).Return("", errors.New("connection refused"))

	svc := newService(mockKV, demoAuthenticator(t))

	_, err := svc.CurrentUser(context.Background(), "any-token")
	require.Error(t, err)

	var businessErr *service.BusinessError
	assert.False(t, errors.As(err, &businessErr))
}

// TestTaskService_Stats тестирует статистику по категории и по всем задачам
func TestTaskService_Stats(t *testing.T) {
	ctx := context.Background()
	svc := newService(inmemory.New(), demoAuthenticator(t))

	_, err := svc.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	home, err := svc.AddTask(ctx, "admin", "Home 1", task.CategoryHome, task.PriorityHigh)
	require.NoError(t, err)
	_, err = svc.AddTask(ctx, "admin", "Home 2", task.CategoryHome, task.PriorityLow)
	require.NoError(t, err)
	_, err = svc.AddTask(ctx, "admin", "Work 1", task.CategoryWork, task.PriorityMedium)
	require.NoError(t, err)

	require.NoError(t, svc.ToggleTask(ctx, "admin", home.ID))

	global, err := svc.Stats(ctx, "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Completed: 1, Total: 3, Percent: 33}, global)

	homeCategory := task.CategoryHome
	perCategory, err := svc.Stats(ctx, "admin", &homeCategory)
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Completed: 1, Total: 2, Percent: 50}, perCategory)
}

// TestTaskService_UserIsolation тестирует независимость задач разных пользователей
func TestTaskService_UserIsolation(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.New()

	adminHash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	require.NoError(t, err)
	demoHash, err := bcrypt.GenerateFromPassword([]byte("demo123"), bcrypt.MinCost)
	require.NoError(t, err)

	authenticator := auth.NewAuthenticator([]auth.Credential{
		{Username: "admin", PasswordHash: string(adminHash)},
		{Username: "demo", PasswordHash: string(demoHash)},
	})
	svc := newService(storage, authenticator)

	_, err = svc.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "demo", "demo123")
	require.NoError(t, err)

	_, err = svc.AddTask(ctx, "admin", "Admin only", task.CategoryHome, task.PriorityHigh)
	require.NoError(t, err)

	assert.Empty(t, svc.AllTasks(ctx, "demo"))
	assert.Len(t, svc.AllTasks(ctx, "admin"), 1)
}
