package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"todoTracker/internal/repository/kv"
	"todoTracker/internal/repository/kv/postgres"
)

// PostgresTestSuite для интеграционных тестов с PostgreSQL
type PostgresTestSuite struct {
	suite.Suite
	container  testcontainers.Container
	storage    *postgres.Storage
	ctx        context.Context
	connString string
}

// SetupSuite запускается один раз перед всеми тестами
func (s *PostgresTestSuite) SetupSuite() {
	s.ctx = context.Background()

	// Запускаем контейнер с PostgreSQL
	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T(), err)
	s.container = container

	// Получаем connection string
	host, err := container.Host(s.ctx)
	require.NoError(s.T(), err)

	port, err := container.MappedPort(s.ctx, "5432")
	require.NoError(s.T(), err)

	s.connString = fmt.Sprintf("postgres://test:test@%s:%s/testdb", host, port.Port())

	// Создаем storage, таблица kv_slots создаётся внутри New
	s.storage, err = postgres.New(s.ctx, s.connString)
	require.NoError(s.T(), err)
}

// TearDownSuite очищает после всех тестов
func (s *PostgresTestSuite) TearDownSuite() {
	if s.storage != nil {
		s.storage.Close()
	}
	if s.container != nil {
		s.container.Terminate(s.ctx)
	}
}

// SetupTest очищает таблицу перед каждым тестом
func (s *PostgresTestSuite) SetupTest() {
	conn, err := pgx.Connect(s.ctx, s.connString)
	if err != nil {
		s.T().Logf("Не удалось подключиться для очистки: %v", err)
		return
	}
	defer conn.Close(s.ctx)

	if _, err = conn.Exec(s.ctx, "DELETE FROM kv_slots"); err != nil {
		s.T().Logf("Не удалось очистить таблицу: %v", err)
	}
}

// TestPostgresTestSuite запускает suite
func TestPostgresTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционные тесты в коротком режиме")
	}
	suite.Run(t, new(PostgresTestSuite))
}

// TestStorage_SetGet тестирует запись и чтение слота
func (s *PostgresTestSuite) TestStorage_SetGet() {
	ctx := context.Background()

	err := s.storage.Set(ctx, "todo-app-tasks-admin", `[{"id":"1"}]`)
	require.NoError(s.T(), err)

	value, err := s.storage.Get(ctx, "todo-app-tasks-admin")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), `[{"id":"1"}]`, value)
}

// TestStorage_SetOverwrite тестирует перезапись значения по тому же ключу
func (s *PostgresTestSuite) TestStorage_SetOverwrite() {
	ctx := context.Background()

	require.NoError(s.T(), s.storage.Set(ctx, "slot", "first"))
	require.NoError(s.T(), s.storage.Set(ctx, "slot", "second"))

	value, err := s.storage.Get(ctx, "slot")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "second", value)
}

// TestStorage_GetMissing тестирует чтение несуществующего ключа
func (s *PostgresTestSuite) TestStorage_GetMissing() {
	ctx := context.Background()

	_, err := s.storage.Get(ctx, "no-such-key")
	require.Error(s.T(), err)
	assert.ErrorIs(s.T(), err, kv.ErrNotFound)
}

// TestStorage_Remove тестирует удаление слота
func (s *PostgresTestSuite) TestStorage_Remove() {
	ctx := context.Background()

	require.NoError(s.T(), s.storage.Set(ctx, "doomed", "value"))
	require.NoError(s.T(), s.storage.Remove(ctx, "doomed"))

	_, err := s.storage.Get(ctx, "doomed")
	assert.ErrorIs(s.T(), err, kv.ErrNotFound)

	// Повторное удаление — не ошибка
	assert.NoError(s.T(), s.storage.Remove(ctx, "doomed"))
}

// TestStorage_Keys тестирует перечисление ключей по префиксу
func (s *PostgresTestSuite) TestStorage_Keys() {
	ctx := context.Background()

	require.NoError(s.T(), s.storage.Set(ctx, "todo-app-session-aaa", "{}"))
	require.NoError(s.T(), s.storage.Set(ctx, "todo-app-session-bbb", "{}"))
	require.NoError(s.T(), s.storage.Set(ctx, "todo-app-tasks-admin", "[]"))

	keys, err := s.storage.Keys(ctx, "todo-app-session-")
	require.NoError(s.T(), err)
	assert.Len(s.T(), keys, 2)
	assert.ElementsMatch(s.T(), []string{"todo-app-session-aaa", "todo-app-session-bbb"}, keys)

	// Пустой результат для чужого префикса
	keys, err = s.storage.Keys(ctx, "other-prefix-")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), keys)
}

// TestStorage_HealthCheck тестирует проверку здоровья
func (s *PostgresTestSuite) TestStorage_HealthCheck() {
	err := s.storage.HealthCheck(context.Background())
	require.NoError(s.T(), err)
}

// TestStorage_BootstrapIdempotent тестирует повторное подключение к той же базе
func (s *PostgresTestSuite) TestStorage_BootstrapIdempotent() {
	second, err := postgres.New(s.ctx, s.connString)
	require.NoError(s.T(), err)
	defer second.Close()

	require.NoError(s.T(), second.Set(s.ctx, "shared", "value"))

	value, err := s.storage.Get(s.ctx, "shared")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "value", value)
}

// Unit тесты (без базы данных)
func TestStorage_New(t *testing.T) {
	tests := []struct {
		name        string
		connString  string
		expectError bool
	}{
		{
			name:        "invalid connection string",
			connString:  "invalid",
			expectError: true,
		},
		{
			name:        "empty connection string",
			connString:  "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			_, err := postgres.New(ctx, tt.connString)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
