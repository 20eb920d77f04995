package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"todoTracker/internal/logger"
	"todoTracker/internal/repository/kv"
)

type Storage struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	if err := bootstrap(ctx, pool); err != nil {
		logger.Error("Repository: Ошибка создания схемы", err)
		return nil, fmt.Errorf("создание схемы: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool}, nil
}

// единственная таблица-слот, схема создаётся при подключении
func bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	query := `CREATE TABLE IF NOT EXISTS kv_slots (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`

	_, err := pool.Exec(ctx, query)
	return err
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	err := s.pool.Ping(ctx)
	if err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()

	query := `SELECT value FROM kv_slots WHERE key = $1`

	var value string
	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", kv.ErrNotFound
		}
		logger.Error("Repository: Чтение слота", err, zap.Duration("ms", time.Since(start)))
		return "", fmt.Errorf("чтение слота: %w", err)
	}

	s.warnIfSlow(start, "Get")
	return value, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	start := time.Now()

	query := `INSERT INTO kv_slots (key, value, updated_at)
				VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE
				SET value = EXCLUDED.value,
				updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query, key, value)
	if err != nil {
		logger.Error("Repository: Запись слота", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("запись слота: %w", err)
	}

	s.warnIfSlow(start, "Set")
	return nil
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	start := time.Now()

	query := `DELETE FROM kv_slots WHERE key = $1`

	_, err := s.pool.Exec(ctx, query, key)
	if err != nil {
		logger.Error("Repository: Удаление слота", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("удаление слота: %w", err)
	}

	s.warnIfSlow(start, "Remove")
	return nil
}

func (s *Storage) Keys(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT key FROM kv_slots WHERE key LIKE $1 || '%'`

	rows, err := s.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("перечисление слотов: %w", err)
	}
	defer rows.Close()

	res := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("чтение ключа: %w", err)
		}
		res = append(res, key)
	}
	return res, rows.Err()
}

func (s *Storage) warnIfSlow(start time.Time, operation string) {
	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция",
			zap.String("operation", operation),
			zap.Duration("ms", time.Since(start)))
	}
}
