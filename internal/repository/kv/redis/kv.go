package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"todoTracker/internal/logger"
	"todoTracker/internal/repository/kv"
)

type Storage struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*Storage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к Redis")
	return &Storage{client: client}, nil
}

func (s *Storage) Close() {
	s.client.Close()
	logger.Info("Repository: Закрытие соединения Redis")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", kv.ErrNotFound
		}
		return "", fmt.Errorf("чтение ключа: %w", err)
	}
	return value, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("запись ключа: %w", err)
	}
	return nil
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("удаление ключа: %w", err)
	}
	return nil
}

func (s *Storage) Keys(ctx context.Context, prefix string) ([]string, error) {
	res := []string{}

	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		res = append(res, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("перечисление ключей: %w", err)
	}
	return res, nil
}
