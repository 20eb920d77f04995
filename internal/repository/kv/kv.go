package kv

import (
	"context"
	"errors"
)

// Store — внешний durable key-value ресурс (аналог localStorage браузера).
// Ядро не обращается к нему напрямую, только через адаптер персистентности
// и менеджер сессий.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	HealthCheck(ctx context.Context) error
}

// Lister — опциональная способность бэкенда перечислять ключи по префиксу.
// Нужна только фоновой чистке сессий, поэтому не входит в основной контракт.
type Lister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

var ErrNotFound = errors.New("ключ не найден")
