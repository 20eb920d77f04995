package inmemory

import (
	"context"
	"strings"
	"sync"

	"todoTracker/internal/logger"
	"todoTracker/internal/repository/kv"
)

type Storage struct {
	storage map[string]string
	mtx     *sync.RWMutex
}

func New() *Storage {
	return &Storage{
		storage: make(map[string]string),
		mtx:     &sync.RWMutex{},
	}
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	logger.Info("Repository: Соединение стабильно")
	return nil
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	value, ok := s.storage[key]
	if !ok {
		return "", kv.ErrNotFound
	}
	return value, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.storage[key] = value
	return nil
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	delete(s.storage, key)
	return nil
}

func (s *Storage) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []string{}
	for key := range s.storage {
		if strings.HasPrefix(key, prefix) {
			res = append(res, key)
		}
	}
	return res, nil
}
