package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"todoTracker/internal/auth"
	"todoTracker/internal/logger"
	"todoTracker/internal/repository/kv"
)

// SessionSweeper периодически выметает истёкшие сессии из хранилища.
// Задачи пользователей не трогаются: они не истекают никогда.
type SessionSweeper struct {
	storage  kv.Store
	sessions *auth.SessionManager
	interval time.Duration
}

func NewSessionSweeper(storage kv.Store, sessions *auth.SessionManager, interval *time.Duration) *SessionSweeper {
	var intervalToSet time.Duration
	if interval == nil {
		intervalToSet = 10 * time.Minute
	} else {
		intervalToSet = *interval
	}

	return &SessionSweeper{
		storage:  storage,
		sessions: sessions,
		interval: intervalToSet,
	}
}

func (w *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Info("Worker: Фоновая чистка сессий", zap.Time("started_at", time.Now()))
			w.Sweep(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Фоновая чистка останавливается")
			return
		}
	}
}

// Sweep выполняет один проход. Бэкенд без перечисления ключей пропускается:
// его сессии истекают лениво при проверке токена.
func (w *SessionSweeper) Sweep(ctx context.Context) {
	start := time.Now()

	lister, ok := w.storage.(kv.Lister)
	if !ok {
		return
	}

	keys, err := lister.Keys(ctx, auth.SessionKeyPrefix)
	if err != nil {
		logger.Error("Worker: Ошибка перечисления сессий", err)
		return
	}

	removed := 0
	for _, key := range keys {
		raw, err := w.storage.Get(ctx, key)
		if err != nil {
			continue
		}

		if w.sessions.Expired(raw) {
			if err := w.storage.Remove(ctx, key); err != nil {
				logger.Error("Worker: Ошибка удаления сессии", err, zap.String("key", key))
				continue
			}
			removed++
		}
	}

	logger.Info("Worker: Чистка сессий завершена",
		zap.Int("checked", len(keys)),
		zap.Int("removed", removed),
		zap.Duration("ms", time.Since(start)))
}
