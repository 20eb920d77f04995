package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"todoTracker/internal/logger"
	"todoTracker/internal/repository/kv"
)

const SessionKeyPrefix = "todo-app-session-"

var ErrNoSession = errors.New("сессия не найдена")
var ErrSessionExpired = errors.New("сессия истекла")

// Session хранится в key-value слоте так же, как браузер хранил её
// в localStorage: имя пользователя и время входа.
type Session struct {
	Username  string `json:"username"`
	LoginTime int64  `json:"loginTime"` // миллисекунды unix-эпохи
}

// SessionManager — коллаборатор идентичности: выдаёт токены при входе,
// отвечает на вопрос "кто сейчас пользователь" и проверяет свежесть сессии.
type SessionManager struct {
	storage kv.Store
	ttl     time.Duration
	now     func() time.Time
}

type SessionOption func(*SessionManager)

func WithClock(now func() time.Time) SessionOption {
	if now == nil {
		return nil
	}
	return func(m *SessionManager) {
		m.now = now
	}
}

func NewSessionManager(storage kv.Store, ttl time.Duration, options ...SessionOption) *SessionManager {
	m := &SessionManager{
		storage: storage,
		ttl:     ttl,
		now:     time.Now,
	}

	for _, opt := range options {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *SessionManager) Create(ctx context.Context, username string) (string, error) {
	token := uuid.NewString()
	session := Session{
		Username:  username,
		LoginTime: m.now().UnixMilli(),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("сериализация сессии: %w", err)
	}

	if err := m.storage.Set(ctx, SessionKeyPrefix+token, string(data)); err != nil {
		return "", fmt.Errorf("сохранение сессии: %w", err)
	}

	logger.Info("Auth: Сессия создана", zap.String("user", username))
	return token, nil
}

// Current возвращает имя пользователя по токену. Истёкшая сессия
// удаляется из хранилища и считается отсутствующей.
func (m *SessionManager) Current(ctx context.Context, token string) (string, error) {
	raw, err := m.storage.Get(ctx, SessionKeyPrefix+token)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("чтение сессии: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		logger.Warn("Auth: Повреждённая сессия", zap.Error(err))
		m.storage.Remove(ctx, SessionKeyPrefix+token)
		return "", ErrNoSession
	}

	age := m.now().UnixMilli() - session.LoginTime
	if age > m.ttl.Milliseconds() {
		logger.Info("Auth: Сессия истекла", zap.String("user", session.Username))
		m.storage.Remove(ctx, SessionKeyPrefix+token)
		return "", ErrSessionExpired
	}

	return session.Username, nil
}

func (m *SessionManager) Remove(ctx context.Context, token string) error {
	if err := m.storage.Remove(ctx, SessionKeyPrefix+token); err != nil {
		return fmt.Errorf("удаление сессии: %w", err)
	}
	return nil
}

// Expired сообщает, истекла ли сессия по сырому содержимому слота.
// Используется фоновой чисткой, которая видит только ключи и значения.
func (m *SessionManager) Expired(raw string) bool {
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return true
	}
	return m.now().UnixMilli()-session.LoginTime > m.ttl.Milliseconds()
}
