package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"todoTracker/internal/logger"
	"todoTracker/internal/models/task"
	"todoTracker/internal/repository/kv"
)

// Adapter синхронизирует состояние TaskStore с durable key-value слотом,
// отдельным для каждого пользователя. Ошибки записи глотаются: источником
// истины остаётся память, падение хранилища не должно ронять приложение.
type Adapter struct {
	storage   kv.Store
	keyPrefix string
	now       func() time.Time
}

type Option func(*Adapter)

func WithClock(now func() time.Time) Option {
	if now == nil {
		return nil
	}
	return func(a *Adapter) {
		a.now = now
	}
}

func New(storage kv.Store, keyPrefix string, options ...Option) *Adapter {
	a := &Adapter{
		storage:   storage,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}

	for _, opt := range options {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// KeyFor — детерминированное отображение имени пользователя в ключ слота.
// Разные имена дают разные ключи.
func (a *Adapter) KeyFor(username string) string {
	return a.keyPrefix + username
}

func (a *Adapter) Save(ctx context.Context, tasks []*task.Task, username string) {
	if tasks == nil {
		tasks = []*task.Task{}
	}

	data, err := json.Marshal(tasks)
	if err != nil {
		logger.Error("Persistence: Ошибка сериализации задач", err,
			zap.String("user", username))
		return
	}

	if err := a.storage.Set(ctx, a.KeyFor(username), string(data)); err != nil {
		logger.Error("Persistence: Ошибка записи слота", err,
			zap.String("user", username),
			zap.String("key", a.KeyFor(username)))
	}
}

// Load читает слот пользователя. Отсутствующие, нечитаемые или чужие по схеме
// данные деградируют до пустого списка, битые записи отбрасываются поштучно.
func (a *Adapter) Load(ctx context.Context, username string) []*task.Task {
	raw, err := a.storage.Get(ctx, a.KeyFor(username))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			logger.Error("Persistence: Ошибка чтения слота", err,
				zap.String("user", username))
		}
		return []*task.Task{}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		logger.Warn("Persistence: Слот повреждён, считаем пустым",
			zap.String("user", username),
			zap.Error(err))
		return []*task.Task{}
	}

	nowMillis := a.now().UnixMilli()
	res := []*task.Task{}
	seen := make(map[string]bool)

	for ind, entry := range entries {
		decoded, err := decodeEntry(entry, nowMillis)
		if err != nil {
			logger.Warn("Persistence: Запись отброшена",
				zap.String("user", username),
				zap.Int("index", ind),
				zap.Error(err))
			continue
		}

		if seen[decoded.ID] {
			logger.Warn("Persistence: Дубликат id, запись отброшена",
				zap.String("user", username),
				zap.String("task_id", decoded.ID))
			continue
		}

		seen[decoded.ID] = true
		res = append(res, decoded)
	}

	return res
}

// сырой формат слота: указатели отличают отсутствующее поле от нулевого
type slotEntry struct {
	ID        *string `json:"id"`
	Text      *string `json:"text"`
	Category  *string `json:"category"`
	Priority  *string `json:"priority"`
	Completed *bool   `json:"completed"`
	CreatedAt *int64  `json:"createdAt"`
}

// decodeEntry — версионированный разбор одной записи: строгая проверка
// обязательных полей, затем дозаполнение опциональных. Отсутствующие
// completed и createdAt — наследие старой схемы, им подставляются значения
// по умолчанию (false и текущее время).
func decodeEntry(raw json.RawMessage, nowMillis int64) (*task.Task, error) {
	var entry slotEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("разбор записи: %w", err)
	}

	if entry.ID == nil || *entry.ID == "" {
		return nil, errors.New("отсутствует поле id")
	}
	if entry.Text == nil {
		return nil, errors.New("отсутствует поле text")
	}
	if entry.Category == nil || !task.Category(*entry.Category).Valid() {
		return nil, errors.New("неизвестная категория")
	}
	if entry.Priority == nil || !task.Priority(*entry.Priority).Valid() {
		return nil, errors.New("неизвестный приоритет")
	}

	decoded := &task.Task{
		ID:        *entry.ID,
		Text:      *entry.Text,
		Category:  task.Category(*entry.Category),
		Priority:  task.Priority(*entry.Priority),
		Completed: false,
		CreatedAt: nowMillis,
	}

	if entry.Completed != nil {
		decoded.Completed = *entry.Completed
	}
	if entry.CreatedAt != nil {
		decoded.CreatedAt = *entry.CreatedAt
	}

	return decoded, nil
}
