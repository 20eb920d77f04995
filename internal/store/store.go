package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"todoTracker/internal/models/task"
)

// TaskStore держит авторитетный список задач одного пользователя.
// Все отказы — тихие no-op: вызывающая сторона валидирует сама,
// здесь проверки повторяются как последний рубеж против кривого состояния.
type TaskStore struct {
	mtx   *sync.RWMutex
	tasks []*task.Task // порядок вставки
	index map[string]*task.Task
	newID IDGenerator
	now   func() time.Time
}

// IDGenerator выдаёт следующий идентификатор задачи.
// Инжектится, чтобы тесты могли подставить детерминированные id.
type IDGenerator func() string

type Option func(*TaskStore)

func WithIDGenerator(gen IDGenerator) Option {
	if gen == nil {
		return nil
	}
	return func(s *TaskStore) {
		s.newID = gen
	}
}

func WithClock(now func() time.Time) Option {
	if now == nil {
		return nil
	}
	return func(s *TaskStore) {
		s.now = now
	}
}

func New(options ...Option) *TaskStore {
	s := &TaskStore{
		mtx:   &sync.RWMutex{},
		tasks: []*task.Task{},
		index: make(map[string]*task.Task),
		newID: uuid.NewString,
		now:   time.Now,
	}

	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Add создаёт задачу с новым уникальным id, completed=false и createdAt=now.
// Пустой после обрезки текст или значение вне перечислений — no-op, вернётся nil.
func (s *TaskStore) Add(text string, category task.Category, priority task.Priority) *task.Task {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || !category.Valid() || !priority.Valid() {
		return nil
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	id := s.newID()
	for _, exists := s.index[id]; exists; _, exists = s.index[id] {
		id = s.newID()
	}

	taskToAdd := &task.Task{
		ID:        id,
		Text:      trimmed,
		Category:  category,
		Priority:  priority,
		Completed: false,
		CreatedAt: s.now().UnixMilli(),
	}

	s.tasks = append(s.tasks, taskToAdd)
	s.index[id] = taskToAdd
	return taskToAdd.Clone()
}

// Edit меняет только текст задачи, остальные поля не трогает.
func (s *TaskStore) Edit(id, newText string) bool {
	trimmed := strings.TrimSpace(newText)
	if trimmed == "" {
		return false
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	taskToEdit, exists := s.index[id]
	if !exists {
		return false
	}

	taskToEdit.Text = trimmed
	return true
}

// Delete идемпотентно: неизвестный id — не ошибка
func (s *TaskStore) Delete(id string) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, exists := s.index[id]; !exists {
		return false
	}

	delete(s.index, id)
	for ind, val := range s.tasks {
		if val.ID == id {
			s.tasks = append(s.tasks[:ind], s.tasks[ind+1:]...)
			break
		}
	}
	return true
}

// ToggleComplete — инволюция: два вызова подряд возвращают исходное значение
func (s *TaskStore) ToggleComplete(id string) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	taskToToggle, exists := s.index[id]
	if !exists {
		return false
	}

	taskToToggle.Completed = !taskToToggle.Completed
	return true
}

// ByCategory возвращает задачи категории в порядке отображения:
// сначала незавершённые, внутри — по приоритету High < Medium < Low,
// при равенстве ключей сохраняется порядок вставки (стабильная сортировка).
// Это чистое представление, хранимый порядок не меняется.
func (s *TaskStore) ByCategory(category task.Category) []*task.Task {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*task.Task{}
	for _, t := range s.tasks {
		if t.Category == category {
			res = append(res, t.Clone())
		}
	}

	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Completed != res[j].Completed {
			return !res[i].Completed
		}
		return res[i].Priority.Order() < res[j].Priority.Order()
	})

	return res
}

// All отдаёт снимок всех задач в порядке вставки
func (s *TaskStore) All() []*task.Task {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := make([]*task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		res = append(res, t.Clone())
	}
	return res
}

// Replace замещает состояние целиком (используется при загрузке слота).
// Дубликаты id отбрасываются, первая запись выигрывает.
func (s *TaskStore) Replace(tasks []*task.Task) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.tasks = []*task.Task{}
	s.index = make(map[string]*task.Task)

	for _, t := range tasks {
		if t == nil {
			continue
		}
		if _, exists := s.index[t.ID]; exists {
			continue
		}
		copied := t.Clone()
		s.tasks = append(s.tasks, copied)
		s.index[copied.ID] = copied
	}
}

// Clear сбрасывает состояние при потере идентичности (logout)
func (s *TaskStore) Clear() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.tasks = []*task.Task{}
	s.index = make(map[string]*task.Task)
}

func (s *TaskStore) Len() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.tasks)
}
