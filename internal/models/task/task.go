package task

// json-теги совпадают с форматом хранения: это единственная схема,
// в которой задачи уходят в key-value слот и возвращаются из него
type Task struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Category  Category `json:"category"`
	Priority  Priority `json:"priority"`
	Completed bool     `json:"completed"`
	CreatedAt int64    `json:"createdAt"` // миллисекунды unix-эпохи
}

type Category string
type Priority string

const CategoryHome Category = "Home"
const CategoryWork Category = "Work"
const CategorySchool Category = "School"

const PriorityHigh Priority = "High"
const PriorityMedium Priority = "Medium"
const PriorityLow Priority = "Low"

func Categories() []Category {
	return []Category{CategoryHome, CategoryWork, CategorySchool}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryHome, CategoryWork, CategorySchool:
		return true
	}
	return false
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Order задаёт порядок отображения: High(1) < Medium(2) < Low(3)
func (p Priority) Order() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

func (t *Task) Clone() *Task {
	copied := *t
	return &copied
}
