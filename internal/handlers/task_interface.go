package handlers

import (
	"context"

	"todoTracker/internal/models/task"
	"todoTracker/internal/store"
)

type Service interface {
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (string, error)
	Usernames() []string

	AddTask(ctx context.Context, username, text string, category task.Category, priority task.Priority) (*task.Task, error)
	EditTask(ctx context.Context, username, id, newText string) error
	DeleteTask(ctx context.Context, username, id string) error
	ToggleTask(ctx context.Context, username, id string) error
	TasksByCategory(ctx context.Context, username string, category task.Category) ([]*task.Task, error)
	AllTasks(ctx context.Context, username string) []*task.Task
	Stats(ctx context.Context, username string, category *task.Category) (store.Stats, error)

	HealthCheck(ctx context.Context) error
}
