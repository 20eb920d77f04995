package dto

import (
	"todoTracker/internal/models/task"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type CreateTaskRequest struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	Priority string `json:"priority"`
}

type UpdateTaskRequest struct {
	Text string `json:"text"`
}

type TaskResponse struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Category  string `json:"category"`
	Priority  string `json:"priority"`
	Completed bool   `json:"completed"`
	CreatedAt int64  `json:"createdAt"`
}

func FromTask(t *task.Task) TaskResponse {
	return TaskResponse{
		ID:        t.ID,
		Text:      t.Text,
		Category:  string(t.Category),
		Priority:  string(t.Priority),
		Completed: t.Completed,
		CreatedAt: t.CreatedAt,
	}
}

func FromTaskList(tasks []*task.Task) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t)
	}
	return result
}
