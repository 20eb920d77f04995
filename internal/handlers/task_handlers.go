package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"todoTracker/internal/handlers/dto"
	"todoTracker/internal/logger"
	"todoTracker/internal/middleware"
	"todoTracker/internal/models/task"
)

type TaskHandler struct {
	TaskService Service
}

func NewTaskHandler(taskService Service) TaskHandler {
	return TaskHandler{
		TaskService: taskService,
	}
}

// GetTasks отдаёт задачи пользователя. С параметром ?category= — одну
// категорию в порядке отображения, без него — все задачи в порядке вставки.
func (s *TaskHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	username := middleware.GetUsername(r.Context())
	categoryParam := r.URL.Query().Get("category")

	if categoryParam == "" {
		tasks := s.TaskService.AllTasks(r.Context(), username)

		logger.Info("HTTP_OUT: Задачи получены",
			zap.Int("count", len(tasks)),
			zap.Duration("ms", time.Since(start)),
			zap.Int("http_status", http.StatusOK))

		responseWithJSON(w, http.StatusOK, toPayload("tasks", dto.FromTaskList(tasks)))
		return
	}

	tasks, err := s.TaskService.TasksByCategory(r.Context(), username, task.Category(categoryParam))
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}

		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "get_tasks"),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Задачи получены",
		zap.String("category", categoryParam),
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("tasks", dto.FromTaskList(tasks)))
}

// GetStats считает статистику завершённости: глобальную или по категории
func (s *TaskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	username := middleware.GetUsername(r.Context())

	var category *task.Category
	if categoryParam := r.URL.Query().Get("category"); categoryParam != "" {
		c := task.Category(categoryParam)
		category = &c
	}

	stats, err := s.TaskService.Stats(r.Context(), username, category)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}

		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "get_stats"),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Статистика получена",
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("stats", stats))
}

func (s *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if !checkContentType(r, "application/json") {

		logger.Warn("HTTP: Неверный тип контента",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
		return
	}

	var request dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {

		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "неверное тело запроса:"+err.Error())
		return
	}

	username := middleware.GetUsername(r.Context())

	logger.Info("HTTP: Вызов сервиса создания задач")
	created, err := s.TaskService.AddTask(r.Context(), username, request.Text,
		task.Category(request.Category), task.Priority(request.Priority))
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}

		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "create_task"),
			zap.String("client_ip", r.RemoteAddr),
			zap.Duration("ms", time.Since(start)))

		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.String("task_id", created.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, toPayload("task", dto.FromTask(created)))
}

func (s *TaskHandler) UpdateTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id := chi.URLParam(r, "id")
	if id == "" {

		logger.Warn("HTTP: Неверное значение id",
			zap.String("error", "empty id"),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "id не может быть пустым")
		return
	}

	var request dto.UpdateTaskRequest

	decoder := json.NewDecoder(r.Body)
	defer r.Body.Close()

	if err := decoder.Decode(&request); err != nil {

		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "неверно переданы параметры обновления:"+err.Error())
		return
	}

	username := middleware.GetUsername(r.Context())

	logger.Info("HTTP: запрос к сервису обновления данных")
	if err := s.TaskService.EditTask(r.Context(), username, id, request.Text); err != nil {
		if handleBusinessError(w, err) {
			return
		}

		logger.Error("HTTP: ошибка в Service", err,
			zap.String("operation", "update_task"),
			zap.String("client_addr", r.RemoteAddr))

		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Задача обновлена",
		zap.String("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("id", id))
}

func (s *TaskHandler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id := chi.URLParam(r, "id")
	if id == "" {

		logger.Warn("HTTP: Неверное значение id",
			zap.String("error", "empty id"),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "id не может быть пустым")
		return
	}

	username := middleware.GetUsername(r.Context())

	logger.Info("HTTP: Вызов сервиса переключения задачи")
	if err := s.TaskService.ToggleTask(r.Context(), username, id); err != nil {
		if handleBusinessError(w, err) {
			return
		}

		logger.Error("HTTP: ошибка в Service", err,
			zap.String("operation", "toggle_task"),
			zap.String("client_addr", r.RemoteAddr))

		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Задача переключена",
		zap.String("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("id", id))
}

func (s *TaskHandler) DeleteTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id := chi.URLParam(r, "id")
	if id == "" {

		logger.Warn("HTTP: Неверное значение id",
			zap.String("error", "empty id"),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "id не может быть пустым")
		return
	}

	username := middleware.GetUsername(r.Context())

	logger.Info("HTTP: Обращение к сервису для удаления задачи")
	if err := s.TaskService.DeleteTask(r.Context(), username, id); err != nil {
		if handleBusinessError(w, err) {
			return
		}

		logger.Error("HTTP: ошибка в Service", err,
			zap.String("operation", "delete_task"),
			zap.String("client_addr", r.RemoteAddr))

		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Задача удалена",
		zap.String("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusNoContent))

	w.WriteHeader(http.StatusNoContent)
}

func (s *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := s.TaskService.HealthCheck(r.Context()); err != nil {
		responseWithError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	healthCheck(w)
}
