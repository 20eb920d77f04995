package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"todoTracker/internal/handlers/dto"
	"todoTracker/internal/logger"
	"todoTracker/internal/middleware"
)

func (s *TaskHandler) Login(w http.ResponseWriter, r *http.Request) {
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

	var request dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {

		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "неверное тело запроса:"+err.Error())
		return
	}

	if request.Username == "" || request.Password == "" {

		logger.Warn("HTTP: Ошибка валидации",
			zap.String("field", "username/password"),
			zap.String("error", "empty_field"),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "имя пользователя и пароль обязательны")
		return
	}

	logger.Info("HTTP: Вызов сервиса входа")
	token, err := s.TaskService.Login(r.Context(), request.Username, request.Password)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}

		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "login"),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Пользователь вошёл",
		zap.String("user", request.Username),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK,
		toPayload("token", token),
		toPayload("username", request.Username))
}

func (s *TaskHandler) Logout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	token := middleware.GetToken(r.Context())

	if err := s.TaskService.Logout(r.Context(), token); err != nil {

		logger.Error("HTTP: Ошибка Service", err,
			zap.String("operation", "logout"),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Пользователь вышел",
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusNoContent))

	w.WriteHeader(http.StatusNoContent)
}

// Users отдаёт список демо-аккаунтов для страницы входа
func (s *TaskHandler) Users(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	responseWithJSON(w, http.StatusOK, toPayload("users", s.TaskService.Usernames()))
}
