package auth

import (
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"todoTracker/internal/logger"
)

// Credential — запись фиксированного демо-списка пользователей.
// Список инжектится из конфига, ядро напрямую его не читает.
type Credential struct {
	Username     string
	PasswordHash string
}

type Authenticator struct {
	users []Credential
}

func NewAuthenticator(users []Credential) *Authenticator {
	return &Authenticator{
		users: users,
	}
}

// Verify сравнивает пароль с bcrypt-хешем из списка.
// Неизвестный пользователь и неверный пароль неразличимы для вызывающего.
func (a *Authenticator) Verify(username, password string) bool {
	for _, user := range a.users {
		if user.Username != username {
			continue
		}

		err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
		if err != nil {
			logger.Warn("Auth: Неудачная проверка пароля",
				zap.String("user", username))
			return false
		}
		return true
	}

	logger.Warn("Auth: Неизвестный пользователь",
		zap.String("user", username))
	return false
}

// Usernames отдаёт список доступных демо-аккаунтов
func (a *Authenticator) Usernames() []string {
	res := make([]string, 0, len(a.users))
	for _, user := range a.users {
		res = append(res, user.Username)
	}
	return res
}
