package service

import "fmt"

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func NewValidationError(field, reason string) *BusinessError {
	return &BusinessError{
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("Неверное значение поля '%s': %s", field, reason),
		Details: map[string]any{
			"field":  field,
			"reason": reason,
		},
	}
}

func NewUnauthorized() *BusinessError {
	return &BusinessError{
		Code:    "UNAUTHORIZED",
		Message: "Неверное имя пользователя или пароль",
		Details: map[string]any{},
	}
}

func NewNoSession() *BusinessError {
	return &BusinessError{
		Code:    "NO_SESSION",
		Message: "Активная сессия отсутствует или истекла",
		Details: map[string]any{},
	}
}
