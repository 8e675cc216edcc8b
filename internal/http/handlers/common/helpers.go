package common

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/agent-marketplace/internal/dto"
	"github.com/ignatzorin/agent-marketplace/internal/http/middleware"
	"github.com/ignatzorin/agent-marketplace/internal/pkg/apperror"
)

var (
	// ErrUserNotInContext возвращается, когда auth middleware не положил пользователя в контекст.
	ErrUserNotInContext = errors.New("пользователь не найден в контексте")
)

// CurrentUserID извлекает идентификатор пользователя из контекста Gin.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, ErrUserNotInContext
	}
	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrUserNotInContext
	}
	return userID, nil
}

// CurrentUserRole извлекает роль пользователя из контекста Gin.
func CurrentUserRole(c *gin.Context) (string, error) {
	raw, exists := c.Get(middleware.ContextRoleKey)
	if !exists {
		return "", ErrUserNotInContext
	}
	role, ok := raw.(string)
	if !ok {
		return "", ErrUserNotInContext
	}
	return role, nil
}

// ParseIDParam разбирает числовой идентификатор из URL параметра.
func ParseIDParam(c *gin.Context, paramName string) (int64, error) {
	param := c.Param(paramName)
	if param == "" {
		return 0, fmt.Errorf("параметр %s отсутствует", paramName)
	}
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("параметр %s должен быть положительным числом", paramName)
	}
	return id, nil
}

// ParseUUIDParam разбирает UUID из URL параметра.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(c.Param(paramName))
	if err != nil {
		return uuid.Nil, fmt.Errorf("параметр %s должен быть UUID", paramName)
	}
	return parsed, nil
}

// RespondError отправляет стандартный ответ с ошибкой.
func RespondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, dto.ErrorResponse{Error: message})
}

// RespondAppError переводит ошибку сервисного слоя в HTTP ответ.
// Неизвестные ошибки маскируются и уходят в централизованный обработчик.
func RespondAppError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, dto.ErrorResponse{Error: appErr.Message, Code: string(appErr.Code)})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "внутренняя ошибка сервера"})
}

// RespondSuccess отправляет стандартный ответ об успехе.
func RespondSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, dto.SuccessResponse{Message: message, Data: data})
}

// RespondUnauthorized отправляет 401.
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "требуется авторизация"
	}
	RespondError(c, http.StatusUnauthorized, message)
}

// RespondBadRequest отправляет 400.
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "некорректный запрос"
	}
	RespondError(c, http.StatusBadRequest, message)
}

// ParseIntQuery читает целочисленный query параметр с дефолтом.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// ParseFloatQuery читает необязательный float query параметр.
func ParseFloatQuery(c *gin.Context, key string) *float64 {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return &parsed
		}
	}
	return nil
}

// GetPagination извлекает limit и offset из query параметров.
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", 20)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return
}
