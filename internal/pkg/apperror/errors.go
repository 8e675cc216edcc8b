package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeForbidden
}

func IsConflict(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeConflict
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

// Типизированные исходы операций маркетплейса. Каждый из них — ожидаемый
// результат нарушенного предусловия: вызывающая сторона может исправить
// данные и повторить запрос.
var (
	ErrUnauthorized      = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrNotAuthorized     = New(ErrCodeForbidden, "операция недоступна этому пользователю")
	ErrInvalidStatus     = New(ErrCodeConflict, "недопустимый статус для этой операции")
	ErrJobNotFound       = New(ErrCodeNotFound, "задание не найдено")
	ErrBidNotFound       = New(ErrCodeNotFound, "ставка не найдена")
	ErrMilestoneNotFound = New(ErrCodeNotFound, "этап не найден")
	ErrDisputeNotFound   = New(ErrCodeNotFound, "спор не найден")
	ErrEscrowNotFound    = New(ErrCodeNotFound, "escrow не найден")
	ErrMessageNotFound   = New(ErrCodeNotFound, "сообщение не найдено")
	ErrUserNotFound      = New(ErrCodeNotFound, "пользователь не найден")

	ErrAgentNotRegistered     = New(ErrCodeForbidden, "исполнитель не зарегистрирован")
	ErrAgentAlreadyRegistered = New(ErrCodeConflict, "исполнитель уже зарегистрирован")
	ErrInvalidRating          = New(ErrCodeValidation, "рейтинг должен быть от 1 до 5")
	ErrAlreadyRated           = New(ErrCodeConflict, "отзыв на это задание уже оставлен")
	ErrInvalidAmount          = New(ErrCodeValidation, "сумма ставки должна быть больше нуля")

	ErrInvalidMilestonePercentages = New(ErrCodeValidation, "сумма процентов этапов должна равняться 100")
	ErrCannotBidOwnJob             = New(ErrCodeForbidden, "нельзя ставить на собственное задание")
	ErrAlreadyBid                  = New(ErrCodeConflict, "у вас уже есть активная ставка на это задание")
	ErrDisputeAlreadyOpen          = New(ErrCodeConflict, "по этому заданию уже открыт спор")
	ErrDeadlinePassed              = New(ErrCodeConflict, "срок приёма ставок истёк")

	ErrInvalidCredentials = New(ErrCodeUnauthorized, "неверные учетные данные")
)
