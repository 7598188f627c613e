package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a classified error carrying an English and an Arabic message.
type AppError struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	MessageAr string `json:"messageAr"`
	Cause     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches another AppError by code and English message so sentinels work with errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code Code, message, messageAr string) error {
	return &AppError{Code: code, Message: message, MessageAr: messageAr}
}

func Wrap(code Code, message, messageAr string, cause error) error {
	return &AppError{Code: code, Message: message, MessageAr: messageAr, Cause: cause}
}

func NotFound(message, messageAr string) error {
	return New(CodeNotFound, message, messageAr)
}

func Forbidden(message, messageAr string) error {
	return New(CodeForbidden, message, messageAr)
}

func BadRequest(message, messageAr string) error {
	return New(CodeBadRequest, message, messageAr)
}

func Unauthenticated(message, messageAr string) error {
	return New(CodeUnauthenticated, message, messageAr)
}

// CodeOf returns the code of the first AppError in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error to the status the API responds with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Body renders the dual-message response body for err.
func Body(err error) map[string]string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != CodeInternal {
		return map[string]string{
			"code":      string(appErr.Code),
			"message":   appErr.Message,
			"messageAr": appErr.MessageAr,
		}
	}
	return map[string]string{
		"code":      string(CodeInternal),
		"message":   "Internal server error",
		"messageAr": "خطأ داخلي في الخادم",
	}
}
