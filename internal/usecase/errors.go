package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// 失敗の種類。HTTPError.Kind に入り errors.Is で判定できる
var (
	ErrValidation         = errors.New("validation error")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrSignatureMismatch  = errors.New("signature mismatch")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrStorage            = errors.New("storage error")
)

type HTTPError struct {
	Status  int
	Message string
	Kind    error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Kind
}

// Kindはステータスから決める
func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		Kind:    kindForStatus(status),
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadGateway:
		return ErrGatewayUnavailable
	default:
		return ErrStorage
	}
}

func errValidation(message string) error {
	return NewHTTPError(http.StatusBadRequest, message)
}

func errUnauthorized() error {
	return NewHTTPError(http.StatusUnauthorized, "unauthorized")
}

func errInvalidSignature() error {
	return &HTTPError{Status: http.StatusBadRequest, Message: "Invalid signature", Kind: ErrSignatureMismatch}
}

func errNotFound() error {
	return NewHTTPError(http.StatusNotFound, "not found")
}

func errConflict(message string) error {
	return NewHTTPError(http.StatusConflict, message)
}

func errGatewayUnavailable() error {
	return NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")
}

func errStorage() error {
	return NewHTTPError(http.StatusInternalServerError, "internal error")
}
