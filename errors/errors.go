package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrValidation  = fmt.Errorf("validation failed")
	ErrSelfMessage = fmt.Errorf("%w: cannot send a message to yourself", ErrValidation)
	ErrNotFound    = fmt.Errorf("not found")
	ErrStorage     = fmt.Errorf("storage failure")
	ErrNoPeers     = fmt.Errorf("no other users found")
	ErrForbidden   = fmt.Errorf("forbidden")

	ErrUnauthorized       = fmt.Errorf("unauthorized")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("%w: password does not meet complexity rules", ErrValidation)
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// HTTPStatus maps a domain error onto the status code returned by the REST surface.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the error text a client is allowed to see.
// Storage and unknown failures collapse into a generic message.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStorage), errors.Is(err, ErrTokenGeneration):
		return "internal error"
	case HTTPStatus(err) == http.StatusInternalServerError:
		return "internal error"
	default:
		return err.Error()
	}
}
