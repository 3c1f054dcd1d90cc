package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/xhad/de5chat/pkg/leads"
)

// ErrBadRequest indicates a request body that could not be decoded.
type ErrBadRequest struct {
	Message string
	Cause   error
}

func (e *ErrBadRequest) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ErrBadRequest) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var badRequest *ErrBadRequest
	var validation *leads.ValidationError
	switch {
	case errors.As(err, &badRequest), errors.As(err, &validation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
