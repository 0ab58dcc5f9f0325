package common

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error from the taxonomy to a status code and a message
// safe to show to the user.
func HTTPStatus(err error) (int, string) {
	var vErr *ValidationError
	var gErr *GenerationError
	// GenerationError goes first: it may wrap a ValidationError about the
	// model's reply, which is not the client's fault.
	switch {
	case errors.As(err, &gErr):
		return http.StatusBadGateway, "Flashcard generation failed"
	case errors.As(err, &vErr):
		return http.StatusBadRequest, vErr.Error()
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "Not found"
	default:
		return http.StatusInternalServerError, "Something went wrong"
	}
}
