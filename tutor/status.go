package tutor

import (
	"errors"
	"net/http"

	"github.com/hupe1980/tutormesh/core"
)

// HTTPStatus maps an operation error to the HTTP status a transport layer
// should answer with. A nil error maps to 200.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidMode), errors.Is(err, core.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUpstream):
		return http.StatusBadGateway
	default:
		// ErrNoAgentsAvailable and ErrSelectedAgentNotFound are deployment
		// problems, not caller mistakes.
		return http.StatusInternalServerError
	}
}
