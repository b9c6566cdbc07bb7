package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/audiovook/audiovook-server/database/model"
)

// HTTPError represents a structured HTTP error response.
type HTTPError struct {
	Status int    `json:"status"`
	Type   string `json:"type,omitempty"`
	Title  string `json:"title,omitempty"`
}

// statusTypeMap maps HTTP status codes to RFC 9110 types.
var statusTypeMap = map[int]string{
	400: "https://tools.ietf.org/html/rfc9110#section-15.5.1",  // Bad Request
	401: "https://tools.ietf.org/html/rfc9110#section-15.5.2",  // Unauthorized
	403: "https://tools.ietf.org/html/rfc9110#section-15.5.3",  // Forbidden
	404: "https://tools.ietf.org/html/rfc9110#section-15.5.5",  // Not Found
	405: "https://tools.ietf.org/html/rfc9110#section-15.5.6",  // Method Not Allowed
	409: "https://tools.ietf.org/html/rfc9110#section-15.5.10", // Conflict
	500: "https://tools.ietf.org/html/rfc9110#section-15.6.1",  // Internal Server Error
}

// apierror writes a structured error response.
func apierror(w http.ResponseWriter, msg string, status int) {
	response := HTTPError{
		Status: status,
		Title:  msg,
	}
	if typeUrl, ok := statusTypeMap[status]; ok {
		response.Type = typeUrl
	}
	w.WriteHeader(status)
	serveJSON(response, w)
}

// error maps domain errors onto HTTP responses. Unknown errors surface
// as an opaque 500; the details stay in the log.
func (a *API) error(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		apierror(w, "not found", http.StatusNotFound)
	case errors.Is(err, model.ErrAlreadyExists):
		apierror(w, "already exists", http.StatusConflict)
	case errors.Is(err, model.ErrInvalidPassword):
		apierror(w, "invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, model.ErrAlreadyClaimed):
		apierror(w, "card already claimed", http.StatusConflict)
	case errors.Is(err, model.ErrInvalidState):
		apierror(w, "card not in required state", http.StatusConflict)
	case errors.Is(err, model.ErrForbidden):
		apierror(w, "unauthorized", http.StatusForbidden)
	case errors.Is(err, model.ErrInvalidBorrower):
		apierror(w, "invalid borrower", http.StatusBadRequest)
	case errors.Is(err, model.ErrSessionConflict):
		apierror(w, "active session exists", http.StatusConflict)
	default:
		log.Printf("internal error: %s", err)
		apierror(w, "internal error", http.StatusInternalServerError)
	}
}
