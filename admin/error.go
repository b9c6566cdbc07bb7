package admin

import (
	"encoding/json"
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

var statusTypeMap = map[int]string{
	400: "https://tools.ietf.org/html/rfc9110#section-15.5.1",  // Bad Request
	401: "https://tools.ietf.org/html/rfc9110#section-15.5.2",  // Unauthorized
	403: "https://tools.ietf.org/html/rfc9110#section-15.5.3",  // Forbidden
	404: "https://tools.ietf.org/html/rfc9110#section-15.5.5",  // Not Found
	409: "https://tools.ietf.org/html/rfc9110#section-15.5.10", // Conflict
	500: "https://tools.ietf.org/html/rfc9110#section-15.6.1",  // Internal Server Error
}

func serveJSON(obj any, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Printf("error encoding response: %s", err)
	}
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

// error maps domain errors onto HTTP responses.
func (a *Admin) error(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		apierror(w, "not found", http.StatusNotFound)
	case errors.Is(err, model.ErrAlreadyExists):
		apierror(w, "already exists", http.StatusConflict)
	default:
		log.Printf("internal error: %s", err)
		apierror(w, "internal error", http.StatusInternalServerError)
	}
}
