package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/audiovook/audiovook-server/token"
)

type contextKey int

const contextTokenClaims contextKey = iota

// POST /api/v1/register
//
// registerHandler creates a new user account.
func (a *API) registerHandler(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		apierror(w, "invalid request", http.StatusBadRequest)
		return
	}
	if request.Email == "" || request.Password == "" {
		apierror(w, "email and password required", http.StatusBadRequest)
		return
	}

	user, err := a.repo.CreateUser(r.Context(), request.Email, request.Password)
	if err != nil {
		a.error(w, err)
		return
	}

	serveJSON(map[string]string{
		"id":    user.ID,
		"email": user.Email,
	}, w)
}

// POST /api/v1/login
//
// loginHandler validates credentials and returns a bearer token.
func (a *API) loginHandler(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		apierror(w, "invalid request", http.StatusBadRequest)
		return
	}

	user, err := a.repo.ValidateUser(r.Context(), request.Email, request.Password)
	if err != nil {
		apierror(w, "invalid email or password", http.StatusUnauthorized)
		return
	}

	bearer, err := token.Generate(a.tokenSecret, user.ID, user.Email)
	if err != nil {
		log.Printf("failed to generate token: %s", err)
		apierror(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	serveJSON(map[string]string{
		"access_token": bearer,
		"token_type":   "bearer",
	}, w)
}

// authmiddleware validates the Authorization bearer token and stores the
// claims in the request context.
func (a *API) authmiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			apierror(w, "no token provided", http.StatusUnauthorized)
			return
		}

		claims, err := token.Validate(a.tokenSecret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			apierror(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), contextTokenClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requesterID returns the authenticated user id from the request context
// populated by authmiddleware, or empty.
func requesterID(r *http.Request) string {
	claims, ok := r.Context().Value(contextTokenClaims).(*token.Claims)
	if !ok {
		return ""
	}
	return claims.Subject
}
