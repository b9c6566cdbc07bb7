// Package admin is the back-office HTTP surface: title management, card
// provisioning, retail stores and user administration. All endpoints
// require a bearer token of a user with admin rights.
package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/audiovook/audiovook-server/database"
	"github.com/audiovook/audiovook-server/search"
	"github.com/audiovook/audiovook-server/token"
)

type Options struct {
	Repo   *database.Repository
	Search *search.Search
	// TokenSecret validates login bearer tokens.
	TokenSecret string
	// CoversDir is where uploaded cover art is stored.
	CoversDir string
}

// Admin is the admin HTTP surface under /api/v1/admin.
type Admin struct {
	repo        *database.Repository
	search      *search.Search
	tokenSecret string
	coversDir   string
}

func New(o *Options) *Admin {
	return &Admin{
		repo:        o.Repo,
		search:      o.Search,
		tokenSecret: o.TokenSecret,
		coversDir:   o.CoversDir,
	}
}

func (a *Admin) RegisterHandlers(s *mux.Router) {
	r := s.PathPrefix("/api/v1/admin").Subrouter()

	middleware := func(handler http.HandlerFunc) http.Handler {
		return handlers.CompressHandler(a.adminmiddleware(http.HandlerFunc(handler)))
	}

	r.Handle("/titles", middleware(a.titleListHandler)).Methods("GET")
	r.Handle("/titles", middleware(a.titleCreateHandler)).Methods("POST")
	r.Handle("/titles/{id}", middleware(a.titleGetHandler)).Methods("GET")
	r.Handle("/titles/{id}", middleware(a.titleUpdateHandler)).Methods("PUT")
	r.Handle("/titles/{id}/cover", middleware(a.titleCoverUploadHandler)).Methods("PUT")
	r.Handle("/titles/{id}/cards/batch", middleware(a.cardBatchHandler)).Methods("POST")
	r.Handle("/titles/{id}/cards/export.csv", middleware(a.cardExportHandler)).Methods("GET")

	r.Handle("/cards", middleware(a.cardListHandler)).Methods("GET")
	r.Handle("/cards/{qr}", middleware(a.cardGetHandler)).Methods("GET")
	r.Handle("/cards/{qr}", middleware(a.cardPatchHandler)).Methods("PUT")

	r.Handle("/stores", middleware(a.storeListHandler)).Methods("GET")
	r.Handle("/stores", middleware(a.storeCreateHandler)).Methods("POST")
	r.Handle("/stores/{id}", middleware(a.storeGetHandler)).Methods("GET")
	r.Handle("/stores/{id}", middleware(a.storeUpdateHandler)).Methods("PUT")
	r.Handle("/stores/{id}", middleware(a.storeDeleteHandler)).Methods("DELETE")

	r.Handle("/batches", middleware(a.batchListHandler)).Methods("GET")

	r.Handle("/users", middleware(a.userListHandler)).Methods("GET")
	r.Handle("/users/{id}/make-admin", middleware(a.userMakeAdminHandler)).Methods("PUT")
}

type contextKey int

const contextAdminUserID contextKey = iota

// adminmiddleware validates the bearer token and requires the account to
// carry admin rights. The admin flag is read from the database on every
// request so revocation takes effect immediately.
func (a *Admin) adminmiddleware(next http.Handler) http.Handler {
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

		user, err := a.repo.GetUserByID(r.Context(), claims.Subject)
		if err != nil || !user.IsAdmin {
			apierror(w, "admin rights required", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), contextAdminUserID, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
