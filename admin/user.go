package admin

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type userResponse struct {
	ID       string    `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name,omitempty"`
	Location string    `json:"location,omitempty"`
	IsAdmin  bool      `json:"is_admin"`
	Created  time.Time `json:"created"`
}

// GET /api/v1/admin/users
func (a *Admin) userListHandler(w http.ResponseWriter, r *http.Request) {
	users, err := a.repo.ListUsers(r.Context())
	if err != nil {
		a.error(w, err)
		return
	}

	response := make([]userResponse, 0, len(users))
	for i := range users {
		response = append(response, userResponse{
			ID:       users[i].ID,
			Email:    users[i].Email,
			Name:     users[i].Name,
			Location: users[i].Location,
			IsAdmin:  users[i].IsAdmin,
			Created:  users[i].Created,
		})
	}
	serveJSON(response, w)
}

// PUT /api/v1/admin/users/{id}/make-admin
func (a *Admin) userMakeAdminHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	if err := a.repo.SetUserAdmin(r.Context(), userID); err != nil {
		a.error(w, err)
		return
	}
	serveJSON(map[string]bool{"ok": true}, w)
}
