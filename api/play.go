package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// playAuthResponse is returned on a granted playback authorization.
type playAuthResponse struct {
	CanPlay       bool    `json:"can_play"`
	Reason        string  `json:"reason"`
	StartPosition float64 `json:"start_position"`
	SignedURL     string  `json:"signed_url,omitempty"`
	RedirectURL   string  `json:"redirect_url,omitempty"`
	ExpiresIn     int64   `json:"expires_in,omitempty"`
}

// GET /api/v1/abook/{qr}/play-auth
// GET /api/v1/play-auth/{qr}
//
// playAuthHandler decides whether the requester may start playback and
// returns a signed stream URL. Every grant records a fresh play session.
func (a *API) playAuthHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	auth, err := a.lending.Authorize(r.Context(), vars["qr"], requesterID(r))
	if err != nil {
		a.error(w, err)
		return
	}

	serveJSON(playAuthResponse{
		CanPlay:       true,
		Reason:        auth.Reason,
		StartPosition: auth.StartPosition,
		SignedURL:     auth.SignedURL,
		RedirectURL:   auth.RedirectURL,
		ExpiresIn:     auth.ExpiresIn,
	}, w)
}

// POST /api/v1/abook/{qr}/progress
//
// progressHandler records the current listening position.
func (a *API) progressHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var request struct {
		Position float64 `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		apierror(w, "invalid request", http.StatusBadRequest)
		return
	}

	if err := a.lending.SaveProgress(r.Context(), vars["qr"], requesterID(r), request.Position); err != nil {
		a.error(w, err)
		return
	}
	serveJSON(map[string]bool{"ok": true}, w)
}
