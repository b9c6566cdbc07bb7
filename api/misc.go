package api

import (
	"encoding/json"
	"log"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

func timeNow() time.Time {
	return time.Now().UTC()
}

func serveJSON(obj any, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Printf("error encoding response: %s", err)
	}
}

// GET /api/v1/ping
func (a *API) pingHandler(w http.ResponseWriter, r *http.Request) {
	serveJSON(map[string]bool{"pong": true}, w)
}

// GET /api/v1/verify/{qr}?uid=..&exp=..&sig=..
//
// verifyHandler lets the streaming host check a signed URL it received.
func (a *API) verifyHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	params := r.URL.Query()

	exp, err := strconv.ParseInt(params.Get("exp"), 10, 64)
	if err != nil {
		apierror(w, "invalid expiry", http.StatusBadRequest)
		return
	}

	if err := a.signer.Verify(vars["qr"], params.Get("uid"), exp, params.Get("sig"), timeNow()); err != nil {
		apierror(w, "signature rejected", http.StatusUnauthorized)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/titles/{title}/cover?width=&height=&quality=
//
// titleCoverHandler serves stored cover art, resized on demand.
func (a *API) titleCoverHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if a.coversDir == "" {
		apierror(w, "no cover storage configured", http.StatusNotFound)
		return
	}

	file, err := http.Dir(a.coversDir).Open(path.Clean("/" + vars["title"] + ".jpg"))
	if err != nil {
		apierror(w, "cover not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	a.imageresizer.ServeResized(w, r, file)
}
