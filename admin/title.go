package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/audiovook/audiovook-server/database/model"
)

// titleRequest is the JSON body for title create and update.
type titleRequest struct {
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	Language     string  `json:"language"`
	DurationSec  int64   `json:"duration_sec"`
	CoverURL     string  `json:"cover_url"`
	AbsShareCode string  `json:"abs_share_code"`
	PriceRetail  float64 `json:"price_retail"`
	Currency     string  `json:"currency"`
	Active       *bool   `json:"active"`
}

type titleResponse struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	Language     string  `json:"language"`
	DurationSec  int64   `json:"duration_sec"`
	CoverURL     string  `json:"cover_url,omitempty"`
	AbsShareCode string  `json:"abs_share_code,omitempty"`
	PriceRetail  float64 `json:"price_retail"`
	Currency     string  `json:"currency"`
	Active       bool    `json:"active"`
}

func makeTitleResponse(t *model.Title) titleResponse {
	return titleResponse{
		ID:           t.ID,
		Title:        t.Title,
		Author:       t.Author,
		Language:     t.Language,
		DurationSec:  t.DurationSec,
		CoverURL:     t.CoverURL,
		AbsShareCode: t.AbsShareCode,
		PriceRetail:  t.PriceRetail,
		Currency:     t.Currency,
		Active:       t.Active,
	}
}

// pathID parses the {id} path variable.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// GET /api/v1/admin/titles?q=..&active=..
//
// titleListHandler lists titles. With ?q= it runs a full-text search on
// title and author and returns the matches in relevance order.
func (a *Admin) titleListHandler(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	activeOnly := true
	if params.Get("active") == "false" {
		activeOnly = false
	}

	titles, err := a.repo.ListTitles(r.Context(), activeOnly)
	if err != nil {
		a.error(w, err)
		return
	}

	if q := params.Get("q"); q != "" {
		ids, err := a.search.Find(r.Context(), q, 50)
		if err != nil {
			a.error(w, err)
			return
		}
		byID := make(map[int64]*model.Title, len(titles))
		for i := range titles {
			byID[titles[i].ID] = &titles[i]
		}
		matched := make([]model.Title, 0, len(ids))
		for _, id := range ids {
			if t, ok := byID[id]; ok {
				matched = append(matched, *t)
			}
		}
		titles = matched
	}

	response := make([]titleResponse, 0, len(titles))
	for i := range titles {
		response = append(response, makeTitleResponse(&titles[i]))
	}
	serveJSON(response, w)
}

// POST /api/v1/admin/titles
func (a *Admin) titleCreateHandler(w http.ResponseWriter, r *http.Request) {
	var request titleRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		apierror(w, "invalid request", http.StatusBadRequest)
		return
	}
	if request.Title == "" {
		apierror(w, "title is required", http.StatusBadRequest)
		return
	}

	title := model.Title{
		Title:        request.Title,
		Author:       request.Author,
		Language:     request.Language,
		DurationSec:  request.DurationSec,
		CoverURL:     request.CoverURL,
		AbsShareCode: request.AbsShareCode,
		PriceRetail:  request.PriceRetail,
		Currency:     request.Currency,
		Active:       true,
	}
	if request.Active != nil {
		title.Active = *request.Active
	}

	id, err := a.repo.CreateTitle(r.Context(), &title)
	if err != nil {
		a.error(w, err)
		return
	}
	title.ID = id

	if err := a.search.IndexTitle(r.Context(), &title); err != nil {
		log.Printf("indexing title %d: %s", id, err)
	}
	serveJSON(makeTitleResponse(&title), w)
}

// GET /api/v1/admin/titles/{id}
func (a *Admin) titleGetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apierror(w, "invalid title id", http.StatusBadRequest)
		return
	}

	title, err := a.repo.GetTitle(r.Context(), id)
	if err != nil {
		a.error(w, err)
		return
	}
	serveJSON(makeTitleResponse(title), w)
}

// PUT /api/v1/admin/titles/{id}
func (a *Admin) titleUpdateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apierror(w, "invalid title id", http.StatusBadRequest)
		return
	}

	title, err := a.repo.GetTitle(r.Context(), id)
	if err != nil {
		a.error(w, err)
		return
	}

	var request titleRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		apierror(w, "invalid request", http.StatusBadRequest)
		return
	}
	if request.Title != "" {
		title.Title = request.Title
	}
	if request.Author != "" {
		title.Author = request.Author
	}
	if request.Language != "" {
		title.Language = request.Language
	}
	if request.DurationSec != 0 {
		title.DurationSec = request.DurationSec
	}
	if request.CoverURL != "" {
		title.CoverURL = request.CoverURL
	}
	if request.AbsShareCode != "" {
		title.AbsShareCode = request.AbsShareCode
	}
	if request.PriceRetail != 0 {
		title.PriceRetail = request.PriceRetail
	}
	if request.Currency != "" {
		title.Currency = request.Currency
	}
	if request.Active != nil {
		title.Active = *request.Active
	}

	if err := a.repo.UpdateTitle(r.Context(), title); err != nil {
		a.error(w, err)
		return
	}

	if err := a.search.IndexTitle(r.Context(), title); err != nil {
		log.Printf("indexing title %d: %s", id, err)
	}
	serveJSON(makeTitleResponse(title), w)
}

// maxCoverUpload bounds cover uploads to 10 MB.
const maxCoverUpload = 10 << 20

// PUT /api/v1/admin/titles/{id}/cover
//
// titleCoverUploadHandler stores the request body as the title's cover
// image. Written via a temp file and renamed into place.
func (a *Admin) titleCoverUploadHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apierror(w, "invalid title id", http.StatusBadRequest)
		return
	}
	if a.coversDir == "" {
		apierror(w, "no cover storage configured", http.StatusInternalServerError)
		return
	}

	if _, err := a.repo.GetTitle(r.Context(), id); err != nil {
		a.error(w, err)
		return
	}

	blob, err := io.ReadAll(io.LimitReader(r.Body, maxCoverUpload))
	if err != nil || len(blob) == 0 {
		apierror(w, "invalid image upload", http.StatusBadRequest)
		return
	}

	fn := filepath.Join(a.coversDir, fmt.Sprintf("%d.jpg", id))
	tmp := fn + ".upload"
	if err := os.WriteFile(tmp, blob, 0666); err != nil {
		a.error(w, err)
		return
	}
	if err := os.Rename(tmp, fn); err != nil {
		os.Remove(tmp)
		a.error(w, err)
		return
	}

	serveJSON(map[string]any{"ok": true, "bytes": len(blob)}, w)
}
