package admin

import (
	"encoding/json"
	"net/http"

	"github.com/audiovook/audiovook-server/database/model"
)

type storeRequest struct {
	Name         string `json:"name"`
	ChannelType  string `json:"channel_type"`
	City         string `json:"city"`
	Country      string `json:"country"`
	ContactEmail string `json:"contact_email"`
	ExternalRef  string `json:"external_ref"`
}

type storeResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ChannelType  string `json:"channel_type,omitempty"`
	City         string `json:"city,omitempty"`
	Country      string `json:"country,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	ExternalRef  string `json:"external_ref,omitempty"`
}

func makeStoreResponse(s *model.Store) storeResponse {
	return storeResponse{
		ID:           s.ID,
		Name:         s.Name,
		ChannelType:  s.ChannelType,
		City:         s.City,
		Country:      s.Country,
		ContactEmail: s.ContactEmail,
		ExternalRef:  s.ExternalRef,
	}
}

// GET /api/v1/admin/stores
func (a *Admin) storeListHandler(w http.ResponseWriter, r *http.Request) {
	stores, err := a.repo.ListStores(r.Context())
	if err != nil {
		a.error(w, err)
		return
	}

	response := make([]storeResponse, 0, len(stores))
	for i := range stores {
		response = append(response, makeStoreResponse(&stores[i]))
	}
	serveJSON(response, w)
}

// POST /api/v1/admin/stores
func (a *Admin) storeCreateHandler(w http.ResponseWriter, r *http.Request) {
	var request storeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		apierror(w, "invalid request", http.StatusBadRequest)
		return
	}
	if request.Name == "" {
		apierror(w, "name is required", http.StatusBadRequest)
		return
	}

	store := model.Store{
		Name:         request.Name,
		ChannelType:  request.ChannelType,
		City:         request.City,
		Country:      request.Country,
		ContactEmail: request.ContactEmail,
		ExternalRef:  request.ExternalRef,
	}
	id, err := a.repo.CreateStore(r.Context(), &store)
	if err != nil {
		a.error(w, err)
		return
	}
	store.ID = id
	serveJSON(makeStoreResponse(&store), w)
}

// GET /api/v1/admin/stores/{id}
func (a *Admin) storeGetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apierror(w, "invalid store id", http.StatusBadRequest)
		return
	}

	store, err := a.repo.GetStore(r.Context(), id)
	if err != nil {
		a.error(w, err)
		return
	}
	serveJSON(makeStoreResponse(store), w)
}

// PUT /api/v1/admin/stores/{id}
func (a *Admin) storeUpdateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apierror(w, "invalid store id", http.StatusBadRequest)
		return
	}

	store, err := a.repo.GetStore(r.Context(), id)
	if err != nil {
		a.error(w, err)
		return
	}

	var request storeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		apierror(w, "invalid request", http.StatusBadRequest)
		return
	}
	if request.Name != "" {
		store.Name = request.Name
	}
	if request.ChannelType != "" {
		store.ChannelType = request.ChannelType
	}
	if request.City != "" {
		store.City = request.City
	}
	if request.Country != "" {
		store.Country = request.Country
	}
	if request.ContactEmail != "" {
		store.ContactEmail = request.ContactEmail
	}
	if request.ExternalRef != "" {
		store.ExternalRef = request.ExternalRef
	}

	if err := a.repo.UpdateStore(r.Context(), store); err != nil {
		a.error(w, err)
		return
	}
	serveJSON(makeStoreResponse(store), w)
}

// DELETE /api/v1/admin/stores/{id}
func (a *Admin) storeDeleteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apierror(w, "invalid store id", http.StatusBadRequest)
		return
	}

	if err := a.repo.DeleteStore(r.Context(), id); err != nil {
		a.error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
