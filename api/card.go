package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/audiovook/audiovook-server/lending"
)

// cardStatusResponse is the per-requester card status view.
type cardStatusResponse struct {
	QR            string     `json:"qr"`
	Status        int        `json:"status"`
	StatusLabel   string     `json:"status_label"`
	OwnerEmail    string     `json:"owner_email,omitempty"`
	BorrowerEmail string     `json:"borrower_email,omitempty"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
	LentAt        *time.Time `json:"lent_at,omitempty"`
	CanClaim      bool       `json:"can_claim"`
	CanLend       bool       `json:"can_lend"`
	CanStopLend   bool       `json:"can_stop_lend"`
	CanPlay       bool       `json:"can_play"`
}

func makeCardStatusResponse(status *lending.Status) cardStatusResponse {
	response := cardStatusResponse{
		QR:            status.Card.QR,
		Status:        int(status.Card.UserState),
		StatusLabel:   status.StatusLabel,
		OwnerEmail:    status.OwnerEmail,
		BorrowerEmail: status.BorrowerEmail,
		CanClaim:      status.CanClaim,
		CanLend:       status.CanLend,
		CanStopLend:   status.CanStopLend,
		CanPlay:       status.CanPlay,
	}
	if !status.Card.ClaimedAt.IsZero() {
		claimedAt := status.Card.ClaimedAt
		response.ClaimedAt = &claimedAt
	}
	if !status.Card.LentAt.IsZero() {
		lentAt := status.Card.LentAt
		response.LentAt = &lentAt
	}
	return response
}

// POST /api/v1/claim/{qr}
//
// claimHandler binds an unclaimed card to the requester.
func (a *API) claimHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if _, err := a.lending.Claim(r.Context(), vars["qr"], requesterID(r)); err != nil {
		a.error(w, err)
		return
	}

	status, err := a.lending.Status(r.Context(), vars["qr"], requesterID(r))
	if err != nil {
		a.error(w, err)
		return
	}
	serveJSON(makeCardStatusResponse(status), w)
}

// POST /api/v1/lend/{qr}
//
// lendHandler lends a claimed card to another user. The borrower email
// can come from the JSON body or a query parameter.
func (a *API) lendHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var request struct {
		BorrowerEmail string `json:"borrower_email"`
	}
	_ = json.NewDecoder(r.Body).Decode(&request)
	if request.BorrowerEmail == "" {
		request.BorrowerEmail = r.URL.Query().Get("borrower_email")
	}
	if request.BorrowerEmail == "" {
		apierror(w, "borrower_email is required", http.StatusBadRequest)
		return
	}

	if _, err := a.lending.Lend(r.Context(), vars["qr"], requesterID(r), request.BorrowerEmail); err != nil {
		a.error(w, err)
		return
	}

	serveJSON(map[string]any{
		"ok":  true,
		"msg": "Lent successfully",
	}, w)
}

// POST /api/v1/abook/{qr}/stop-lend
//
// stopLendHandler terminates an active loan. Owner only.
func (a *API) stopLendHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	card, err := a.lending.StopLend(r.Context(), vars["qr"], requesterID(r))
	if err != nil {
		a.error(w, err)
		return
	}

	serveJSON(map[string]any{
		"message": "Préstec aturat",
		"qr":      card.QR,
		"status":  int(card.UserState),
	}, w)
}

// GET /api/v1/abook/{qr}/status
func (a *API) statusHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	status, err := a.lending.Status(r.Context(), vars["qr"], requesterID(r))
	if err != nil {
		a.error(w, err)
		return
	}
	serveJSON(makeCardStatusResponse(status), w)
}
