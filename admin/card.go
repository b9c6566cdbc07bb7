package admin

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/audiovook/audiovook-server/database/model"
)

// maxBatchQty bounds a single provisioning run.
const maxBatchQty = 10000

type cardResponse struct {
	QR          string     `json:"qr"`
	TitleID     int64      `json:"title_id"`
	UserState   int        `json:"user_state"`
	StatusLabel string     `json:"status_label"`
	OwnerUserID string     `json:"owner_user_id,omitempty"`
	RetailState string     `json:"retail_state"`
	StoreID     int64      `json:"store_id,omitempty"`
	BatchID     int64      `json:"batch_id,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Notes       string     `json:"notes,omitempty"`
}

func makeCardResponse(c *model.Card) cardResponse {
	response := cardResponse{
		QR:          c.QR,
		TitleID:     c.TitleID,
		UserState:   int(c.UserState),
		StatusLabel: c.UserState.Label(),
		OwnerUserID: c.OwnerUserID,
		RetailState: c.RetailState,
		StoreID:     c.StoreID,
		BatchID:     c.BatchID,
		UpdatedAt:   c.UpdatedAt,
		Notes:       c.Notes,
	}
	if !c.ClaimedAt.IsZero() {
		claimedAt := c.ClaimedAt
		response.ClaimedAt = &claimedAt
	}
	return response
}

// POST /api/v1/admin/titles/{id}/cards/batch?qty=N
//
// cardBatchHandler provisions a print batch of cards for a title. Each
// card gets a fresh random QR code, recorded under a new batch row.
func (a *Admin) cardBatchHandler(w http.ResponseWriter, r *http.Request) {
	titleID, err := pathID(r)
	if err != nil {
		apierror(w, "invalid title id", http.StatusBadRequest)
		return
	}

	qty, err := strconv.Atoi(r.URL.Query().Get("qty"))
	if err != nil || qty < 1 || qty > maxBatchQty {
		apierror(w, fmt.Sprintf("qty must be between 1 and %d", maxBatchQty), http.StatusBadRequest)
		return
	}

	var request struct {
		PrinterVendor string `json:"printer_vendor"`
		Notes         string `json:"notes"`
	}
	_ = json.NewDecoder(r.Body).Decode(&request)

	if _, err := a.repo.GetTitle(r.Context(), titleID); err != nil {
		a.error(w, err)
		return
	}

	now := time.Now().UTC()
	batchID, err := a.repo.CreateBatch(r.Context(), &model.Batch{
		TitleID:       titleID,
		Qty:           int64(qty),
		PrintedOn:     now,
		PrinterVendor: request.PrinterVendor,
		Notes:         request.Notes,
	})
	if err != nil {
		a.error(w, err)
		return
	}

	cards := make([]model.Card, 0, qty)
	qrs := make([]string, 0, qty)
	for i := 0; i < qty; i++ {
		qr := "QR-" + uuid.NewString()
		qrs = append(qrs, qr)
		cards = append(cards, model.Card{
			QR:      qr,
			TitleID: titleID,
			BatchID: batchID,
		})
	}
	if err := a.repo.InsertCards(r.Context(), cards); err != nil {
		a.error(w, err)
		return
	}

	serveJSON(map[string]any{
		"batch_id": batchID,
		"title_id": titleID,
		"qty":      qty,
		"qrs":      qrs,
	}, w)
}

// cardFilterFromQuery builds a card filter from list query parameters.
func cardFilterFromQuery(params map[string][]string) model.CardFilter {
	get := func(name string) string {
		if v, ok := params[name]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}

	filter := model.CardFilter{
		RetailState: get("retail_state"),
		QR:          get("qr"),
	}
	filter.TitleID, _ = strconv.ParseInt(get("title_id"), 10, 64)
	filter.StoreID, _ = strconv.ParseInt(get("store_id"), 10, 64)
	filter.BatchID, _ = strconv.ParseInt(get("batch_id"), 10, 64)
	if v := get("user_state"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			state := model.CardState(n)
			filter.UserState = &state
		}
	}
	return filter
}

// GET /api/v1/admin/cards?title_id=&store_id=&batch_id=&user_state=&retail_state=&qr=
func (a *Admin) cardListHandler(w http.ResponseWriter, r *http.Request) {
	cards, err := a.repo.ListCards(r.Context(), cardFilterFromQuery(r.URL.Query()))
	if err != nil {
		a.error(w, err)
		return
	}

	response := make([]cardResponse, 0, len(cards))
	for i := range cards {
		response = append(response, makeCardResponse(&cards[i]))
	}
	serveJSON(response, w)
}

// GET /api/v1/admin/cards/{qr}
func (a *Admin) cardGetHandler(w http.ResponseWriter, r *http.Request) {
	card, err := a.repo.GetCard(r.Context(), mux.Vars(r)["qr"])
	if err != nil {
		a.error(w, err)
		return
	}
	serveJSON(makeCardResponse(card), w)
}

// PUT /api/v1/admin/cards/{qr}
//
// cardPatchHandler updates the supply-chain fields of a card. Lifecycle
// fields cannot be patched; those move only through claim and lend.
func (a *Admin) cardPatchHandler(w http.ResponseWriter, r *http.Request) {
	qr := mux.Vars(r)["qr"]

	var patch struct {
		RetailState *string `json:"retail_state"`
		StoreID     *int64  `json:"store_id"`
		Notes       *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		apierror(w, "invalid request", http.StatusBadRequest)
		return
	}

	err := a.repo.PatchCard(r.Context(), qr, model.CardPatch{
		RetailState: patch.RetailState,
		StoreID:     patch.StoreID,
		Notes:       patch.Notes,
	})
	if err != nil {
		a.error(w, err)
		return
	}

	card, err := a.repo.GetCard(r.Context(), qr)
	if err != nil {
		a.error(w, err)
		return
	}
	serveJSON(makeCardResponse(card), w)
}

// GET /api/v1/admin/titles/{id}/cards/export.csv
//
// cardExportHandler streams all cards of a title as CSV, for handover to
// the print shop.
func (a *Admin) cardExportHandler(w http.ResponseWriter, r *http.Request) {
	titleID, err := pathID(r)
	if err != nil {
		apierror(w, "invalid title id", http.StatusBadRequest)
		return
	}

	filter := model.CardFilter{TitleID: titleID}
	filter.BatchID, _ = strconv.ParseInt(r.URL.Query().Get("batch_id"), 10, 64)

	cards, err := a.repo.ListCards(r.Context(), filter)
	if err != nil {
		a.error(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"title-%d-cards.csv\"", titleID))

	cw := csv.NewWriter(w)
	cw.Write([]string{"qr", "title_id", "batch_id", "user_state", "retail_state", "store_id"})
	for i := range cards {
		c := &cards[i]
		cw.Write([]string{
			c.QR,
			strconv.FormatInt(c.TitleID, 10),
			strconv.FormatInt(c.BatchID, 10),
			strconv.Itoa(int(c.UserState)),
			c.RetailState,
			strconv.FormatInt(c.StoreID, 10),
		})
	}
	cw.Flush()
}

// GET /api/v1/admin/batches
func (a *Admin) batchListHandler(w http.ResponseWriter, r *http.Request) {
	batches, err := a.repo.ListBatches(r.Context())
	if err != nil {
		a.error(w, err)
		return
	}

	type batchResponse struct {
		ID            int64      `json:"id"`
		TitleID       int64      `json:"title_id"`
		Qty           int64      `json:"qty"`
		PrintedOn     *time.Time `json:"printed_on,omitempty"`
		PrinterVendor string     `json:"printer_vendor,omitempty"`
		Notes         string     `json:"notes,omitempty"`
	}
	response := make([]batchResponse, 0, len(batches))
	for i := range batches {
		b := batchResponse{
			ID:            batches[i].ID,
			TitleID:       batches[i].TitleID,
			Qty:           batches[i].Qty,
			PrinterVendor: batches[i].PrinterVendor,
			Notes:         batches[i].Notes,
		}
		if !batches[i].PrintedOn.IsZero() {
			printedOn := batches[i].PrintedOn
			b.PrintedOn = &printedOn
		}
		response = append(response, b)
	}
	serveJSON(response, w)
}
