package handlers

import (
	"net/http"

	"github.com/andrewpaige1/bookswap-api/utils"
)

// POST /requests with the public ids of the books to give and to take
func (db *DBHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)

	var body struct {
		Give []string `json:"give"`
		Take []string `json:"take"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	created, err := db.Trading.CreateRequest(r.Context(), user.ID, body.Give, body.Take)
	if err != nil {
		db.writeError(w, "CreateRequest: failed to create request", err)
		return
	}

	req, err := db.Trading.Get(r.Context(), created.PublicID)
	if err != nil {
		db.writeError(w, "CreateRequest: failed to reload request", err)
		return
	}
	writeJSON(w, http.StatusCreated, requestView(*req))
}

// GET /requests/incoming
func (db *DBHandler) GetIncomingRequests(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)
	reqs, err := db.Trading.Incoming(r.Context(), user.ID)
	if err != nil {
		db.writeError(w, "GetIncomingRequests: failed to load requests", err)
		return
	}
	writeJSON(w, http.StatusOK, requestViews(reqs))
}

// GET /requests/outgoing
func (db *DBHandler) GetOutgoingRequests(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)
	reqs, err := db.Trading.Outgoing(r.Context(), user.ID)
	if err != nil {
		db.writeError(w, "GetOutgoingRequests: failed to load requests", err)
		return
	}
	writeJSON(w, http.StatusOK, requestViews(reqs))
}

// POST /requests/{requestID}/accept
func (db *DBHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)

	trade, err := db.Trading.Accept(r.Context(), user.ID, r.PathValue("requestID"))
	if err != nil {
		db.writeError(w, "AcceptRequest: failed to accept request", err)
		return
	}

	trades, err := db.Trading.TradesFor(r.Context(), user.ID)
	if err != nil {
		db.writeError(w, "AcceptRequest: failed to load trade", err)
		return
	}
	for _, t := range trades {
		if t.ID == trade.ID {
			writeJSON(w, http.StatusOK, tradeView(t))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]uint{"id": trade.ID})
}

// DELETE /requests/{requestID} withdraws (requester) or declines (responder)
func (db *DBHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.CurrentUser(r)

	if err := db.Trading.Cancel(r.Context(), user.ID, r.PathValue("requestID")); err != nil {
		db.writeError(w, "CancelRequest: failed to cancel request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
