package handler

import (
	"net/http"

	"sheetvend-api/internal/service"
)

// AccountHandler serves per-user ledger reads and profile updates.
type AccountHandler struct {
	ledger *service.CreditLedger
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(ledger *service.CreditLedger) *AccountHandler {
	return &AccountHandler{ledger: ledger}
}

// BalanceResponse is a user's balance.
type BalanceResponse struct {
	UserID  int64 `json:"user_id"`
	Credits int64 `json:"credits"`
}

// Balance handles GET /api/v1/users/{user_id}/balance
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r, "user_id")
	if err != nil {
		respond(w, nil, err)
		return
	}

	credits, err := h.ledger.Balance(r.Context(), userID)
	respond(w, BalanceResponse{UserID: userID, Credits: credits}, err)
}

// ProfileRequest carries display names from the chat transport.
type ProfileRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// ProfileResponse reports whether the user was seen for the first time.
type ProfileResponse struct {
	UserID       int64 `json:"user_id"`
	FirstContact bool  `json:"first_contact"`
	Credits      int64 `json:"credits"`
}

// Profile handles POST /api/v1/users/{user_id}/profile
func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r, "user_id")
	if err != nil {
		respond(w, nil, err)
		return
	}

	var req ProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond(w, nil, err)
		return
	}

	created, err := h.ledger.RecordProfile(r.Context(), userID, req.Username, req.FirstName)
	resp := ProfileResponse{UserID: userID, FirstContact: created}
	if acc, ok := h.ledger.Account(userID); ok {
		resp.Credits = acc.Credits
	}
	respond(w, resp, err)
}
