package handler

import (
	"net/http"

	"sheetvend-api/internal/middleware"
	"sheetvend-api/internal/service"
	"sheetvend-api/pkg/apierror"
	"sheetvend-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

const defaultAuditLimit = 50

// AdminHandler exposes admin operations. Routes sit behind NewAdminAuth.
type AdminHandler struct {
	admin *service.AdminService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// CreditsRequest targets one user, with an amount where it applies.
type CreditsRequest struct {
	UserID int64 `json:"user_id"`
	Amount int64 `json:"amount"`
}

// BroadcastRequest is the text sent to every user.
type BroadcastRequest struct {
	Message string `json:"message"`
}

func adminID(r *http.Request) (int64, error) {
	id, ok := middleware.AdminID(r.Context())
	if !ok {
		return 0, apierror.Unauthorized("admin id missing")
	}
	return id, nil
}

func decodeCredits(w http.ResponseWriter, r *http.Request, needUser bool) (CreditsRequest, error) {
	var req CreditsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return req, err
	}
	if needUser && req.UserID <= 0 {
		return req, apierror.ValidationError("user_id is required",
			apierror.FieldError{Field: "user_id", Message: "must be a positive integer"})
	}
	return req, nil
}

// AddCredits handles POST /api/v1/admin/credits/add
func (h *AdminHandler) AddCredits(w http.ResponseWriter, r *http.Request) {
	admin, err := adminID(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	req, err := decodeCredits(w, r, true)
	if err != nil {
		response.Error(w, err)
		return
	}

	change, err := h.admin.AddCredits(r.Context(), admin, req.UserID, req.Amount)
	respond(w, change, err)
}

// ResetCredits handles POST /api/v1/admin/credits/reset
func (h *AdminHandler) ResetCredits(w http.ResponseWriter, r *http.Request) {
	admin, err := adminID(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	req, err := decodeCredits(w, r, true)
	if err != nil {
		response.Error(w, err)
		return
	}

	change, err := h.admin.ResetCredits(r.Context(), admin, req.UserID)
	respond(w, change, err)
}

// ResetAll handles POST /api/v1/admin/credits/reset-all
func (h *AdminHandler) ResetAll(w http.ResponseWriter, r *http.Request) {
	admin, err := adminID(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	res, err := h.admin.ResetAll(r.Context(), admin)
	respond(w, res, err)
}

// GrantAll handles POST /api/v1/admin/credits/grant-all
func (h *AdminHandler) GrantAll(w http.ResponseWriter, r *http.Request) {
	admin, err := adminID(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	req, err := decodeCredits(w, r, false)
	if err != nil {
		response.Error(w, err)
		return
	}

	res, err := h.admin.GrantAll(r.Context(), admin, req.Amount)
	respond(w, res, err)
}

// Users handles GET /api/v1/admin/users
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	admin, err := adminID(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	users, err := h.admin.Users(admin)
	respond(w, users, err)
}

// Ban handles POST /api/v1/admin/users/{user_id}/ban
func (h *AdminHandler) Ban(w http.ResponseWriter, r *http.Request) {
	h.setBanned(w, r, true)
}

// Unban handles DELETE /api/v1/admin/users/{user_id}/ban
func (h *AdminHandler) Unban(w http.ResponseWriter, r *http.Request) {
	h.setBanned(w, r, false)
}

func (h *AdminHandler) setBanned(w http.ResponseWriter, r *http.Request, banned bool) {
	admin, err := adminID(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	target, err := userIDParam(r, "user_id")
	if err != nil {
		response.Error(w, err)
		return
	}

	err = h.admin.SetBanned(r.Context(), admin, target, banned)
	respond(w, map[string]any{"user_id": target, "is_banned": banned}, err)
}

// Overview handles GET /api/v1/admin/overview
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	admin, err := adminID(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	ov, err := h.admin.Overview(r.Context(), admin)
	respond(w, ov, err)
}

// AuditRows handles GET /api/v1/admin/regions/{region}/rows?offset=&limit=
func (h *AdminHandler) AuditRows(w http.ResponseWriter, r *http.Request) {
	admin, err := adminID(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		response.Error(w, err)
		return
	}
	limit, err := intQuery(r, "limit", defaultAuditLimit)
	if err != nil {
		response.Error(w, err)
		return
	}

	page, err := h.admin.AuditRows(r.Context(), admin, chi.URLParam(r, "region"), offset, limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMeta(w, http.StatusOK, page.Rows, page.Offset, limit, page.Total)
}

// Broadcast handles POST /api/v1/admin/broadcast
func (h *AdminHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	admin, err := adminID(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req BroadcastRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}

	report, err := h.admin.Broadcast(r.Context(), admin, req.Message)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, report)
}
