package handler

import (
	"errors"
	"net/http"

	"sheetvend-api/internal/errs"
	"sheetvend-api/internal/model"
	"sheetvend-api/internal/service"
	"sheetvend-api/pkg/apierror"
	"sheetvend-api/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DispenseHandler serves allocations and availability stats.
type DispenseHandler struct {
	dispenser service.Dispenser
	stats     *service.StatsAggregator
	log       *zap.Logger
}

// NewDispenseHandler creates a new dispense handler.
func NewDispenseHandler(dispenser service.Dispenser, stats *service.StatsAggregator, log *zap.Logger) *DispenseHandler {
	return &DispenseHandler{
		dispenser: dispenser,
		stats:     stats,
		log:       log,
	}
}

// AllocateRequest is the body of an allocation.
type AllocateRequest struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	Quantity  int    `json:"quantity"`
}

// AllocateResponse adds shortfall info to the raw result.
type AllocateResponse struct {
	*model.AllocationResult
	Shortfall int  `json:"shortfall"`
	Partial   bool `json:"partial"`
}

// Allocate handles POST /api/v1/regions/{region}/allocate
func (h *DispenseHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	region := chi.URLParam(r, "region")

	req := AllocateRequest{Quantity: 1}
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if req.UserID <= 0 {
		response.Error(w, apierror.ValidationError("user_id is required",
			apierror.FieldError{Field: "user_id", Message: "must be a positive integer"}))
		return
	}

	result, err := h.dispenser.Allocate(r.Context(), region, model.Requester{
		UserID:    req.UserID,
		Username:  req.Username,
		FirstName: req.FirstName,
	}, req.Quantity)
	if result == nil {
		if !errors.Is(err, errs.ErrInsufficientCredits) && !errors.Is(err, errs.ErrPoolExhausted) {
			h.log.Warn("allocation failed", zap.String("region", region), zap.Int64("user_id", req.UserID), zap.Error(err))
		}
		response.Error(w, err)
		return
	}

	respond(w, AllocateResponse{
		AllocationResult: result,
		Shortfall:        result.Shortfall(),
		Partial:          result.Partial(),
	}, err)
}

// RegionStats handles GET /api/v1/regions/{region}/stats
func (h *DispenseHandler) RegionStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.RegionStats(r.Context(), chi.URLParam(r, "region"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, st)
}

// CombinedStats handles GET /api/v1/stats
func (h *DispenseHandler) CombinedStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.CombinedStats(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, st)
}
