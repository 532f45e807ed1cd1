package response

import (
	"encoding/json"
	"net/http"

	"sheetvend-api/pkg/apierror"
)

// Response represents a standard API response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
	Warning string `json:"durability_warning,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

func write(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, statusCode int, data any) {
	write(w, statusCode, Response{Success: true, Data: data})
}

// JSONWithMeta sends a JSON response with pagination metadata.
func JSONWithMeta(w http.ResponseWriter, statusCode int, data any, offset, limit, total int) {
	write(w, statusCode, Response{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Offset: offset,
			Limit:  limit,
			Total:  total,
		},
	})
}

// WithWarning sends a 200 whose change took effect in memory but may not
// survive a restart.
func WithWarning(w http.ResponseWriter, data any, warning string) {
	write(w, http.StatusOK, Response{Success: true, Data: data, Warning: warning})
}

// Error sends an error response.
func Error(w http.ResponseWriter, err error) {
	apiErr := apierror.FromError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	_, _ = w.Write(apiErr.ToJSON())
}

// NoContent sends a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// OK sends a 200 OK response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}
