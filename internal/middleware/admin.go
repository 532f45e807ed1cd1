package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"

	"sheetvend-api/pkg/apierror"
)

const (
	// AdminKeyHeader carries the shared admin secret.
	AdminKeyHeader = "X-Admin-Key"
	// AdminIDHeader carries the chat user id of the acting admin.
	AdminIDHeader = "X-Admin-ID"

	adminIDKey contextKey = "admin_id"
)

// NewAdminAuth checks the shared admin key and stores the acting admin's id
// in the request context. Whether that id is an admin is decided by the
// service layer. An empty key disables every admin route.
func NewAdminAuth(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				writeError(w, apierror.Forbidden("admin API disabled"))
				return
			}

			key := r.Header.Get(AdminKeyHeader)
			if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
				writeError(w, apierror.Unauthorized("Invalid admin key"))
				return
			}

			adminID, err := strconv.ParseInt(r.Header.Get(AdminIDHeader), 10, 64)
			if err != nil {
				writeError(w, apierror.ValidationError("admin id required",
					apierror.FieldError{Field: AdminIDHeader, Message: "must be an integer user id"}))
				return
			}

			ctx := context.WithValue(r.Context(), adminIDKey, adminID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminID returns the acting admin id stored by NewAdminAuth.
func AdminID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(adminIDKey).(int64)
	return id, ok
}

func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_, _ = w.Write(err.ToJSON())
}
