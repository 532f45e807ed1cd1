package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"sheetvend-api/internal/errs"
	"sheetvend-api/pkg/apierror"
	"sheetvend-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 64 << 10

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apierror.BadRequest("invalid JSON: " + err.Error())
	}
	return nil
}

// userIDParam parses a positive integer user id from the URL.
func userIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.ValidationError("invalid user id",
			apierror.FieldError{Field: name, Message: "must be a positive integer"})
	}
	return id, nil
}

// intQuery reads a non-negative integer query parameter, def when absent.
func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apierror.ValidationError("invalid query parameter",
			apierror.FieldError{Field: name, Message: "must be a non-negative integer"})
	}
	return n, nil
}

// respond writes data, or the error, or data with a durability warning when
// the only failure was the ledger flush.
func respond(w http.ResponseWriter, data any, err error) {
	switch {
	case err == nil:
		response.OK(w, data)
	case errors.Is(err, errs.ErrPersistence):
		response.WithWarning(w, data, "change applied but not persisted; it may be lost on restart")
	default:
		response.Error(w, err)
	}
}
