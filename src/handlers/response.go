package handlers

import (
	"errors"
	"io"
	"net/http"

	json "github.com/goccy/go-json"

	"hbnb/src/types"
)

const maxBodyBytes = 1 << 20

const (
	msgNotJSON  = "Not a JSON"
	msgNotFound = "Not found"
	msgInternal = "Internal error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readBody returns the raw request body, capped at maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

// decodeObject parses the body as a JSON object. ok is false for anything
// else, including an empty object.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, bool) {
	body, err := readBody(w, r)
	if err != nil {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || len(obj) == 0 {
		return nil, false
	}
	return obj, true
}

// fail maps err to a JSON error response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, types.ErrInvalidField):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.lggr.Errorw("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}
