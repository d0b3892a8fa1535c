package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"boldx.dev/intake/internal/audit"
	"boldx.dev/intake/internal/intake"
	"boldx.dev/intake/internal/obs"
)

const maxJSONBody = 1 << 20 // 1MB

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "dependencies unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "intake-api",
		"version": a.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			obs.LogRequest(map[string]any{
				"level": "error",
				"msg":   "encode response",
				"error": err.Error(),
			})
		}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, map[string]string{
		"error":      msg,
		"request_id": audit.RequestIDFrom(r.Context()),
	})
}

// decodeJSON reads a single JSON document into dst, rejecting unknown fields
// and trailing content.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// handleStoreError maps store sentinels onto HTTP statuses.
func handleStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, intake.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, intake.ErrUnknownSection):
		writeError(w, r, http.StatusNotFound, "unknown section key")
	case errors.Is(err, intake.ErrReadOnly):
		writeError(w, r, http.StatusConflict, "application is read-only")
	case errors.Is(err, intake.ErrInvalidStatus):
		writeError(w, r, http.StatusBadRequest, "invalid status")
	default:
		obs.LogRequest(map[string]any{
			"level":      "error",
			"msg":        "store error",
			"error":      err.Error(),
			"request_id": audit.RequestIDFrom(r.Context()),
		})
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// drainUpload reads the upload while enforcing the size cap.
func drainUpload(f io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, intake.MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > intake.MaxFileSize {
		return nil, errors.New("file exceeds the upload limit")
	}
	return data, nil
}

func mediaType(header string) string {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return mt
}
