package httpapi

import (
	"net/http"
	"strings"
	"time"

	"boldx.dev/intake/internal/identity"
)

const sessionTTL = 24 * time.Hour

// handleAuthToken mints a session token. There is no password check here;
// the identity provider in front of the API is expected to have done that
// and to call this endpoint server-side.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
		Name   string `json:"name,omitempty"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "user_id and email are required")
		return
	}

	token, err := identity.GenerateToken(req.UserID, req.Email, sessionTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not mint token")
		return
	}
	if a.broker != nil {
		a.broker.Publish(identity.Event{
			Kind: identity.EventSignedIn,
			User: identity.User{ID: req.UserID, Email: strings.ToLower(req.Email), Name: req.Name},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int(sessionTTL.Seconds()),
		"is_admin":   identity.IsAdminEmail(req.Email),
	})
}
