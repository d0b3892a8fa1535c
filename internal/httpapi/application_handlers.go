package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"boldx.dev/intake/internal/identity"
	"boldx.dev/intake/internal/intake"
	"boldx.dev/intake/internal/notify"
	"boldx.dev/intake/internal/obs"
)

type createApplicationRequest struct {
	CompanyName    string                                   `json:"company_name,omitempty"`
	CompanyWebsite string                                   `json:"company_website,omitempty"`
	Status         string                                   `json:"status,omitempty"`
	SubmittedAt    *time.Time                               `json:"submitted_at,omitempty"`
	CurrentSection int                                      `json:"current_section,omitempty"`
	SectionData    map[intake.SectionKey]intake.SectionData `json:"section_data,omitempty"`
	SectionStatus  map[intake.SectionKey]string             `json:"section_status,omitempty"`
}

func (a *API) handleApplicationsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listApplications(w, r)
	case http.MethodPost:
		a.createApplication(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listApplications(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := intake.ApplicationFilter{
		Status:        q.Get("status"),
		CompanySearch: q.Get("q"),
	}
	if filter.Status != "" && !intake.ValidStatus(filter.Status) {
		writeError(w, r, http.StatusBadRequest, "invalid status")
		return
	}
	if identity.IsAdminEmail(user.Email) {
		filter.UserID = q.Get("user_id")
	} else {
		// Applicants only ever see their own applications.
		filter.UserID = user.ID
	}
	apps, err := a.store.ListApplications(r.Context(), filter)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (a *API) createApplication(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createApplicationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	for key := range req.SectionData {
		if !intake.KnownSection(key) {
			writeError(w, r, http.StatusBadRequest, "unknown section key")
			return
		}
	}

	app, err := a.store.CreateApplication(r.Context(), intake.NewApplication{
		UserID:         user.ID,
		CompanyName:    req.CompanyName,
		CompanyWebsite: req.CompanyWebsite,
		Status:         req.Status,
		SubmittedAt:    req.SubmittedAt,
		CurrentSection: req.CurrentSection,
		SectionData:    req.SectionData,
		SectionStatus:  req.SectionStatus,
	})
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	obs.ApplicationsCreated.Inc()
	if app.Status == intake.StatusSubmitted {
		obs.ApplicationsSubmitted.Inc()
		a.notifier.SendAsync(submissionSummary(app, user, req))
	} else {
		a.recorder.Record(r.Context(), intake.AuditEntry{
			ApplicationID: app.ID,
			Action:        "application_created",
		})
	}
	writeJSON(w, http.StatusCreated, app)
}

func submissionSummary(app intake.Application, user identity.User, req createApplicationRequest) notify.Summary {
	filled := 0
	for _, data := range req.SectionData {
		if len(data) > 0 {
			filled++
		}
	}
	name := user.Name
	if name == "" {
		if company, ok := req.SectionData[intake.SectionCompany]; ok {
			name, _ = company["founder_name"].(string)
		}
	}
	return notify.Summary{
		ApplicationID:  app.ID,
		CompanyName:    app.CompanyName,
		ApplicantName:  name,
		ApplicantEmail: user.Email,
		SectionsFilled: filled,
	}
}

// handleApplicationResource routes everything under /v1/applications/{id}.
func (a *API) handleApplicationResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/applications/")
	segs := strings.Split(rest, "/")
	if len(segs) == 0 || segs[0] == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	appID := segs[0]

	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	app, err := a.store.GetApplication(r.Context(), appID)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	if !canAccess(user, app) {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}

	switch {
	case len(segs) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		writeJSON(w, http.StatusOK, app)
	case len(segs) == 2 && segs[1] == "status":
		a.updateApplicationStatus(w, r, appID)
	case len(segs) == 2 && segs[1] == "company":
		a.updateCompany(w, r, appID)
	case len(segs) == 2 && segs[1] == "current-section":
		a.updateCurrentSection(w, r, appID)
	case len(segs) == 2 && segs[1] == "sections":
		a.listSections(w, r, appID)
	case len(segs) == 3 && segs[1] == "sections":
		a.handleSection(w, r, appID, intake.SectionKey(segs[2]))
	case len(segs) == 4 && segs[1] == "sections":
		a.handleSectionAction(w, r, appID, intake.SectionKey(segs[2]), segs[3])
	case len(segs) == 2 && segs[1] == "documents":
		a.handleApplicationDocuments(w, r, app, user)
	case len(segs) == 2 && segs[1] == "audit":
		a.handleApplicationAudit(w, r, appID)
	default:
		writeError(w, r, http.StatusNotFound, "not found")
	}
}

func (a *API) updateApplicationStatus(w http.ResponseWriter, r *http.Request, appID string) {
	if r.Method != http.MethodPatch && r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPatch, http.MethodPut)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.review.UpdateStatus(r.Context(), appID, req.Status); err != nil {
		handleStoreError(w, r, err)
		return
	}
	app, err := a.store.GetApplication(r.Context(), appID)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (a *API) updateCompany(w http.ResponseWriter, r *http.Request, appID string) {
	if r.Method != http.MethodPatch && r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPatch, http.MethodPut)
		return
	}
	var req struct {
		CompanyName string `json:"company_name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.store.SetCompanyName(r.Context(), appID, req.CompanyName); err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) updateCurrentSection(w http.ResponseWriter, r *http.Request, appID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	var req struct {
		CurrentSection int `json:"current_section"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.CurrentSection < 1 || req.CurrentSection > len(intake.Sections) {
		writeError(w, r, http.StatusBadRequest, "current_section out of range")
		return
	}
	if err := a.store.SetCurrentSection(r.Context(), appID, req.CurrentSection); err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) listSections(w http.ResponseWriter, r *http.Request, appID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	secs, err := a.store.ListSections(r.Context(), appID)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": secs})
}

func (a *API) handleSection(w http.ResponseWriter, r *http.Request, appID string, key intake.SectionKey) {
	switch r.Method {
	case http.MethodGet:
		sec, err := a.store.GetSection(r.Context(), appID, key)
		if err != nil {
			handleStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sec)
	case http.MethodPut:
		var req struct {
			Data intake.SectionData `json:"data"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		sec, err := a.store.SaveSection(r.Context(), appID, key, req.Data)
		if err != nil {
			handleStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sec)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleSectionAction(w http.ResponseWriter, r *http.Request, appID string, key intake.SectionKey, action string) {
	switch action {
	case "submit":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		var req struct {
			Data intake.SectionData `json:"data,omitempty"`
		}
		// An empty body submits whatever the section already holds.
		if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if req.Data == nil {
			cur, err := a.store.GetSection(r.Context(), appID, key)
			if err != nil {
				handleStoreError(w, r, err)
				return
			}
			req.Data = cur.Data
		}
		sec, err := a.store.SubmitSection(r.Context(), appID, key, req.Data)
		if err != nil {
			handleStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sec)
	case "notes":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		var req struct {
			Notes string `json:"notes"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.review.SetReviewerNotes(r.Context(), appID, key, req.Notes); err != nil {
			handleStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case "status":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		var req struct {
			Status string `json:"status"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.review.SetSectionStatus(r.Context(), appID, key, req.Status); err != nil {
			handleStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		writeError(w, r, http.StatusNotFound, "not found")
	}
}

func (a *API) handleApplicationAudit(w http.ResponseWriter, r *http.Request, appID string) {
	switch r.Method {
	case http.MethodGet:
		entries, err := a.store.ListAudit(r.Context(), appID)
		if err != nil {
			handleStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	case http.MethodPost:
		var req struct {
			Action     string            `json:"action"`
			SectionKey intake.SectionKey `json:"section_key,omitempty"`
			Details    map[string]any    `json:"details,omitempty"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Action) == "" {
			writeError(w, r, http.StatusBadRequest, "action is required")
			return
		}
		entry, err := a.recorder.Record(r.Context(), intake.AuditEntry{
			ApplicationID: appID,
			Action:        req.Action,
			SectionKey:    req.SectionKey,
			Details:       req.Details,
		})
		if err != nil {
			handleStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}
