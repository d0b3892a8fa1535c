package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"boldx.dev/intake/internal/blob"
	"boldx.dev/intake/internal/identity"
	"boldx.dev/intake/internal/intake"
	"boldx.dev/intake/internal/obs"
)

// multipart parsing keeps this much in memory before spilling to disk.
const multipartMemory = 8 << 20

func (a *API) handleApplicationDocuments(w http.ResponseWriter, r *http.Request, app intake.Application, user identity.User) {
	switch r.Method {
	case http.MethodGet:
		docs, err := a.store.ListDocuments(r.Context(), app.ID)
		if err != nil {
			handleStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
	case http.MethodPost:
		if strings.HasPrefix(mediaType(r.Header.Get("Content-Type")), "multipart/") {
			a.uploadDocument(w, r, app, user)
			return
		}
		a.insertDocumentRecord(w, r, app, user)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// uploadDocument stores the file bytes and the metadata row in one request.
func (a *API) uploadDocument(w http.ResponseWriter, r *http.Request, app intake.Application, user identity.User) {
	if a.blobs == nil {
		writeError(w, r, http.StatusNotImplemented, "uploads are not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, intake.MaxFileSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart body")
		return
	}
	key := intake.SectionKey(r.FormValue("section_key"))
	if key == "" {
		key = intake.SectionDocuments
	}
	if !intake.KnownSection(key) {
		writeError(w, r, http.StatusBadRequest, "unknown section key")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	fileType := mediaType(header.Header.Get("Content-Type"))
	if fileType != "" && !intake.AllowedFileType(fileType) {
		writeError(w, r, http.StatusUnsupportedMediaType, "file type not allowed")
		return
	}
	data, err := drainUpload(file)
	if err != nil {
		writeError(w, r, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	name := path.Base(header.Filename)
	storagePath := fmt.Sprintf("%s/%s/%d_%s", app.ID, key, time.Now().UnixMilli(), name)
	if _, err := a.blobs.Put(r.Context(), storagePath, bytes.NewReader(data)); err != nil {
		handleStoreError(w, r, err)
		return
	}

	doc, err := a.store.InsertDocument(r.Context(), intake.Document{
		ApplicationID: app.ID,
		SectionKey:    key,
		ChecklistItem: r.FormValue("checklist_item"),
		FileName:      name,
		FileSize:      int64(len(data)),
		FileType:      fileType,
		StoragePath:   storagePath,
		UploadedBy:    user.ID,
	})
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	obs.DocumentsUploaded.Inc()
	a.recorder.Record(r.Context(), intake.AuditEntry{
		ApplicationID: app.ID,
		Action:        "file_uploaded",
		SectionKey:    key,
		Details:       map[string]any{"file_name": name, "checklist_item": doc.ChecklistItem},
	})
	writeJSON(w, http.StatusCreated, doc)
}

// insertDocumentRecord registers metadata for a file stored out of band.
func (a *API) insertDocumentRecord(w http.ResponseWriter, r *http.Request, app intake.Application, user identity.User) {
	var req struct {
		SectionKey    intake.SectionKey `json:"section_key"`
		ChecklistItem string            `json:"checklist_item,omitempty"`
		FileName      string            `json:"file_name"`
		FileSize      int64             `json:"file_size,omitempty"`
		FileType      string            `json:"file_type,omitempty"`
		StoragePath   string            `json:"storage_path"`
		ScanStatus    string            `json:"scan_status,omitempty"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.FileName == "" || req.StoragePath == "" {
		writeError(w, r, http.StatusBadRequest, "file_name and storage_path are required")
		return
	}
	doc, err := a.store.InsertDocument(r.Context(), intake.Document{
		ApplicationID: app.ID,
		SectionKey:    req.SectionKey,
		ChecklistItem: req.ChecklistItem,
		FileName:      req.FileName,
		FileSize:      req.FileSize,
		FileType:      req.FileType,
		StoragePath:   req.StoragePath,
		ScanStatus:    req.ScanStatus,
		UploadedBy:    user.ID,
	})
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// handleDocumentResource routes /v1/documents/{id} and /v1/documents/{id}/url.
func (a *API) handleDocumentResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	segs := strings.Split(rest, "/")
	if len(segs) == 0 || segs[0] == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	docID := segs[0]

	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	doc, err := a.store.GetDocument(r.Context(), docID)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	app, err := a.store.GetApplication(r.Context(), doc.ApplicationID)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	if !canAccess(user, app) {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}

	switch {
	case len(segs) == 1 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, doc)
	case len(segs) == 1 && r.Method == http.MethodDelete:
		if err := a.store.SoftDeleteDocument(r.Context(), docID); err != nil {
			handleStoreError(w, r, err)
			return
		}
		a.recorder.Record(r.Context(), intake.AuditEntry{
			ApplicationID: doc.ApplicationID,
			Action:        "document_deleted",
			SectionKey:    doc.SectionKey,
			Details:       map[string]any{"file_name": doc.FileName},
		})
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case len(segs) == 2 && segs[1] == "url" && r.Method == http.MethodGet:
		url, err := a.review.DocumentURL(r.Context(), docID)
		if err != nil {
			handleStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	case len(segs) == 1:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	default:
		writeError(w, r, http.StatusNotFound, "not found")
	}
}

// handleFileDownload streams a blob when the query token matches the path.
func (a *API) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.blobs == nil || a.signer == nil {
		writeError(w, r, http.StatusNotImplemented, "downloads are not configured")
		return
	}
	objectPath := strings.TrimPrefix(r.URL.Path, "/files/")
	token := r.URL.Query().Get("token")
	if err := a.signer.Verify(token, objectPath); err != nil {
		writeError(w, r, http.StatusForbidden, "invalid or expired link")
		return
	}
	rc, err := a.blobs.Open(r.Context(), objectPath)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not found")
			return
		}
		handleStoreError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", path.Base(objectPath)))
	if _, err := io.Copy(w, rc); err != nil {
		obs.LogRequest(map[string]any{
			"level": "error",
			"msg":   "stream blob",
			"path":  obs.CanonicalPath(r.URL.Path),
			"error": err.Error(),
		})
	}
}
