// Package remote implements the record store contract over the intake HTTP
// API, so authenticated clients read and write through the same surface the
// in-process stores provide.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"boldx.dev/intake/internal/intake"
)

// Client talks to one intake API server on behalf of one bearer token.
type Client struct {
	base  string
	token string
	hc    *http.Client
}

var _ intake.Store = (*Client)(nil)

// Option adjusts the client.
type Option func(*Client)

// WithHTTPClient swaps the underlying transport, e.g. for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// Dial builds a client for the given base URL and bearer token.
func Dial(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		hc:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createApplicationRequest struct {
	CompanyName    string                                   `json:"company_name,omitempty"`
	CompanyWebsite string                                   `json:"company_website,omitempty"`
	Status         string                                   `json:"status,omitempty"`
	SubmittedAt    *time.Time                               `json:"submitted_at,omitempty"`
	CurrentSection int                                      `json:"current_section,omitempty"`
	SectionData    map[intake.SectionKey]intake.SectionData `json:"section_data,omitempty"`
	SectionStatus  map[intake.SectionKey]string             `json:"section_status,omitempty"`
}

func (c *Client) CreateApplication(ctx context.Context, app intake.NewApplication) (intake.Application, error) {
	// The server takes the owner from the bearer token; UserID is not sent.
	req := createApplicationRequest{
		CompanyName:    app.CompanyName,
		CompanyWebsite: app.CompanyWebsite,
		Status:         app.Status,
		SubmittedAt:    app.SubmittedAt,
		CurrentSection: app.CurrentSection,
		SectionData:    app.SectionData,
		SectionStatus:  app.SectionStatus,
	}
	var out intake.Application
	err := c.do(ctx, http.MethodPost, "/v1/applications", req, &out)
	return out, err
}

func (c *Client) GetApplication(ctx context.Context, id string) (intake.Application, error) {
	var out intake.Application
	err := c.do(ctx, http.MethodGet, "/v1/applications/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) ListApplications(ctx context.Context, f intake.ApplicationFilter) ([]intake.Application, error) {
	q := url.Values{}
	if f.UserID != "" {
		q.Set("user_id", f.UserID)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.CompanySearch != "" {
		q.Set("q", f.CompanySearch)
	}
	p := "/v1/applications"
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	var out struct {
		Applications []intake.Application `json:"applications"`
	}
	if err := c.do(ctx, http.MethodGet, p, nil, &out); err != nil {
		return nil, err
	}
	return out.Applications, nil
}

func (c *Client) UpdateApplicationStatus(ctx context.Context, id, status string) error {
	body := map[string]string{"status": status}
	return c.do(ctx, http.MethodPatch, c.appPath(id, "status"), body, nil)
}

func (c *Client) SetCompanyName(ctx context.Context, id, name string) error {
	body := map[string]string{"company_name": name}
	return c.do(ctx, http.MethodPatch, c.appPath(id, "company"), body, nil)
}

func (c *Client) SetCurrentSection(ctx context.Context, id string, number int) error {
	body := map[string]int{"current_section": number}
	return c.do(ctx, http.MethodPut, c.appPath(id, "current-section"), body, nil)
}

func (c *Client) GetSection(ctx context.Context, appID string, key intake.SectionKey) (intake.Section, error) {
	var out intake.Section
	err := c.do(ctx, http.MethodGet, c.sectionPath(appID, key, ""), nil, &out)
	return out, err
}

func (c *Client) ListSections(ctx context.Context, appID string) ([]intake.Section, error) {
	var out struct {
		Sections []intake.Section `json:"sections"`
	}
	if err := c.do(ctx, http.MethodGet, c.appPath(appID, "sections"), nil, &out); err != nil {
		return nil, err
	}
	return out.Sections, nil
}

func (c *Client) SaveSection(ctx context.Context, appID string, key intake.SectionKey, data intake.SectionData) (intake.Section, error) {
	body := map[string]any{"data": data}
	var out intake.Section
	err := c.do(ctx, http.MethodPut, c.sectionPath(appID, key, ""), body, &out)
	return out, err
}

func (c *Client) SubmitSection(ctx context.Context, appID string, key intake.SectionKey, data intake.SectionData) (intake.Section, error) {
	body := map[string]any{"data": data}
	var out intake.Section
	err := c.do(ctx, http.MethodPost, c.sectionPath(appID, key, "submit"), body, &out)
	return out, err
}

func (c *Client) SetReviewerNotes(ctx context.Context, appID string, key intake.SectionKey, notes string) error {
	body := map[string]string{"notes": notes}
	return c.do(ctx, http.MethodPut, c.sectionPath(appID, key, "notes"), body, nil)
}

func (c *Client) SetSectionStatus(ctx context.Context, appID string, key intake.SectionKey, status string) error {
	body := map[string]string{"status": status}
	return c.do(ctx, http.MethodPut, c.sectionPath(appID, key, "status"), body, nil)
}

func (c *Client) InsertDocument(ctx context.Context, doc intake.Document) (intake.Document, error) {
	body := map[string]any{
		"section_key":  doc.SectionKey,
		"file_name":    doc.FileName,
		"storage_path": doc.StoragePath,
	}
	if doc.ChecklistItem != "" {
		body["checklist_item"] = doc.ChecklistItem
	}
	if doc.FileSize > 0 {
		body["file_size"] = doc.FileSize
	}
	if doc.FileType != "" {
		body["file_type"] = doc.FileType
	}
	if doc.ScanStatus != "" {
		body["scan_status"] = doc.ScanStatus
	}
	var out intake.Document
	err := c.do(ctx, http.MethodPost, c.appPath(doc.ApplicationID, "documents"), body, &out)
	return out, err
}

func (c *Client) ListDocuments(ctx context.Context, appID string) ([]intake.Document, error) {
	var out struct {
		Documents []intake.Document `json:"documents"`
	}
	if err := c.do(ctx, http.MethodGet, c.appPath(appID, "documents"), nil, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

func (c *Client) SoftDeleteDocument(ctx context.Context, docID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/documents/"+url.PathEscape(docID), nil, nil)
}

func (c *Client) GetDocument(ctx context.Context, docID string) (intake.Document, error) {
	var out intake.Document
	err := c.do(ctx, http.MethodGet, "/v1/documents/"+url.PathEscape(docID), nil, &out)
	return out, err
}

func (c *Client) AppendAudit(ctx context.Context, entry intake.AuditEntry) (intake.AuditEntry, error) {
	body := map[string]any{"action": entry.Action}
	if entry.SectionKey != "" {
		body["section_key"] = entry.SectionKey
	}
	if len(entry.Details) > 0 {
		body["details"] = entry.Details
	}
	var out intake.AuditEntry
	err := c.do(ctx, http.MethodPost, c.appPath(entry.ApplicationID, "audit"), body, &out)
	return out, err
}

func (c *Client) ListAudit(ctx context.Context, appID string) ([]intake.AuditEntry, error) {
	var out struct {
		Entries []intake.AuditEntry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, c.appPath(appID, "audit"), nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// DocumentURL fetches a signed download link for one document.
func (c *Client) DocumentURL(ctx context.Context, docID string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/documents/"+url.PathEscape(docID)+"/url", nil, &out)
	return out.URL, err
}

func (c *Client) appPath(id, tail string) string {
	p := "/v1/applications/" + url.PathEscape(id)
	if tail != "" {
		p += "/" + tail
	}
	return p
}

func (c *Client) sectionPath(appID string, key intake.SectionKey, action string) string {
	p := c.appPath(appID, "sections") + "/" + url.PathEscape(string(key))
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) do(ctx context.Context, method, p string, body, out any) error {
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+p, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return mapError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// mapError turns the API's error payload back into the store sentinels so
// callers branch on the same errors regardless of backend.
func mapError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	switch payload.Error {
	case intake.ErrUnknownSection.Error():
		return intake.ErrUnknownSection
	case intake.ErrReadOnly.Error():
		return intake.ErrReadOnly
	case intake.ErrInvalidStatus.Error():
		return intake.ErrInvalidStatus
	case intake.ErrNotFound.Error():
		return intake.ErrNotFound
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return intake.ErrNotFound
	case http.StatusConflict:
		return intake.ErrReadOnly
	}
	msg := payload.Error
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("intake api: %s (status %d)", msg, resp.StatusCode)
}
