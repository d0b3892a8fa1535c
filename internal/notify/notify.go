// Package notify delivers submission notifications to the review team's
// webhook. Delivery is fire-and-forget: a submission never fails because the
// notification endpoint is down.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"boldx.dev/intake/internal/obs"
)

// Summary is the notification payload for one submitted application.
type Summary struct {
	ApplicationID  string `json:"application_id"`
	CompanyName    string `json:"company_name"`
	ApplicantName  string `json:"applicant_name,omitempty"`
	ApplicantEmail string `json:"applicant_email"`
	SectionsFilled int    `json:"sections_filled"`
	FilesUploaded  int    `json:"files_uploaded"`
}

// Client posts summaries to a webhook endpoint.
type Client struct {
	endpoint string
	client   *http.Client
}

// New returns a client, or nil when no endpoint is configured. A nil client
// is safe to use; sends become no-ops.
func New(endpoint string) *Client {
	if endpoint == "" {
		return nil
	}
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers one summary synchronously.
func (c *Client) Send(ctx context.Context, s Summary) error {
	if c == nil {
		return nil
	}
	body, err := json.Marshal(s)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// SendAsync delivers in the background and logs failures. It never blocks
// the caller beyond spawning the goroutine.
func (c *Client) SendAsync(s Summary) {
	if c == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := c.Send(ctx, s); err != nil {
			obs.LogRequest(map[string]any{
				"level":          "error",
				"msg":            "notification failed",
				"application_id": s.ApplicationID,
				"error":          err.Error(),
			})
		}
	}()
}
