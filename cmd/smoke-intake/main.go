package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"boldx.dev/intake/internal/intake"
	"boldx.dev/intake/internal/intake/remote"
)

// Exercises a running intake-api end to end: session, application, section
// save/submit, document metadata and audit trail.
func main() {
	base := os.Getenv("INTAKE_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	token, err := mintToken(base, "smoke-user", "smoke@acme.example")
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}
	svc := remote.Dial(base, token)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	app, err := svc.CreateApplication(ctx, intake.NewApplication{CompanyName: "Smoke Test Co"})
	if err != nil {
		log.Fatalf("create application: %v", err)
	}

	sec, err := svc.SaveSection(ctx, app.ID, intake.SectionCompany, intake.SectionData{
		"legal_name":    "Smoke Test Co LLC",
		"contact_email": "smoke@acme.example",
	})
	if err != nil {
		log.Fatalf("save section: %v", err)
	}
	if sec.Status != intake.SectionInProgress {
		log.Fatalf("section status after save: %s", sec.Status)
	}

	sec, err = svc.SubmitSection(ctx, app.ID, intake.SectionCompany, sec.Data)
	if err != nil {
		log.Fatalf("submit section: %v", err)
	}
	if sec.Status != intake.SectionSubmitted || sec.SubmittedAt == nil {
		log.Fatalf("section not submitted: %+v", sec)
	}

	secs, err := svc.ListSections(ctx, app.ID)
	if err != nil {
		log.Fatalf("list sections: %v", err)
	}
	if len(secs) != len(intake.Sections) {
		log.Fatalf("expected %d sections, got %d", len(intake.Sections), len(secs))
	}

	doc, err := svc.InsertDocument(ctx, intake.Document{
		ApplicationID: app.ID,
		SectionKey:    intake.SectionDocuments,
		ChecklistItem: "pitch_deck",
		FileName:      "smoke.pdf",
		StoragePath:   app.ID + "/documents/smoke.pdf",
	})
	if err != nil {
		log.Fatalf("insert document: %v", err)
	}
	if doc.ScanStatus != "pending" {
		log.Fatalf("scan status: %s", doc.ScanStatus)
	}

	if _, err := svc.AppendAudit(ctx, intake.AuditEntry{
		ApplicationID: app.ID,
		Action:        "smoke_check",
	}); err != nil {
		log.Fatalf("append audit: %v", err)
	}
	entries, err := svc.ListAudit(ctx, app.ID)
	if err != nil || len(entries) == 0 {
		log.Fatalf("list audit: %v (%d entries)", err, len(entries))
	}

	fmt.Printf("✅ intake smoke test passed: application=%s\n", app.ID)
}

func mintToken(base, userID, email string) (string, error) {
	payload, _ := json.Marshal(map[string]string{"user_id": userID, "email": email})
	resp, err := http.Post(base+"/v1/auth/token", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %s", resp.Status)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}
