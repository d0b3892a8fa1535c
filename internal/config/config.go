// Package config loads configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Env holds the configuration values for the intake service.
type Env struct {
	Addr       string        // listen address
	DSN        string        // Postgres DSN; empty runs the in-memory store
	BlobDir    string        // document storage root; empty keeps blobs in memory
	DraftDir   string        // anonymous draft storage root
	NotifyURL  string        // submission notification webhook; empty disables
	URLSecret  string        // signing secret for document download links
	URLTTL     time.Duration // signed link lifetime
	RateBurst  int           // per-IP rate limit burst
	RatePerSec int           // per-IP sustained requests per second
}

// Load reads the environment. Only the auth secret is mandatory and that is
// checked lazily by the identity package when the first token is minted.
func Load() Env {
	return Env{
		Addr:       get("INTAKE_ADDR", ":8080"),
		DSN:        get("INTAKE_PG_DSN", ""),
		BlobDir:    get("INTAKE_BLOB_DIR", ""),
		DraftDir:   get("INTAKE_DRAFT_DIR", ""),
		NotifyURL:  get("INTAKE_NOTIFY_URL", ""),
		URLSecret:  get("INTAKE_URL_SECRET", ""),
		URLTTL:     duration("INTAKE_URL_TTL", time.Hour),
		RateBurst:  integer("INTAKE_RATE_BURST", 50),
		RatePerSec: integer("INTAKE_RATE_PER_SEC", 25),
	}
}

// get returns the value of the environment variable k or def if not set.
func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func integer(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func duration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
