// Package httpapi is the HTTP layer over the intake record store.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"boldx.dev/intake/internal/admin"
	"boldx.dev/intake/internal/audit"
	"boldx.dev/intake/internal/blob"
	"boldx.dev/intake/internal/identity"
	"boldx.dev/intake/internal/intake"
	"boldx.dev/intake/internal/notify"
	"boldx.dev/intake/internal/obs"
)

// ReadyProbe checks the service's backing dependencies, typically a DB ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API wires handlers over the store, blob storage and session broker.
type API struct {
	mux        *http.ServeMux
	store      intake.Store
	blobs      blob.Store
	signer     *blob.Signer
	recorder   *audit.Recorder
	review     *admin.Service
	notifier   *notify.Client
	broker     *identity.Broker
	readyProbe ReadyProbe
	version    string
}

// Options carries the optional collaborators.
type Options struct {
	Blobs    blob.Store
	Signer   *blob.Signer
	Notifier *notify.Client
	Broker   *identity.Broker
	Ready    ReadyProbe
	Version  string
}

func New(store intake.Store, opts Options) *API {
	a := &API{
		mux:        http.NewServeMux(),
		store:      store,
		blobs:      opts.Blobs,
		signer:     opts.Signer,
		recorder:   audit.NewRecorder(store),
		review:     admin.New(store, opts.Signer),
		notifier:   opts.Notifier,
		broker:     opts.Broker,
		readyProbe: opts.Ready,
		version:    opts.Version,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// sessions
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	// applications and nested resources
	a.mux.HandleFunc("/v1/applications", a.handleApplicationsCollection)
	a.mux.HandleFunc("/v1/applications/", a.handleApplicationResource)

	// documents
	a.mux.HandleFunc("/v1/documents/", a.handleDocumentResource)

	// signed downloads
	a.mux.HandleFunc("/files/", a.handleFileDownload)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RequestID(h)
	return obs.Instrument(h)
}
