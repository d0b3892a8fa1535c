package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boldx.dev/intake/internal/blob"
	"boldx.dev/intake/internal/config"
	"boldx.dev/intake/internal/httpapi"
	"boldx.dev/intake/internal/identity"
	"boldx.dev/intake/internal/intake"
	"boldx.dev/intake/internal/notify"
	"boldx.dev/intake/internal/obs"
	"boldx.dev/intake/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()
	env := config.Load()

	// Record store: Postgres when a DSN is set, in-memory otherwise.
	var (
		store intake.Store
		ready httpapi.ReadyProbe
	)
	if env.DSN != "" {
		pgStore, err := pg.Open(env.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
		ready = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		log.Println("INTAKE_PG_DSN not set; using the in-memory store")
		store = intake.NewInMemory()
	}

	// Document storage.
	var blobs blob.Store
	if env.BlobDir != "" {
		fsStore, err := blob.NewFS(env.BlobDir)
		if err != nil {
			log.Fatalf("open blob dir: %v", err)
		}
		blobs = fsStore
	} else {
		blobs = blob.NewMemory()
	}

	urlSecret := env.URLSecret
	if urlSecret == "" {
		urlSecret = os.Getenv("INTAKE_AUTH_SECRET")
	}
	var signer *blob.Signer
	if urlSecret != "" {
		var err error
		signer, err = blob.NewSigner([]byte(urlSecret), "/files", env.URLTTL)
		if err != nil {
			log.Fatalf("url signer: %v", err)
		}
	}

	api := httpapi.New(store, httpapi.Options{
		Blobs:    blobs,
		Signer:   signer,
		Notifier: notify.New(env.NotifyURL),
		Broker:   identity.NewBroker(),
		Ready:    ready,
		Version:  version,
	})

	var handler http.Handler = api.Handler()
	handler = httpapi.Logging(handler)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.CORS(handler)
	handler = httpapi.RateLimit(handler, env.RateBurst, env.RatePerSec)

	srv := &http.Server{
		Addr:              env.Addr,
		Handler:           handler,
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting intake-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
