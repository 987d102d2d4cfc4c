package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tphummel/insight_hub/internal/auth"
	"github.com/tphummel/insight_hub/internal/datasource"
	"github.com/tphummel/insight_hub/internal/db"
	"github.com/tphummel/insight_hub/internal/demo"
	"github.com/tphummel/insight_hub/internal/handlers"
	"github.com/tphummel/insight_hub/internal/hubapi"
	"github.com/tphummel/insight_hub/internal/metrics"
	"github.com/tphummel/insight_hub/internal/middleware"
	"github.com/tphummel/insight_hub/internal/session"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

type config struct {
	jwtSecret string
	username  string
	password  string
	dbPath    string
	port      string

	// When set, the service runs in connected mode and delegates dataset
	// operations to the upstream API instead of processing locally.
	upstreamURL      string
	upstreamUsername string
	upstreamPassword string

	seedDemo bool
}

// loadConfig reads service configuration from environment variables and
// applies defaults. It returns an error when a required variable is absent.
func loadConfig() (config, error) {
	cfg := config{
		jwtSecret: os.Getenv("JWT_SECRET"),
		username:  os.Getenv("DASH_USERNAME"),
		password:  os.Getenv("DASH_PASSWORD"),
		dbPath:    os.Getenv("DB_PATH"),
		port:      os.Getenv("PORT"),

		upstreamURL:      os.Getenv("UPSTREAM_API_URL"),
		upstreamUsername: os.Getenv("UPSTREAM_USERNAME"),
		upstreamPassword: os.Getenv("UPSTREAM_PASSWORD"),

		seedDemo: os.Getenv("SEED_DEMO") == "true",
	}
	if cfg.jwtSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if cfg.username == "" {
		return cfg, fmt.Errorf("DASH_USERNAME environment variable is required")
	}
	if cfg.password == "" {
		return cfg, fmt.Errorf("DASH_PASSWORD environment variable is required")
	}
	if cfg.upstreamURL != "" && (cfg.upstreamUsername == "" || cfg.upstreamPassword == "") {
		return cfg, fmt.Errorf("UPSTREAM_USERNAME and UPSTREAM_PASSWORD are required when UPSTREAM_API_URL is set")
	}
	if cfg.dbPath == "" {
		cfg.dbPath = "./insight_hub.db"
	}
	if cfg.port == "" {
		cfg.port = "8080"
	}
	return cfg, nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	ctx := context.Background()

	h := &handlers.Handler{
		Auth:    auth.New(cfg.jwtSecret, cfg.username, cfg.password),
		Version: version,
		Commit:  commit,
	}

	var database *db.DB
	if cfg.upstreamURL != "" {
		client, err := hubapi.NewClient(cfg.upstreamURL)
		if err != nil {
			log.Fatalf("invalid upstream API URL: %v", err)
		}
		if _, err := client.Login(ctx, cfg.upstreamUsername, cfg.upstreamPassword); err != nil {
			log.Fatalf("upstream login failed: %v", err)
		}
		slog.Info("running in connected mode", "upstream", cfg.upstreamURL)
		h.Upstream = client
		h.Source = datasource.NewRemote(client)
	} else {
		database, err = db.New(cfg.dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		local, err := datasource.NewLocal(database)
		if err != nil {
			log.Fatalf("failed to restore upload history: %v", err)
		}
		if cfg.seedDemo {
			count, err := database.DatasetCount()
			if err != nil {
				log.Fatalf("failed to count datasets: %v", err)
			}
			if count == 0 {
				rng := rand.New(rand.NewSource(time.Now().UnixNano()))
				if err := demo.Seed(ctx, local, rng); err != nil {
					log.Fatalf("failed to seed demo data: %v", err)
				}
				slog.Info("seeded demo datasets")
			}
		}
		slog.Info("running in local mode", "db_path", cfg.dbPath)
		h.DB = database
		h.Source = local
	}

	h.Session = session.New(h.Source)
	if err := h.Session.Bootstrap(ctx); err != nil {
		slog.Warn("failed to load most recent dataset", "error", err)
	}

	metrics.Register(h.Session)

	mux := http.NewServeMux()

	// Health check — no auth
	mux.HandleFunc("GET /healthz", h.Health)

	// Prometheus metrics — no auth
	mux.Handle("GET /metrics", metrics.Handler())

	// API docs — no auth
	mux.HandleFunc("GET /openapi.yaml", handlers.OpenAPISpec)
	mux.HandleFunc("GET /docs", handlers.Docs)

	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, metrics.Middleware(pattern, fn))
	}
	authed := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, metrics.Middleware(pattern, middleware.Auth(h.Auth, fn)))
	}

	route("POST /api/v1/token", h.Token)
	route("POST /api/v1/datasets", h.UploadDataset)
	route("GET /api/v1/datasets/latest", h.LatestDataset)
	route("GET /api/v1/datasets/history", h.HistoryList)
	route("GET /api/v1/datasets/{id}", h.DatasetSummary)
	route("GET /api/v1/datasets/{id}/records", h.DatasetRecords)
	route("POST /api/v1/datasets/{id}/select", h.SelectDataset)
	route("GET /api/v1/records", h.QueryRecords)

	// Report exports require a token
	authed("GET /api/v1/export/pdf", h.ExportPDF)
	authed("GET /api/v1/export/xlsx", h.ExportXLSX)

	skip := func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	}
	handler := middleware.RequestLogger(slog.Default(), skip, mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", cfg.port)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	if database != nil {
		if err := database.Close(); err != nil {
			log.Printf("database close error: %v", err)
		}
	}
	log.Println("server stopped")
}
