package web

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hpungsan/unicorns/internal/config"
	"github.com/hpungsan/unicorns/internal/logger"
	"github.com/hpungsan/unicorns/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

//go:embed help.md
var helpMarkdown []byte

// NewHandlers wires the handlers to a container and the embedded templates.
func NewHandlers(st *store.Store, cfg *config.Config, log logger.Logger, version string) *Handlers {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic("web: template sub-FS: " + err.Error())
	}

	if log == nil {
		log = logger.GetDefault()
	}

	return &Handlers{
		store:    st,
		cfg:      cfg,
		renderer: NewRenderer(templateSub, version, log),
		log:      log,
		help:     renderMarkdown(helpMarkdown),
	}
}

// Routes returns the UI mux wrapped with security headers.
func (h *Handlers) Routes() http.Handler {
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: static sub-FS: " + err.Error())
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/unicorns", http.StatusFound)
	})
	mux.HandleFunc("GET /unicorns", h.HandleList)
	mux.HandleFunc("POST /unicorns", h.HandleCreate)
	mux.HandleFunc("POST /unicorns/sort", h.HandleSort)
	mux.HandleFunc("GET /unicorns/new", h.HandleNew)
	mux.HandleFunc("GET /unicorns/{id}/edit", h.HandleEdit)
	mux.HandleFunc("POST /unicorns/{id}", h.HandleUpdate)
	mux.HandleFunc("DELETE /unicorns/{id}", h.HandleDelete)
	mux.HandleFunc("POST /unicorns/{id}/delete", h.HandleDelete)
	mux.HandleFunc("GET /help", h.HandleHelp)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return securityHeaders(mux)
}

// NewServer creates and configures the HTTP server for the web UI.
func NewServer(st *store.Store, cfg *config.Config, log logger.Logger, version string) *http.Server {
	h := NewHandlers(st, cfg, log, version)
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts srv and shuts it down gracefully on SIGINT/SIGTERM or when ctx ends.
// name labels the startup log line.
func Run(ctx context.Context, srv *http.Server, log logger.Logger, name string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info(name+" running", "url", "http://"+srv.Addr)

	if strings.HasPrefix(srv.Addr, "0.0.0.0") || strings.HasPrefix(srv.Addr, "[::]") || strings.HasPrefix(srv.Addr, ":") {
		log.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down", "server", name)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
