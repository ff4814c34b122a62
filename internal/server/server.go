// Package server exposes a loaded dataset over a read-only HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/jellydator/ttlcache/v3"

	"as2org/internal/loader"
	"as2org/internal/metrics"
	"as2org/internal/model"
	"as2org/internal/snapshot"
)

const (
	opInfo        = "info"
	opSiblings    = "siblings"
	opAreSiblings = "are_siblings"
	opOrg         = "org"

	snapshotsCacheKey = "snapshots"
)

type Config struct {
	Logger  *slog.Logger
	Dataset *loader.Dataset

	// Optional.
	Lister           snapshot.Lister
	Metrics          *metrics.Registry
	SnapshotCacheTTL time.Duration
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Dataset == nil || c.Dataset.Index == nil {
		return fmt.Errorf("dataset is required")
	}
	if c.SnapshotCacheTTL <= 0 {
		c.SnapshotCacheTTL = time.Hour
	}
	return nil
}

type Server struct {
	log   *slog.Logger
	cfg   Config
	cache *ttlcache.Cache[string, []snapshot.Snapshot]
	mux   chi.Router
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	s := &Server{
		log: cfg.Logger,
		cfg: cfg,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, []snapshot.Snapshot](cfg.SnapshotCacheTTL),
			ttlcache.WithDisableTouchOnHit[string, []snapshot.Snapshot](),
		),
	}
	s.mux = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/as/{asn}", s.handleASInfo)
		r.Get("/as/{asn}/siblings", s.handleSiblings)
		r.Get("/siblings", s.handleAreSiblings)
		r.Get("/org/{orgID}", s.handleOrg)
		r.Get("/snapshots", s.handleSnapshots)
	})
	return r
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests
// for at most shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("server: shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("server: stopped")
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg})
}

func (s *Server) asnParam(w http.ResponseWriter, r *http.Request, raw string) (uint32, bool) {
	asn, err := model.ParseASN(raw)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return asn, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.cfg.Dataset.Manifest)
}

func (s *Server) handleASInfo(w http.ResponseWriter, r *http.Request) {
	asn, ok := s.asnParam(w, r, chi.URLParam(r, "asn"))
	if !ok {
		return
	}
	info, found := s.cfg.Dataset.ASInfo(asn)
	s.cfg.Metrics.ObserveLookup(opInfo, found)
	if !found {
		s.respondError(w, r, http.StatusNotFound, fmt.Sprintf("AS%d not found", asn))
		return
	}
	render.JSON(w, r, info)
}

type siblingsResponse struct {
	ASN      uint32         `json:"asn"`
	Siblings []model.ASInfo `json:"siblings"`
}

func (s *Server) handleSiblings(w http.ResponseWriter, r *http.Request) {
	asn, ok := s.asnParam(w, r, chi.URLParam(r, "asn"))
	if !ok {
		return
	}
	sibs, found := s.cfg.Dataset.Siblings(asn)
	s.cfg.Metrics.ObserveLookup(opSiblings, found)
	if !found {
		s.respondError(w, r, http.StatusNotFound, fmt.Sprintf("AS%d not found", asn))
		return
	}
	render.JSON(w, r, siblingsResponse{ASN: asn, Siblings: sibs})
}

type areSiblingsResponse struct {
	A        uint32 `json:"a"`
	B        uint32 `json:"b"`
	Siblings bool   `json:"siblings"`
}

func (s *Server) handleAreSiblings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, ok := s.asnParam(w, r, q.Get("a"))
	if !ok {
		return
	}
	b, ok := s.asnParam(w, r, q.Get("b"))
	if !ok {
		return
	}
	same := s.cfg.Dataset.AreSiblings(a, b)
	s.cfg.Metrics.ObserveLookup(opAreSiblings, same)
	render.JSON(w, r, areSiblingsResponse{A: a, B: b, Siblings: same})
}

type orgResponse struct {
	model.OrgRecord
	ASNs []uint32 `json:"asns"`
}

func (s *Server) handleOrg(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	org, found := s.cfg.Dataset.Org(orgID)
	s.cfg.Metrics.ObserveLookup(opOrg, found)
	if !found {
		s.respondError(w, r, http.StatusNotFound, fmt.Sprintf("organization %q not found", orgID))
		return
	}
	asns, _ := s.cfg.Dataset.OrgASNs(orgID)
	if asns == nil {
		asns = []uint32{}
	}
	render.JSON(w, r, orgResponse{OrgRecord: org, ASNs: asns})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Lister == nil {
		s.respondError(w, r, http.StatusNotImplemented, "snapshot discovery is not configured")
		return
	}
	if item := s.cache.Get(snapshotsCacheKey); item != nil {
		render.JSON(w, r, item.Value())
		return
	}

	snaps, err := s.cfg.Lister.List(r.Context())
	if err != nil {
		s.log.Error("server: failed to list snapshots", "error", err)
		s.respondError(w, r, http.StatusBadGateway, "failed to list snapshots")
		return
	}
	s.cache.Set(snapshotsCacheKey, snaps, ttlcache.DefaultTTL)
	render.JSON(w, r, snaps)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Debug("server: request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
