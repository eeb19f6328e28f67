package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/siteworker/internal/config"
	"github.com/Sternrassler/siteworker/pkg/agent"
	"github.com/Sternrassler/siteworker/pkg/cache"
	"github.com/Sternrassler/siteworker/pkg/client"
	"github.com/Sternrassler/siteworker/pkg/host"
	"github.com/Sternrassler/siteworker/pkg/logging"
	"github.com/Sternrassler/siteworker/pkg/metrics"
	"github.com/Sternrassler/siteworker/pkg/precache"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	clientCookie   = "siteworker_client"
	maxMessageSize = 64 << 10
)

type server struct {
	cfg     config.Config
	origin  *url.URL
	storage *cache.Storage
	fetcher *client.Client
	reg     *host.Registration
	proxy   *httputil.ReverseProxy
	logger  zerolog.Logger

	deployMu sync.Mutex
}

func newServer(cfg config.Config, storage *cache.Storage, fetcher *client.Client, reg *host.Registration, logger zerolog.Logger) (*server, error) {
	origin, err := cfg.OriginURL()
	if err != nil {
		return nil, err
	}
	upstream, err := cfg.UpstreamURL()
	if err != nil {
		return nil, err
	}

	s := &server{
		cfg:     cfg,
		origin:  origin,
		storage: storage,
		fetcher: fetcher,
		reg:     reg,
		logger:  logger,
	}
	s.proxy = &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = upstream.Scheme
			req.URL.Host = upstream.Host
			req.Host = upstream.Host
			if cfg.UpstreamHost != "" {
				req.Host = cfg.UpstreamHost
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Pass-through request failed")
			w.Header().Set("Cache-Status", "siteworker; fwd=bypass; detail=offline")
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}
	return s, nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware(s.logger))

	r.Get("/health", healthHandler)
	r.Get("/ready", s.readyHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Route("/_siteworker", func(r chi.Router) {
		r.Post("/message", s.messageHandler)
		r.Get("/status", s.statusHandler)
	})
	r.NotFound(s.serveSite)
	r.MethodNotAllowed(s.serveSite)
	return r
}

// newAgent builds the agent for one manifest version.
func (s *server) newAgent(m config.Manifest) (*agent.Agent, error) {
	return agent.New(agent.Config{
		Origin:          s.origin,
		Version:         m.Version,
		CacheNamePrefix: s.cfg.CacheNamePrefix,
		Manifest:        m.Assets,
		RootDocument:    m.RootDocument,
		Storage:         s.storage,
		Fetcher:         s.fetcher,
		Host:            s.reg,
		Precache: precache.Config{
			MaxConcurrency: s.cfg.PrecacheConcurrency,
			Timeout:        s.cfg.PrecacheTimeout,
		},
	})
}

// reload reads the manifest and registers a new agent if its version
// differs from the active or waiting one.
func (s *server) reload(ctx context.Context) error {
	m, err := s.cfg.Manifest()
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	return s.deploy(ctx, m)
}

func (s *server) deploy(ctx context.Context, m config.Manifest) error {
	s.deployMu.Lock()
	defer s.deployMu.Unlock()

	for _, current := range []*agent.Agent{s.reg.Active(), s.reg.Waiting()} {
		if current != nil && current.Version() == m.Version {
			s.logger.Info().Str("version", m.Version).Msg("Version already registered")
			return nil
		}
	}

	a, err := s.newAgent(m)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	if err := s.reg.Register(ctx, a); err != nil {
		s.logger.Error().Err(err).Str("version", m.Version).Msg("Agent activation failed")
	}
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.reg.Active() == nil {
		http.Error(w, "no active agent", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.storage.Ping(ctx); err != nil {
		http.Error(w, fmt.Sprintf("storage unavailable: %v", err), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "READY")
}

// authorized reports whether r carries the configured message token.
func (s *server) authorized(r *http.Request) bool {
	if s.cfg.MessageToken == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.MessageToken)) == 1
}

func (s *server) messageHandler(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="siteworker"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var msg agent.Message
	if err := json.NewDecoder(io.LimitReader(r.Body, maxMessageSize)).Decode(&msg); err != nil {
		http.Error(w, "invalid message", http.StatusBadRequest)
		return
	}

	target := s.reg.Active()
	if r.URL.Query().Get("target") == "waiting" {
		target = s.reg.Waiting()
	}
	if target == nil {
		http.Error(w, "no such agent", http.StatusNotFound)
		return
	}

	if err := target.HandleMessage(r.Context(), &msg); err != nil {
		s.logger.Error().Err(err).Str("type", string(msg.Type)).Msg("Message handling failed")
		http.Error(w, "message failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusResponse struct {
	Active  string   `json:"active,omitempty"`
	Waiting string   `json:"waiting,omitempty"`
	Caches  []string `json:"caches"`
	Clients int      `json:"clients"`
	// Controllers counts clients per controlling version.
	Controllers map[string]int `json:"controllers"`
	Backend     string         `json:"backend"`
}

const uncontrolled = "uncontrolled"

func (s *server) statusHandler(w http.ResponseWriter, r *http.Request) {
	clients := s.reg.Clients().List()
	status := statusResponse{
		Clients:     len(clients),
		Controllers: make(map[string]int),
		Backend:     s.storage.Backend(),
	}
	for _, cl := range clients {
		version := cl.Controller
		if version == "" {
			version = uncontrolled
		}
		status.Controllers[version]++
	}
	if a := s.reg.Active(); a != nil {
		status.Active = a.Version()
	}
	if a := s.reg.Waiting(); a != nil {
		status.Waiting = a.Version()
	}
	caches, err := s.storage.Keys(r.Context())
	if err != nil {
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	status.Caches = caches

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// serveSite hands every site request to the active agent.
func (s *server) serveSite(w http.ResponseWriter, r *http.Request) {
	u := requestURL(r)
	if !agent.SameOrigin(s.origin, u) {
		http.Error(w, "misdirected request", http.StatusMisdirectedRequest)
		return
	}
	s.identify(w, r)

	a := s.reg.Active()
	if a == nil {
		s.passThrough(w, r)
		return
	}

	req := r.Clone(r.Context())
	req.URL = u
	req.RequestURI = ""
	// Content coding is negotiated upstream; cached bodies are decoded
	req.Header.Del("Accept-Encoding")

	out, err := a.Fetch(r.Context(), req)
	if err != nil {
		if errors.Is(err, agent.ErrNoResponse) {
			w.Header().Set("Cache-Status", "siteworker; fwd=miss; detail=offline")
			http.Error(w, "site unavailable offline", http.StatusBadGateway)
			return
		}
		s.logger.Error().Err(err).Str("url", u.String()).Msg("Dispatch failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if out.Strategy == agent.StrategyPassThrough {
		s.passThrough(w, r)
		return
	}

	s.writeResponse(w, out.Response, cacheStatus(out))
}

func (s *server) passThrough(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Status", "siteworker; fwd=bypass")
	s.proxy.ServeHTTP(w, r)
}

// identify attaches the request to a client. Navigations start a new
// page under the active agent; other requests keep the client alive.
func (s *server) identify(w http.ResponseWriter, r *http.Request) string {
	var id string
	if c, err := r.Cookie(clientCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     clientCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   s.origin.Scheme == "https",
		})
	}

	navigate := r.Header.Get("Sec-Fetch-Mode") == "navigate" || agent.Destination(r) == "document"
	if navigate || !s.reg.Clients().Touch(id) {
		s.reg.Attach(id)
	}
	return id
}

// requestURL rebuilds the absolute URL the client asked for.
func requestURL(r *http.Request) *url.URL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(p, ",")[0]))
	}
	host := r.Host
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = strings.TrimSpace(strings.Split(h, ",")[0])
	}
	return &url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
	}
}

func (s *server) writeResponse(w http.ResponseWriter, resp *http.Response, status string) {
	defer resp.Body.Close()
	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	for _, h := range client.HopHeaders() {
		w.Header().Del(h)
	}
	w.Header().Set("Cache-Status", status)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Debug().Err(err).Str("cache_status", status).Msg("Response copy failed")
	}
}
