package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/DeafMist/news-monitor/backend/internal/audit"
	"github.com/DeafMist/news-monitor/backend/internal/config"
	"github.com/DeafMist/news-monitor/backend/internal/elasticsearch"
	"github.com/DeafMist/news-monitor/backend/internal/logger"
	"github.com/DeafMist/news-monitor/backend/internal/models"
	"github.com/DeafMist/news-monitor/backend/internal/naver"
	"github.com/DeafMist/news-monitor/backend/internal/rss"
	"github.com/DeafMist/news-monitor/backend/internal/search"
)

const (
	maxBodyBytes = 1 << 20
	pingTimeout  = 3 * time.Second
)

func main() {
	log := logger.New("api")

	envPath, err := config.LoadDotEnv()
	if err != nil {
		log.Error("load .env", slog.Any("err", err))
		os.Exit(1)
	}
	if envPath != "" {
		log.Info("loaded environment file", slog.String("path", envPath))
	}

	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	fetcher, health, err := newFetcher(cfg, log)
	if err != nil {
		log.Error("init fetch backend", slog.String("backend", cfg.Backend), slog.Any("err", err))
		os.Exit(1)
	}
	if cfg.Backend == config.BackendNaver && !cfg.HasNaverCredentials() {
		log.Warn("NAVER_CLIENT_ID or NAVER_CLIENT_SECRET not set, searches will be rejected")
	}

	var limiter *rate.Limiter
	if cfg.Fetch.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Fetch.RatePerSec), cfg.Fetch.Burst)
	}

	orchestrator := search.New(fetcher, search.Options{
		FetchLimit:   cfg.Fetch.Limit,
		FetchTimeout: cfg.Fetch.Timeout,
		Concurrency:  cfg.Fetch.Concurrency,
		Limiter:      limiter,
	}, log)

	var publisher audit.Publisher = audit.Nop{}
	if len(cfg.Audit.KafkaBrokers) > 0 {
		publisher = audit.NewKafka(cfg.Audit.KafkaBrokers, cfg.Audit.Topic, log)
		log.Info("search audit enabled", slog.String("topic", cfg.Audit.Topic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("close audit publisher", slog.Any("err", err))
		}
	}()

	srv := &server{
		log:    log,
		cfg:    cfg,
		search: orchestrator,
		health: health,
		audit:  publisher,
		now:    time.Now,
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Fetch.Timeout + 15*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.String("backend", cfg.Backend),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type healthChecker interface {
	Health(ctx context.Context) error
}

func newFetcher(cfg *config.API, log *slog.Logger) (search.Fetcher, healthChecker, error) {
	switch cfg.Backend {
	case config.BackendElasticsearch:
		es, err := elasticsearch.New(cfg.Elasticsearch.Addr, cfg.Elasticsearch.Index, log)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		if err := es.Ping(ctx); err != nil {
			log.Warn("elasticsearch not reachable, archive searches will return empty results",
				slog.String("addr", cfg.Elasticsearch.Addr),
				slog.Any("err", err),
			)
		}
		return es, es, nil
	case config.BackendRSS:
		client, err := rss.New(cfg.RSSSearchURL, &http.Client{Timeout: cfg.Fetch.Timeout}, log)
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	default:
		creds := naver.Credentials{ClientID: cfg.Naver.ClientID, ClientSecret: cfg.Naver.ClientSecret}
		return naver.New(cfg.Naver.BaseURL, creds, &http.Client{Timeout: cfg.Fetch.Timeout}, log), nil, nil
	}
}

type searcher interface {
	Run(ctx context.Context, params models.SearchParams) (*models.ResultSet, error)
}

type server struct {
	log    *slog.Logger
	cfg    *config.API
	search searcher
	health healthChecker
	audit  audit.Publisher
	now    func() time.Time
}

type errorResponse struct {
	Error string `json:"error"`
}

type newsRequest struct {
	Keywords      []string `json:"keywords"`
	CustomKeyword string   `json:"custom_keyword"`
	Logic         string   `json:"logic"`
	Display       flexInt  `json:"display"`
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*f = 0
			return nil
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("display must be an integer: %w", err)
	}
	*f = flexInt(n)
	return nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.SetHeader("Access-Control-Allow-Origin", "*"))
	r.Use(s.recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/api/news", s.handleNews)
	r.Options("/api/news", s.handlePreflight)

	if s.cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}

	return r
}

// recoverer turns handler panics into a JSON error payload.
func (s *server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.log.Error("handler panic",
				slog.Any("panic", rec),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprint(rec)})
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.health.Health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": s.cfg.Backend})
}

func (s *server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusOK)
}

func (s *server) handleNews(w http.ResponseWriter, r *http.Request) {
	var req newsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	params := models.SearchParams{
		Keywords:      req.Keywords,
		CustomKeyword: strings.TrimSpace(req.CustomKeyword),
		Logic:         models.ParseLogic(req.Logic),
		Display:       int(req.Display),
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
	}
	if params.Display <= 0 {
		params.Display = s.cfg.DefaultDisplay
	}

	results, err := s.search.Run(r.Context(), params)
	if err != nil {
		if errors.Is(err, search.ErrMissingCredentials) {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Missing Keys"})
			return
		}
		s.log.Error("news search", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	s.log.Info("news search",
		slog.Int("queries", results.Len()),
		slog.String("logic", string(params.Logic)),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ev := audit.NewEvent(params, results.Window(), results, s.now())
	if err := s.audit.Publish(r.Context(), ev); err != nil {
		s.log.Warn("publish audit event", slog.Any("err", err))
	}

	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
