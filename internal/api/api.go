// Package api serves the flows over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brandflow/brandflow/internal/cache"
	"github.com/brandflow/brandflow/internal/catalog"
	"github.com/brandflow/brandflow/internal/flow"
	"github.com/brandflow/brandflow/internal/leads"
	"github.com/brandflow/brandflow/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// CacheHeader reports whether a flow response came from the cache.
const CacheHeader = "X-Brandflow-Cache"

// Deps holds what the HTTP handler serves.
type Deps struct {
	Flows        *Flows
	Catalog      *catalog.Catalog
	DefaultModel string
	Store        storage.DocumentStore
	Leads        *leads.Forwarder
	Token        string
	Logger       *zap.Logger
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

// NewHandler returns the brandflow HTTP API.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	logger := deps.Logger.Named("api")

	r := chi.NewRouter()
	r.Use(requestLogger(logger))

	r.Get("/health", handleHealth)
	r.Get("/ready", handleReady(deps.Store))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Post("/v1/flows/brand-positioning", handleFlow(deps.Flows.Brand, logger))
	r.Post("/v1/flows/chatbot", handleFlow(deps.Flows.Chatbot, logger))
	r.Post("/v1/flows/content-drafter", handleFlow(deps.Flows.Content, logger))
	r.Post("/v1/flows/competitor-watch", handleFlow(deps.Flows.Competitor, logger))
	r.Post("/v1/leads", handleLead(deps.Leads))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/v1/flows", handleListFlows(deps.Catalog, deps.DefaultModel))
		r.Get("/v1/flow-runs", handleListRuns(deps.Store))
		r.Get("/v1/cache/{key}", handleGetCache(deps.Store))
		r.Delete("/v1/cache/{key}", handleDeleteCache(deps.Store))
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = uuid.New().String()
			}
			w.Header().Set("X-Request-Id", id)

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Debug("request",
				zap.String("id", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.status),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleReady(store storage.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable_error", "store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func handleFlow[In, Out any](f *flow.Flow[In, Out], logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		// An empty body is the zero input; Validate decides whether it is
		// acceptable.
		var in In
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		res, err := f.Run(r.Context(), in)
		if err != nil {
			writeFlowError(w, logger, f.Name(), err)
			return
		}
		if res.CacheHit {
			w.Header().Set(CacheHeader, "hit")
		} else {
			w.Header().Set(CacheHeader, "miss")
		}
		writeJSON(w, http.StatusOK, res.Output)
	}
}

// writeFlowError maps flow errors onto the error envelope. Upstream and
// internal details are logged, not returned.
func writeFlowError(w http.ResponseWriter, logger *zap.Logger, name string, err error) {
	var ve *flow.ValidationError
	switch {
	case errors.As(err, &ve):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", ve.Err)
	case errors.Is(err, flow.ErrFlowDisabled):
		httpError(w, http.StatusNotFound, "not_found_error", "flow %s is disabled", name)
	case flow.IsGeneration(err):
		logger.Warn("generation failed", zap.String("flow", name), zap.Error(err))
		httpError(w, http.StatusBadGateway, "upstream_error", "content generation failed, please try again")
	default:
		logger.Error("flow failed", zap.String("flow", name), zap.Error(err))
		httpError(w, http.StatusInternalServerError, "api_error", "internal error")
	}
}

func handleLead(fwd *leads.Forwarder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && fwd != nil {
			if out, err := fwd.Forward(r.Context(), body); err == nil {
				w.Header().Set("Content-Type", "application/json")
				w.Write(out)
				return
			}
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Failed to submit lead",
		})
	}
}

func handleListFlows(cat *catalog.Catalog, defaultModel string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cat.Entries(defaultModel))
	}
}

func handleListRuns(store storage.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
				return
			}
			limit = n
		}
		recs, err := flow.ListRecords(r.Context(), store, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list runs: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func handleGetCache(store storage.DocumentStore) http.HandlerFunc {
	gw := cache.New(store, 0, nil)
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		entry, err := gw.Get(r.Context(), key)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "no cache entry %q", key)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read cache: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func handleDeleteCache(store storage.DocumentStore) http.HandlerFunc {
	gw := cache.New(store, 0, nil)
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		err := gw.Purge(r.Context(), key)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "no cache entry %q", key)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to purge cache: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
