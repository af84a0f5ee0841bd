package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brandflow/brandflow/internal/cache"
	"github.com/brandflow/brandflow/internal/storage"
	"github.com/brandflow/brandflow/internal/telemetry"
)

// Record is one execution-log entry in the "flows" collection. Records are
// append-only and never read back by flows.
type Record struct {
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name"`
	Input      json.RawMessage `json:"input"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"durationMs"`
	Success    bool            `json:"success"`
	CacheHit   bool            `json:"cacheHit,omitempty"`
	Fallback   bool            `json:"fallback,omitempty"`
	Shared     bool            `json:"shared,omitempty"`
	CacheKey   string          `json:"cacheKey,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Recorder persists flow results: the cache entry first, then the log
// record. Both writes are best-effort; failures are logged and counted.
type Recorder struct {
	store   storage.DocumentStore
	logger  *zap.Logger
	metrics telemetry.Recorder
	clock   storage.Clock
}

// NewRecorder creates a Recorder.
func NewRecorder(store storage.DocumentStore, logger *zap.Logger, metrics telemetry.Recorder, clock storage.Clock) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.Noop{}
	}
	if clock == nil {
		clock = storage.SystemClock{}
	}
	return &Recorder{store: store, logger: logger, metrics: metrics, clock: clock}
}

// Success writes output under key (when gw is non-nil) and appends a
// success record. It returns the appended record's id, or "" if the
// append failed.
func (r *Recorder) Success(ctx context.Context, name string, gw *cache.Gateway, key string, input, output any, d time.Duration, fallback bool) string {
	if gw != nil && key != "" {
		if _, err := gw.Store(ctx, key, output, input); err != nil {
			r.logger.Warn("cache write failed",
				zap.String("flow", name), zap.String("key", key), zap.Error(err))
			r.metrics.RecordPersistenceFailure(ctx, name, "cache_write")
		}
	}
	return r.append(ctx, Record{
		Name:       name,
		Input:      marshalOrNull(input),
		Output:     marshalOrNull(output),
		DurationMs: d.Milliseconds(),
		Success:    true,
		Fallback:   fallback,
		CacheKey:   key,
	})
}

// CacheHit appends a success record for a result served from cache.
func (r *Recorder) CacheHit(ctx context.Context, name, key string, input any, payload json.RawMessage, d time.Duration) string {
	return r.append(ctx, Record{
		Name:       name,
		Input:      marshalOrNull(input),
		Output:     payload,
		DurationMs: d.Milliseconds(),
		Success:    true,
		CacheHit:   true,
		CacheKey:   key,
	})
}

// Shared appends a success record for a caller that received another
// caller's concurrent generation. Only the generating call writes the cache.
func (r *Recorder) Shared(ctx context.Context, name, key string, input, output any, d time.Duration, fallback bool) string {
	return r.append(ctx, Record{
		Name:       name,
		Input:      marshalOrNull(input),
		Output:     marshalOrNull(output),
		DurationMs: d.Milliseconds(),
		Success:    true,
		Fallback:   fallback,
		Shared:     true,
		CacheKey:   key,
	})
}

// Failure appends a failed record. No cache entry is written; the caller
// returns runErr after this.
func (r *Recorder) Failure(ctx context.Context, name string, input any, runErr error, d time.Duration) string {
	return r.append(ctx, Record{
		Name:       name,
		Input:      marshalOrNull(input),
		Error:      runErr.Error(),
		DurationMs: d.Milliseconds(),
		Success:    false,
	})
}

func (r *Recorder) append(ctx context.Context, rec Record) string {
	rec.Timestamp = r.clock.Now().UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		r.logger.Warn("encoding execution record failed", zap.String("flow", rec.Name), zap.Error(err))
		return ""
	}
	doc, err := r.store.Append(ctx, storage.CollectionFlows, data)
	if err != nil {
		r.logger.Warn("execution log append failed", zap.String("flow", rec.Name), zap.Error(err))
		r.metrics.RecordPersistenceFailure(ctx, rec.Name, "log_append")
		return ""
	}
	return doc.Key
}

// ListRecords returns the most recent execution records, newest first.
func ListRecords(ctx context.Context, store storage.DocumentStore, limit int) ([]Record, error) {
	docs, err := store.List(ctx, storage.CollectionFlows, limit)
	if err != nil {
		return nil, fmt.Errorf("listing execution records: %w", err)
	}
	out := make([]Record, 0, len(docs))
	for _, d := range docs {
		var rec Record
		if err := json.Unmarshal(d.Data, &rec); err != nil {
			continue
		}
		rec.ID = d.Key
		out = append(out, rec)
	}
	return out, nil
}

func marshalOrNull(v any) json.RawMessage {
	if raw, ok := v.(json.RawMessage); ok && len(raw) > 0 {
		return raw
	}
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
