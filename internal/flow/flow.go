// Package flow runs cached generation flows: validate the input, serve a
// fresh cache entry if there is one, otherwise build a prompt, call the
// engine, parse the answer (falling back to a deterministic object), and
// record the result.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/brandflow/brandflow/internal/cache"
	"github.com/brandflow/brandflow/internal/engine"
	"github.com/brandflow/brandflow/internal/storage"
	"github.com/brandflow/brandflow/internal/telemetry"
)

var tracer = otel.Tracer("github.com/brandflow/brandflow/internal/flow")

// Definition describes one flow. Validate, BuildPrompt and Fallback are
// required; the rest are optional.
type Definition[In, Out any] struct {
	Name string

	// Validate rejects malformed input before any I/O. Return Invalid(...)
	// or any error; the runner wraps it as a ValidationError.
	Validate func(In) error

	// CacheKey derives the cache key. Nil disables caching.
	CacheKey func(In) (string, error)

	// Enrich runs on a cache miss, before BuildPrompt, to gather anything
	// the prompt needs from outside. Its error fails the run.
	Enrich func(ctx context.Context, in In) (In, error)

	// BuildPrompt is pure and total.
	BuildPrompt func(In) string

	// Parse turns model text into an output. Nil means DecodeJSON. A
	// non-nil error selects Fallback.
	Parse func(text string, in In) (Out, error)

	// Fallback builds the deterministic output used when Parse fails.
	Fallback func(In) Out

	// Finalize adjusts a parsed or fallback output before it is stamped,
	// e.g. to recompute derived fields.
	Finalize func(out *Out, in In)

	// AcceptEmpty routes an empty engine answer to Fallback instead of
	// failing the run.
	AcceptEmpty bool
}

// Settings are the per-flow runtime parameters from the catalog.
type Settings struct {
	Enabled         bool
	Model           string
	Temperature     float32
	MaxOutputTokens int
	CacheTTL        time.Duration
}

// Deps are the collaborators a flow needs. Engine and Store are required.
type Deps struct {
	Engine  engine.Engine
	Store   storage.DocumentStore
	Clock   storage.Clock
	Logger  *zap.Logger
	Metrics telemetry.Recorder
	// Dedupe collapses concurrent cache misses for the same key into one
	// generation. Off means last writer wins. Every caller still gets its
	// own execution record.
	Dedupe bool
}

// Result is a flow output plus how it was produced.
type Result[Out any] struct {
	Output   Out
	CacheHit bool
	Fallback bool
	// Shared is set when the output came from a concurrent caller's
	// generation.
	Shared   bool
	RecordID string
}

// Flow is a runnable Definition.
type Flow[In, Out any] struct {
	def      Definition[In, Out]
	settings Settings
	engine   engine.Engine
	gateway  *cache.Gateway
	recorder *Recorder
	clock    storage.Clock
	logger   *zap.Logger
	metrics  telemetry.Recorder
	dedupe   bool
	group    singleflight.Group
}

// New binds def to its settings and dependencies.
func New[In, Out any](def Definition[In, Out], settings Settings, deps Deps) *Flow[In, Out] {
	if deps.Clock == nil {
		deps.Clock = storage.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.Noop{}
	}
	f := &Flow[In, Out]{
		def:      def,
		settings: settings,
		engine:   deps.Engine,
		recorder: NewRecorder(deps.Store, deps.Logger, deps.Metrics, deps.Clock),
		clock:    deps.Clock,
		logger:   deps.Logger.Named("flow").With(zap.String("flow", def.Name)),
		metrics:  deps.Metrics,
		dedupe:   deps.Dedupe,
	}
	if def.CacheKey != nil && settings.CacheTTL > 0 {
		f.gateway = cache.New(deps.Store, settings.CacheTTL, deps.Clock)
	}
	return f
}

// Name returns the flow name.
func (f *Flow[In, Out]) Name() string { return f.def.Name }

// Settings returns the runtime parameters.
func (f *Flow[In, Out]) Settings() Settings { return f.settings }

// Run executes the flow once.
func (f *Flow[In, Out]) Run(ctx context.Context, in In) (Result[Out], error) {
	if !f.settings.Enabled {
		return Result[Out]{}, fmt.Errorf("%s: %w", f.def.Name, ErrFlowDisabled)
	}

	start := f.clock.Now()
	if err := f.def.Validate(in); err != nil {
		f.metrics.RecordRun(ctx, f.def.Name, telemetry.OutcomeRejected, 0)
		return Result[Out]{}, f.validationError(err)
	}

	var key string
	if f.gateway != nil {
		k, err := f.def.CacheKey(in)
		if err != nil {
			f.metrics.RecordRun(ctx, f.def.Name, telemetry.OutcomeRejected, 0)
			return Result[Out]{}, f.validationError(err)
		}
		key = k
	}

	ctx, span := tracer.Start(ctx, "flow."+f.def.Name, trace.WithAttributes(
		attribute.String("flow.name", f.def.Name),
		attribute.String("cache.key", key),
	))
	defer span.End()

	if !f.dedupe || key == "" {
		return f.run(ctx, span, in, key, start)
	}

	// The shared generation must outlive any single caller's cancellation.
	led := false
	v, err, _ := f.group.Do(key, func() (any, error) {
		led = true
		return f.run(context.WithoutCancel(ctx), span, in, key, start)
	})
	if led {
		if err != nil {
			return Result[Out]{}, err
		}
		return v.(Result[Out]), nil
	}
	return f.joined(ctx, span, in, key, start, v, err)
}

// joined accounts for a caller that waited on another caller's generation:
// it gets its own execution record and metric.
func (f *Flow[In, Out]) joined(ctx context.Context, span trace.Span, in In, key string, start time.Time, v any, err error) (Result[Out], error) {
	f.logger.Debug("joined in-flight generation", zap.String("key", key))
	span.SetAttributes(attribute.Bool("flow.shared", true))
	if err != nil {
		return Result[Out]{}, f.fail(ctx, span, in, err, start)
	}
	res := v.(Result[Out])
	d := f.clock.Now().Sub(start)
	res.Shared = true
	res.RecordID = f.recorder.Shared(ctx, f.def.Name, key, in, res.Output, d, res.Fallback)
	f.metrics.RecordRun(ctx, f.def.Name, telemetry.OutcomeShared, d)
	return res, nil
}

func (f *Flow[In, Out]) run(ctx context.Context, span trace.Span, in In, key string, start time.Time) (Result[Out], error) {
	if f.gateway != nil {
		res, hit, err := f.lookup(ctx, in, key, start)
		if err != nil {
			return Result[Out]{}, f.fail(ctx, span, in, err, start)
		}
		if hit {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return res, nil
		}
	}

	if f.def.Enrich != nil {
		enriched, err := f.def.Enrich(ctx, in)
		if err != nil {
			return Result[Out]{}, f.fail(ctx, span, in, fmt.Errorf("%s: preparing input: %w", f.def.Name, err), start)
		}
		in = enriched
	}

	prompt := f.def.BuildPrompt(in)
	text, err := f.engine.Generate(ctx, engine.Request{
		Model:           f.settings.Model,
		Prompt:          prompt,
		Temperature:     f.settings.Temperature,
		MaxOutputTokens: f.settings.MaxOutputTokens,
		JSON:            f.def.Parse == nil,
	})
	if err != nil && !(f.def.AcceptEmpty && errors.Is(err, engine.ErrEmptyResponse)) {
		return Result[Out]{}, f.fail(ctx, span, in, &GenerationError{Flow: f.def.Name, Err: err}, start)
	}

	out, fallback := f.parse(text, in)
	d := f.clock.Now().Sub(start)
	id := f.recorder.Success(ctx, f.def.Name, f.gateway, key, in, out, d, fallback)

	outcome := telemetry.OutcomeGenerated
	if fallback {
		outcome = telemetry.OutcomeFallback
		f.logger.Warn("model output unparseable, using fallback", zap.Int("textLen", len(text)))
	}
	f.metrics.RecordRun(ctx, f.def.Name, outcome, d)
	span.SetAttributes(attribute.Bool("cache.hit", false), attribute.Bool("flow.fallback", fallback))
	f.logger.Info("flow completed",
		zap.String("key", key),
		zap.Bool("fallback", fallback),
		zap.Duration("duration", d))

	return Result[Out]{Output: out, Fallback: fallback, RecordID: id}, nil
}

func (f *Flow[In, Out]) lookup(ctx context.Context, in In, key string, start time.Time) (Result[Out], bool, error) {
	entry, hit, err := f.gateway.Lookup(ctx, key)
	if err != nil {
		return Result[Out]{}, false, &PersistenceError{Flow: f.def.Name, Op: "cache read", Err: err}
	}
	if !hit {
		return Result[Out]{}, false, nil
	}
	var out Out
	if err := json.Unmarshal(entry.Payload, &out); err != nil {
		f.logger.Warn("cached payload undecodable, regenerating", zap.String("key", key), zap.Error(err))
		return Result[Out]{}, false, nil
	}

	d := f.clock.Now().Sub(start)
	id := f.recorder.CacheHit(ctx, f.def.Name, key, in, entry.Payload, d)
	f.metrics.RecordRun(ctx, f.def.Name, telemetry.OutcomeCacheHit, d)
	f.logger.Debug("cache hit", zap.String("key", key), zap.Time("cachedAt", entry.CachedAt))
	return Result[Out]{Output: out, CacheHit: true, RecordID: id}, true, nil
}

// parse never fails: undecodable text selects the fallback.
func (f *Flow[In, Out]) parse(text string, in In) (Out, bool) {
	parse := f.def.Parse
	if parse == nil {
		parse = func(text string, _ In) (Out, error) { return DecodeJSON[Out](text) }
	}

	confidence := ParsedConfidence
	fallback := false
	out, err := parse(text, in)
	if err != nil {
		out = f.def.Fallback(in)
		confidence = FallbackConfidence
		fallback = true
	}
	if f.def.Finalize != nil {
		f.def.Finalize(&out, in)
	}
	if s, ok := any(&out).(Stamper); ok {
		s.Stamp(NewMeta(confidence, f.clock.Now()))
	}
	return out, fallback
}

func (f *Flow[In, Out]) fail(ctx context.Context, span trace.Span, in In, err error, start time.Time) error {
	d := f.clock.Now().Sub(start)
	f.logger.Error("flow failed", zap.Error(err), zap.Duration("duration", d))
	f.recorder.Failure(ctx, f.def.Name, in, err, d)
	f.metrics.RecordRun(ctx, f.def.Name, telemetry.OutcomeFailed, d)
	span.RecordError(err)
	span.SetStatus(codes.Error, "flow failed")
	return err
}

func (f *Flow[In, Out]) validationError(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		if ve.Flow == "" {
			ve.Flow = f.def.Name
		}
		return ve
	}
	return &ValidationError{Flow: f.def.Name, Err: err}
}
