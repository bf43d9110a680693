// Package orchestrator fans a staged prompt out to every roster model and
// merges the per-model event streams into one consumer-driven sequence.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ansari-project/qiyas/internal/agent"
	"github.com/ansari-project/qiyas/internal/observability"
	"github.com/ansari-project/qiyas/internal/sessions"
)

const (
	defaultStreamTimeout   = 25 * time.Second
	defaultHeartbeatPeriod = 10 * time.Second
)

// Config wires an Orchestrator.
type Config struct {
	// Adapters is the roster, one streaming backend per model.
	Adapters []agent.Adapter

	// Tools is the registry every adapter exposes to its model. May be nil.
	Tools *agent.ToolRegistry

	// StreamTimeout bounds each model's stream. A model that exceeds it
	// gets a terminal error event; the other models keep streaming.
	StreamTimeout time.Duration

	// HeartbeatPeriod paces keep-alive events while any model is live.
	HeartbeatPeriod time.Duration

	// Logger receives structured diagnostics. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics may be nil; recording is then skipped.
	Metrics *observability.Metrics
}

// Orchestrator runs generations: one claimed session, one producer
// goroutine per adapter, one merged output channel.
type Orchestrator struct {
	adapters  []agent.Adapter
	tools     *agent.ToolRegistry
	timeout   time.Duration
	heartbeat time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
}

func New(cfg Config) *Orchestrator {
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = defaultStreamTimeout
	}
	if cfg.HeartbeatPeriod <= 0 {
		cfg.HeartbeatPeriod = defaultHeartbeatPeriod
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		adapters:  cfg.Adapters,
		tools:     cfg.Tools,
		timeout:   cfg.StreamTimeout,
		heartbeat: cfg.HeartbeatPeriod,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// Begin claims the session's staged prompt and starts one producer per
// adapter. Fails with sessions.ErrBusy while another generation is active
// and sessions.ErrNoPrompt when nothing was staged since the last run.
//
// The merged channel is bounded at 4x the roster size; a slow consumer
// throttles the producers once it saturates. Cancelling ctx behaves like
// Generation.Cancel.
func (o *Orchestrator) Begin(ctx context.Context, sess *sessions.Session) (*Generation, error) {
	genCtx, cancel := context.WithCancel(ctx)
	gen := &Generation{
		sessionID: sess.ID,
		cancel:    cancel,
		events:    make(chan agent.Event, 4*len(o.adapters)),
		done:      make(chan struct{}),
	}
	if err := sess.SetGeneration(gen); err != nil {
		cancel()
		return nil, err
	}

	genCtx, span := observability.StartGenerationSpan(genCtx, sess.ID)
	o.metrics.GenerationStarted()
	o.logger.Info("generation started", "session_id", sess.ID, "models", len(o.adapters))

	// One builder per adapter, written by that adapter's producer before
	// the WaitGroup releases the supervisor.
	builders := make([]*agent.TurnBuilder, len(o.adapters))

	var producers sync.WaitGroup
	producers.Add(len(o.adapters))
	for i, ad := range o.adapters {
		history := sess.History(ad.ModelID())
		go func(idx int, ad agent.Adapter, history []agent.Turn) {
			defer producers.Done()
			builder := &agent.TurnBuilder{}
			builders[idx] = builder
			o.runModel(genCtx, gen, ad, history, builder)
		}(i, ad, history)
	}

	hbStop := make(chan struct{})
	var heartbeat sync.WaitGroup
	heartbeat.Add(1)
	go func() {
		defer heartbeat.Done()
		ticker := time.NewTicker(o.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-hbStop:
				return
			case t := <-ticker.C:
				select {
				case gen.events <- agent.NewHeartbeatEvent(t):
				case <-hbStop:
					return
				}
			}
		}
	}()

	go func() {
		producers.Wait()
		close(hbStop)
		heartbeat.Wait()

		o.commit(sess, builders)
		sess.ClearGeneration()

		status := "done"
		if genCtx.Err() != nil {
			status = "cancelled"
		}
		o.metrics.GenerationEnded(status)
		span.End()
		cancel()

		close(gen.events)
		close(gen.done)
		o.logger.Info("generation finished", "session_id", sess.ID, "status", status)
	}()

	return gen, nil
}

// runModel drives one adapter stream and relays its events onto the merged
// channel. Adapters own the start event and normally own the terminal one
// too; when a stream tears without a terminal (deadline, cancellation, or a
// misbehaving backend) one is synthesized so every model closes out exactly
// once.
func (o *Orchestrator) runModel(ctx context.Context, gen *Generation, ad agent.Adapter, history []agent.Turn, builder *agent.TurnBuilder) {
	modelID := ad.ModelID()
	sawStart := false
	sawTerminal := false

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("model producer panicked",
				"session_id", gen.sessionID, "model_id", modelID, "panic", r)
			if !sawTerminal {
				gen.events <- agent.NewErrorEvent(modelID, "model stream failed")
			}
		}
	}()

	mctx, mcancel := context.WithTimeout(ctx, o.timeout)
	defer mcancel()
	mctx, span := observability.StartModelSpan(mctx, modelID)
	defer span.End()

	for ev := range ad.Stream(mctx, history, o.tools) {
		builder.Observe(ev)
		o.recordEvent(ev)
		switch ev.Type {
		case agent.EventStart:
			sawStart = true
		case agent.EventError:
			observability.RecordSpanError(span, errors.New(ev.Message))
		}
		if ev.Terminal() {
			sawTerminal = true
		}
		gen.events <- ev
	}
	if sawTerminal {
		return
	}

	var msg string
	switch {
	case errors.Is(mctx.Err(), context.DeadlineExceeded):
		msg = "deadline"
	case ctx.Err() != nil:
		msg = "cancelled"
	default:
		msg = "model stream failed"
	}
	o.logger.Warn("model stream ended without terminal event",
		"session_id", gen.sessionID, "model_id", modelID, "reason", msg)
	o.metrics.RecordModelError(modelID, "terminal")
	observability.RecordSpanError(span, errors.New(msg))

	sawTerminal = true
	if !sawStart {
		gen.events <- agent.NewStartEvent(modelID, time.Now())
	}
	gen.events <- agent.NewErrorEvent(modelID, msg)
}

// recordEvent mirrors the relayed event into metrics.
func (o *Orchestrator) recordEvent(ev agent.Event) {
	switch ev.Type {
	case agent.EventTTFT:
		o.metrics.ObserveTTFT(ev.ModelID, ev.TTFT)
	case agent.EventToolEnd:
		status := "ok"
		if ev.ToolResult != nil && ev.ToolResult.IsError {
			status = "error"
		}
		o.metrics.RecordToolCall(ev.ToolName, status, ev.ToolDuration)
	case agent.EventDone:
		o.metrics.ObserveStreamDone(ev.ModelID, ev.Total, ev.TokensIn, ev.TokensOut)
	case agent.EventError:
		kind := "terminal"
		if ev.Retriable() {
			kind = "retryable"
		}
		o.metrics.RecordModelError(ev.ModelID, kind)
	}
}

// commit appends each model's accumulated assistant turn to its history.
// Errored and cancelled models commit whatever partial content they
// produced; a model with no content commits nothing so role alternation
// survives.
func (o *Orchestrator) commit(sess *sessions.Session, builders []*agent.TurnBuilder) {
	for i, ad := range o.adapters {
		turn, ok := builders[i].Turn()
		if !ok {
			o.logger.Debug("no assistant content to commit",
				"session_id", sess.ID, "model_id", ad.ModelID())
			continue
		}
		sess.CommitAssistant(ad.ModelID(), turn)
	}
}
