package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/roasbeef/pagesum/internal/metrics"
)

var (
	// ErrAlreadyInitializing is returned by EnsureReady while another
	// session creation is in flight. Callers retry later.
	ErrAlreadyInitializing = errors.New("engine is already initializing")

	// ErrNotReady is returned when a summary is requested without a live
	// session.
	ErrNotReady = errors.New("engine not ready")

	// errTornDown is returned by a creation that was abandoned by a
	// concurrent Teardown.
	errTornDown = errors.New("engine torn down during initialization")
)

// State is the session state of the manager.
type State int

const (
	// StateAbsent means no session exists.
	StateAbsent State = iota

	// StateInitializing means a session is being created.
	StateInitializing

	// StateReady means a session is live.
	StateReady
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is a snapshot of the manager.
type Status struct {
	State    State
	Progress float64
}

// Option configures a Manager.
type Option func(*Manager)

// WithProgressHandler registers a handler for model load progress.
func WithProgressHandler(h ProgressFunc) Option {
	return func(m *Manager) {
		m.onProgress = h
	}
}

// Manager owns at most one live session. It does not serialize Summarize
// calls: callers guarantee a single flight.
type Manager struct {
	cfg        Config
	backend    Backend
	log        *slog.Logger
	onProgress ProgressFunc

	mu       sync.Mutex
	state    State
	session  Session
	progress float64

	// epoch is bumped by Teardown so an in-flight creation can tell it
	// was abandoned.
	epoch uint64
}

// NewManager creates a manager over backend. No session is created until
// EnsureReady.
func NewManager(cfg Config, backend Backend, log *slog.Logger,
	opts ...Option) *Manager {

	if log == nil {
		log = slog.Default()
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = SystemPrompt
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	m := &Manager{
		cfg:     cfg,
		backend: backend,
		log:     log.With("component", "engine"),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// EnsureReady returns immediately when a session is live. Otherwise it
// creates one, unless a creation is already in flight in which case it
// fails with ErrAlreadyInitializing.
func (m *Manager) EnsureReady(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateReady:
		m.mu.Unlock()
		return nil

	case StateInitializing:
		m.mu.Unlock()
		return ErrAlreadyInitializing
	}

	m.state = StateInitializing
	epoch := m.epoch
	m.mu.Unlock()

	metrics.EngineState.Set(float64(StateInitializing))
	m.log.InfoContext(ctx, "Creating engine session")
	m.reportProgress(0)

	session, err := m.backend.Open(ctx, m.reportProgress)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case err != nil:
		m.state = StateAbsent
		metrics.EngineState.Set(float64(StateAbsent))
		m.log.ErrorContext(ctx, "Engine session creation failed",
			"error", err,
		)

		return fmt.Errorf("create engine session: %w", err)

	case m.epoch != epoch:
		m.state = StateAbsent
		metrics.EngineState.Set(float64(StateAbsent))
		_ = session.Close()

		return errTornDown
	}

	m.session = session
	m.state = StateReady
	metrics.EngineState.Set(float64(StateReady))
	m.log.InfoContext(ctx, "Engine session ready")

	return nil
}

// reportProgress records and forwards load progress clamped to [0, 1].
func (m *Manager) reportProgress(p float64) {
	p = min(max(p, 0), 1)

	m.mu.Lock()
	m.progress = p
	handler := m.onProgress
	m.mu.Unlock()

	metrics.ModelLoadProgress.Set(p)
	if handler != nil {
		handler(p)
	}
}

// Summarize streams a summary of text. The returned channel yields
// cumulative PartialEvents and then exactly one DoneEvent or ErrorEvent
// before it is closed.
//
// A failed stream tears the session down. If it was the first failure of
// the call and looks transient, the session is recreated and the request
// retried once.
func (m *Manager) Summarize(ctx context.Context, text string) <-chan Event {
	events := make(chan Event, 16)

	go func() {
		defer close(events)

		final, err := m.run(ctx, buildMessages(m.cfg.SystemPrompt, text),
			events)
		if err != nil {
			send(ctx, events, ErrorEvent{Err: err})
			return
		}

		send(ctx, events, DoneEvent{Text: final})
	}()

	return events
}

func (m *Manager) run(ctx context.Context, msgs []Message,
	events chan<- Event) (string, error) {

	sampling := Sampling{
		Temperature: m.cfg.Temperature,
		MaxTokens:   m.cfg.MaxTokens,
	}

	for attempt := 0; ; attempt++ {
		m.mu.Lock()
		session := m.session
		m.mu.Unlock()

		if session == nil {
			return "", ErrNotReady
		}

		text, err := m.stream(ctx, session, msgs, sampling, events)
		if err == nil {
			return strings.TrimSpace(text), nil
		}

		m.Teardown()

		if ctx.Err() != nil || attempt > 0 || !IsTransient(err) {
			return "", err
		}

		metrics.EngineRetries.Inc()
		m.log.WarnContext(ctx, "Transient engine failure, retrying "+
			"with a fresh session", "error", err)

		if err := m.EnsureReady(ctx); err != nil {
			return "", fmt.Errorf("reinitialize engine: %w", err)
		}
	}
}

// stream consumes one completion, forwarding cumulative partials.
func (m *Manager) stream(ctx context.Context, session Session,
	msgs []Message, sampling Sampling, events chan<- Event) (string, error) {

	var text strings.Builder
	for chunk, err := range session.Stream(ctx, msgs, sampling) {
		if err != nil {
			return "", err
		}

		chunk.Usage.WhenSome(func(u Usage) {
			m.log.DebugContext(ctx, "Completion usage",
				"prompt_tokens", u.PromptTokens,
				"completion_tokens", u.CompletionTokens,
				"total_tokens", u.TotalTokens,
			)
		})

		if chunk.Delta == "" {
			continue
		}

		text.WriteString(chunk.Delta)
		if !send(ctx, events, PartialEvent{Text: text.String()}) {
			return "", ctx.Err()
		}
	}

	return text.String(), nil
}

// send delivers ev unless ctx is done first.
func send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true

	case <-ctx.Done():
		return false
	}
}

// Teardown releases the session. It is safe to call at any time, including
// while no session exists.
func (m *Manager) Teardown() {
	m.mu.Lock()
	session := m.session
	m.session = nil
	m.epoch++

	// An in-flight creation notices the epoch change and resets the
	// state itself, so a second creation cannot start meanwhile.
	if m.state == StateReady {
		m.state = StateAbsent
		m.progress = 0
		metrics.EngineState.Set(float64(StateAbsent))
	}
	m.mu.Unlock()

	if session == nil {
		return
	}

	if err := session.Close(); err != nil {
		m.log.Warn("Engine session close failed", "error", err)
	}
	m.log.Info("Engine session torn down")
}

// Status returns the current state and last reported load progress.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Status{State: m.state, Progress: m.progress}
}
