// Package oracle holds the answer orchestrator: the single component that
// turns an inbound question into exactly one model invocation, grounded on
// retrieved knowledge and per-user memory.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/celim/oraculo/internal/knowledge"
	"github.com/celim/oraculo/internal/memory"
)

// State is the orchestrator lifecycle state.
type State int32

const (
	// StateUninitialized is the zero state before the first Initialize.
	StateUninitialized State = iota
	// StateInitializing means one initialization is in flight.
	StateInitializing
	// StateReady means the orchestrator answers questions.
	StateReady
	// StateFailed is terminal: initialization failed and this instance
	// will not self-heal. Construct a fresh instance to retry.
	StateFailed
)

// String implements fmt.Stringer for log output.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrNotReady is returned by Initialize waiters when setup failed.
var ErrNotReady = errors.New("orchestrator not ready")

// Fixed user-facing messages. End users never see raw error text.
const (
	notInitializedMessage = "O assistente ainda está sendo preparado. Tente novamente em alguns instantes."
	apologyMessage        = "Desculpe, tive um problema ao processar sua pergunta. Pode tentar de novo?"
)

// Answer is the immutable result of one question.
type Answer struct {
	AnswerText string
	RawContent string
	Succeeded  bool
}

// ConversationStore is the memory surface the orchestrator needs.
// *memory.Store satisfies it; tests use a fake.
type ConversationStore interface {
	History(ctx context.Context, userID string, limit int) ([]memory.Turn, error)
	Facts(ctx context.Context, userID string) (map[string]string, error)
	Append(ctx context.Context, userID, role, content string) error
}

// Resources are the wired collaborators produced by one successful
// initialization.
type Resources struct {
	Retriever knowledge.Retriever
	Memory    ConversationStore
	Generator Generator
}

// Options tune orchestrator behavior.
type Options struct {
	// TopK bounds retrieved context documents per question.
	TopK int
	// MaxHistoryTurns bounds how much history rides each prompt.
	MaxHistoryTurns int
	// GenerateTimeout bounds the model invocation.
	GenerateTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.TopK <= 0 {
		o.TopK = 5
	}
	if o.MaxHistoryTurns <= 0 {
		o.MaxHistoryTurns = 10
	}
	if o.GenerateTimeout <= 0 {
		o.GenerateTimeout = 60 * time.Second
	}
}

// Orchestrator is a process-wide singleton. Construction is cheap; the
// expensive wiring happens in Initialize, guarded so that concurrent first
// requests share exactly one in-flight initialization.
type Orchestrator struct {
	initFn func(ctx context.Context) (*Resources, error)
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	initErr error
	done    chan struct{} // closed when the in-flight init resolves
	res     *Resources
}

// New creates an orchestrator. initFn builds the retriever, memory store
// and generator; it runs at most once for the life of this instance.
func New(initFn func(ctx context.Context) (*Resources, error), opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	opts.applyDefaults()
	return &Orchestrator{initFn: initFn, opts: opts, logger: logger}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Initialize wires the orchestrator's collaborators. It is idempotent and
// single-flight: the first caller runs initFn, concurrent callers block on
// the same in-flight attempt, and later callers observe the settled state
// immediately. A failed initialization is terminal for this instance.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	switch o.state {
	case StateReady:
		o.mu.Unlock()
		return nil
	case StateFailed:
		err := o.initErr
		o.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	case StateInitializing:
		done := o.done
		o.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		return o.settledError()
	}

	// StateUninitialized: this caller owns the initialization.
	o.state = StateInitializing
	o.done = make(chan struct{})
	done := o.done
	o.mu.Unlock()

	o.logger.Info("initializing orchestrator")
	res, err := o.initFn(ctx)

	o.mu.Lock()
	if err != nil {
		o.state = StateFailed
		o.initErr = err
		o.logger.Error("orchestrator initialization failed", "error", err)
	} else {
		o.state = StateReady
		o.res = res
		o.logger.Info("orchestrator ready")
	}
	o.mu.Unlock()
	close(done)

	return o.settledError()
}

func (o *Orchestrator) settledError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateFailed {
		return fmt.Errorf("%w: %w", ErrNotReady, o.initErr)
	}
	return nil
}

// Answer produces exactly one answer for one question. It never panics and
// never returns an error: every internal failure degrades to a fixed
// user-facing message with Succeeded=false.
func (o *Orchestrator) Answer(ctx context.Context, question, userID string) Answer {
	o.mu.Lock()
	state := o.state
	res := o.res
	o.mu.Unlock()

	if state != StateReady {
		o.logger.Warn("answer requested before orchestrator ready", "state", state.String())
		return Answer{AnswerText: notInitializedMessage, Succeeded: false}
	}

	history, err := res.Memory.History(ctx, userID, o.opts.MaxHistoryTurns)
	if err != nil {
		o.logger.Error("failed to load history", "user_id", userID, "error", err)
		return Answer{AnswerText: apologyMessage, Succeeded: false}
	}
	facts, err := res.Memory.Facts(ctx, userID)
	if err != nil {
		o.logger.Error("failed to load facts", "user_id", userID, "error", err)
		return Answer{AnswerText: apologyMessage, Succeeded: false}
	}

	// A retrieval failure means "no context found", not a hard failure:
	// the prompt instructions make the model refuse instead of inventing.
	contextDocs, err := res.Retriever.Query(ctx, question, o.opts.TopK)
	if err != nil {
		o.logger.Error("retrieval failed, answering without context",
			"user_id", userID, "error", err)
		contextDocs = nil
	}

	messages := buildMessages(question, contextDocs, facts, history)

	genCtx, cancel := context.WithTimeout(ctx, o.opts.GenerateTimeout)
	defer cancel()

	text, err := res.Generator.Generate(genCtx, systemInstructions, messages)
	if err != nil {
		o.logger.Error("model invocation failed", "user_id", userID, "error", err)
		return Answer{AnswerText: apologyMessage, Succeeded: false}
	}

	// The answer is already produced and billed; a memory write failure
	// must not discard it.
	if err := res.Memory.Append(ctx, userID, memory.RoleUser, question); err != nil {
		o.logger.Error("failed to persist question turn", "user_id", userID, "error", err)
	} else if err := res.Memory.Append(ctx, userID, memory.RoleModel, text); err != nil {
		o.logger.Error("failed to persist answer turn", "user_id", userID, "error", err)
	}

	return Answer{AnswerText: text, RawContent: text, Succeeded: true}
}

// Close releases the orchestrator's resources when it reached READY.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.res != nil && o.res.Memory != nil {
		if closer, ok := o.res.Memory.(interface{ Close() error }); ok {
			return closer.Close()
		}
	}
	return nil
}
