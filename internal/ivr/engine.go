package ivr

import (
	"fmt"
	"io"
	"log/slog"
)

// Turn is the outcome of one webhook request for a call.
type Turn struct {
	// Actions is the ordered list of instructions for the provider.
	Actions ActionList

	// Entered lists the states entered this turn, in order. The last one
	// is the state the session now points at.
	Entered []StateID

	// Session is the caller's session after the turn. It must be stored
	// for the next turn to continue where this one yielded.
	Session Session
}

// TurnObserver is notified after every turn. from is the state the call
// was in before the turn (empty for a new call).
type TurnObserver interface {
	ObserveTurn(from StateID, turn Turn, err error)
}

// Engine drives state entry and exit over a Table. It holds no per-call
// state and is safe for concurrent use.
type Engine struct {
	table         *Table
	maxChainDepth int
	observers     []TurnObserver
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxChainDepth overrides the number of states a single turn may enter.
// Values below 1 keep the default of table size + 1.
func WithMaxChainDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxChainDepth = n
		}
	}
}

// WithObserver registers a TurnObserver.
func WithObserver(o TurnObserver) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine over table.
func NewEngine(table *Table, opts ...Option) *Engine {
	e := &Engine{
		table:         table,
		maxChainDepth: table.Len() + 1,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("subsystem", "ivr_engine")
	return e
}

// Table returns the engine's state table.
func (e *Engine) Table() *Table {
	return e.table
}

// HandleTurn runs one webhook turn. A session without a current state
// enters the table's initial state; otherwise the current state is exited
// with the caller's digits. The input session is not modified; the updated
// copy is returned in Turn.Session.
func (e *Engine) HandleTurn(sess Session, digits string) (Turn, error) {
	from := sess.CurrentState
	next := sess

	var (
		actions ActionList
		entered []StateID
		err     error
	)
	if !sess.Started() {
		e.logger.Debug("new call entering flow",
			"call_id", sess.CallID,
			"state", e.table.Initial(),
		)
		actions, entered, err = e.EnterState(&next, e.table.Initial())
	} else {
		actions, entered, err = e.ExitState(&next, from, digits)
	}

	turn := Turn{Actions: actions, Entered: entered, Session: next}
	for _, o := range e.observers {
		o.ObserveTurn(from, turn, err)
	}

	if err != nil {
		e.logger.Error("turn failed",
			"call_id", sess.CallID,
			"from", from,
			"error", err,
		)
		return Turn{}, err
	}

	e.logger.Info("turn completed",
		"call_id", sess.CallID,
		"from", from,
		"to", next.CurrentState,
		"states_entered", len(entered),
		"actions", len(actions),
	)
	return turn, nil
}

// EnterState enters initial and follows auto-chained transitions until a
// terminal or input-driven state is reached. rec is updated as each state
// is entered, before its entry action runs, so it always names the most
// recently entered state.
func (e *Engine) EnterState(rec StateRecorder, initial StateID) (ActionList, []StateID, error) {
	var (
		actions ActionList
		entered []StateID
	)
	cursor := initial

	for depth := 0; ; depth++ {
		if depth >= e.maxChainDepth {
			return nil, entered, fmt.Errorf("%w: entered %d states starting at %q (last %q)",
				ErrChainDepthExceeded, depth, initial, cursor)
		}

		rec.SetCurrentState(cursor)
		entered = append(entered, cursor)

		def, err := e.table.Lookup(cursor)
		if err != nil {
			return nil, entered, fmt.Errorf("entering state: %w", err)
		}

		e.logger.Debug("entering state",
			"state", cursor,
			"exit", def.Exit.Kind(),
			"depth", depth,
		)

		actions = append(actions, def.Enter()...)

		chain, ok := def.Exit.(AutoChain)
		if !ok {
			return actions, entered, nil
		}
		cursor = chain.Next
	}
}

// ExitState resolves the caller's digits against state's input routes and
// enters the resulting state.
func (e *Engine) ExitState(rec StateRecorder, state StateID, digits string) (ActionList, []StateID, error) {
	def, err := e.table.Lookup(state)
	if err != nil {
		return nil, nil, fmt.Errorf("exiting state: %w", err)
	}

	policy, ok := def.Exit.(InputDriven)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q has exit policy %s", ErrNotInputDriven, state, def.Exit.Kind())
	}

	target := policy.Resolve(digits)
	e.logger.Debug("resolved input",
		"state", state,
		"digits", digits,
		"target", target,
	)

	return e.EnterState(rec, target)
}
