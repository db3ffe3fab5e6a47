package ivr

import (
	"errors"
	"fmt"
	"sort"
)

// Table is the immutable mapping from state to definition. It is built
// once at startup and may be read concurrently without locking.
type Table struct {
	initial StateID
	states  map[StateID]StateDefinition
	ids     []StateID
}

// NewTable validates defs and returns a Table whose flow starts at initial.
// Every state referenced by the initial state, an auto-chain or an input
// route must be defined; all problems are reported in one error wrapping
// ErrConfiguration.
func NewTable(initial StateID, defs map[StateID]StateDefinition) (*Table, error) {
	var errs []error

	if _, ok := defs[initial]; !ok {
		errs = append(errs, fmt.Errorf("initial state %q is not defined", initial))
	}

	states := make(map[StateID]StateDefinition, len(defs))
	ids := make([]StateID, 0, len(defs))
	for id, def := range defs {
		states[id] = def
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		def := states[id]
		if def.Enter == nil {
			errs = append(errs, fmt.Errorf("state %q has no entry action", id))
		}
		if def.Exit == nil {
			errs = append(errs, fmt.Errorf("state %q has no exit policy", id))
			continue
		}
		for _, to := range def.Exit.targets() {
			if _, ok := states[to]; !ok {
				errs = append(errs, fmt.Errorf("state %q (%s) references undefined state %q", id, def.Exit.Kind(), to))
			}
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
	}

	return &Table{initial: initial, states: states, ids: ids}, nil
}

// Lookup returns the definition of id.
func (t *Table) Lookup(id StateID) (StateDefinition, error) {
	def, ok := t.states[id]
	if !ok {
		return StateDefinition{}, fmt.Errorf("%w: %q", ErrUnknownState, id)
	}
	return def, nil
}

// Initial returns the state a new call enters.
func (t *Table) Initial() StateID {
	return t.initial
}

// States returns all state ids in sorted order.
func (t *Table) States() []StateID {
	out := make([]StateID, len(t.ids))
	copy(out, t.ids)
	return out
}

// Len returns the number of states.
func (t *Table) Len() int {
	return len(t.ids)
}
