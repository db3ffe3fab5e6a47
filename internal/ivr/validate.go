package ivr

import (
	"fmt"
	"sort"
)

// ValidationSeverity indicates the severity of a report issue.
type ValidationSeverity string

const (
	// SeverityError indicates a problem that breaks calls at runtime.
	SeverityError ValidationSeverity = "error"
	// SeverityWarning indicates a potential issue that may cause unexpected behavior.
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue describes a single problem found in a table.
type ValidationIssue struct {
	Severity ValidationSeverity `json:"severity"`
	State    StateID            `json:"state,omitempty"`
	Message  string             `json:"message"`
}

// StateReport describes one state for the admin API.
type StateReport struct {
	ID          StateID            `json:"id"`
	Description string             `json:"description,omitempty"`
	Exit        string             `json:"exit"`
	Next        StateID            `json:"next,omitempty"`
	Routes      map[string]StateID `json:"routes,omitempty"`
	Default     StateID            `json:"default,omitempty"`
	Reachable   bool               `json:"reachable"`
}

// TableReport is the structural summary of a Table.
type TableReport struct {
	Initial StateID           `json:"initial"`
	Valid   bool              `json:"valid"`
	States  []StateReport     `json:"states"`
	Issues  []ValidationIssue `json:"issues"`
}

// Report inspects a Table for problems NewTable cannot rule out:
//   - States unreachable from the initial state
//   - Cycles made only of auto-chained states, which exceed the chain
//     depth on every entry
func Report(t *Table) *TableReport {
	report := &TableReport{Initial: t.initial, Valid: true, Issues: []ValidationIssue{}}

	reachable := t.reachable()

	for _, id := range t.ids {
		def := t.states[id]
		sr := StateReport{
			ID:          id,
			Description: def.Description,
			Exit:        def.Exit.Kind(),
			Reachable:   reachable[id],
		}
		switch p := def.Exit.(type) {
		case AutoChain:
			sr.Next = p.Next
		case InputDriven:
			sr.Routes = p.Routes
			sr.Default = p.Default
		}
		report.States = append(report.States, sr)

		if !reachable[id] {
			report.Issues = append(report.Issues, ValidationIssue{
				Severity: SeverityWarning,
				State:    id,
				Message:  fmt.Sprintf("state %q is not reachable from %q", id, t.initial),
			})
		}
	}

	for _, cycle := range t.autoChainCycles() {
		report.Valid = false
		report.Issues = append(report.Issues, ValidationIssue{
			Severity: SeverityError,
			State:    cycle[0],
			Message:  fmt.Sprintf("auto-chain cycle never yields: %v", cycle),
		})
	}

	return report
}

// reachable walks every exit target from the initial state.
func (t *Table) reachable() map[StateID]bool {
	seen := map[StateID]bool{t.initial: true}
	queue := []StateID{t.initial}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, to := range t.states[id].Exit.targets() {
			if !seen[to] {
				seen[to] = true
				queue = append(queue, to)
			}
		}
	}
	return seen
}

// autoChainCycles returns each cycle of auto-chained states once, with its
// members sorted by id.
func (t *Table) autoChainCycles() [][]StateID {
	var cycles [][]StateID
	done := make(map[StateID]bool)

	for _, start := range t.ids {
		if done[start] {
			continue
		}
		var path []StateID
		onPath := make(map[StateID]int)
		cursor := start
		for {
			if done[cursor] {
				break
			}
			if idx, ok := onPath[cursor]; ok {
				cycle := append([]StateID(nil), path[idx:]...)
				sort.Slice(cycle, func(i, j int) bool { return cycle[i] < cycle[j] })
				cycles = append(cycles, cycle)
				break
			}
			onPath[cursor] = len(path)
			path = append(path, cursor)

			chain, ok := t.states[cursor].Exit.(AutoChain)
			if !ok {
				break
			}
			cursor = chain.Next
		}
		for _, id := range path {
			done[id] = true
		}
	}
	return cycles
}
