package ivr

// StateID names a state in a Table.
type StateID string

// EntryFunc produces the actions played when a state is entered. It must
// be deterministic and take no external input.
type EntryFunc func() ActionList

// ExitPolicy decides what happens after a state's entry actions have run.
// It is one of Terminal, AutoChain or InputDriven.
type ExitPolicy interface {
	// Kind returns the policy name used in logs and reports.
	Kind() string

	// targets returns every StateID the policy can lead to.
	targets() []StateID
}

// Terminal ends the flow. The turn yields and nothing further is expected
// from this state.
type Terminal struct{}

// AutoChain enters Next within the same turn without waiting for input.
type AutoChain struct {
	Next StateID
}

// InputDriven resolves the caller's digits to the next state. Digits not
// present in Routes, including the empty string sent on a gather timeout,
// resolve to Default.
type InputDriven struct {
	Routes  map[string]StateID
	Default StateID
}

func (Terminal) Kind() string    { return "terminal" }
func (AutoChain) Kind() string   { return "auto_chain" }
func (InputDriven) Kind() string { return "input_driven" }

func (Terminal) targets() []StateID { return nil }

func (p AutoChain) targets() []StateID { return []StateID{p.Next} }

func (p InputDriven) targets() []StateID {
	out := make([]StateID, 0, len(p.Routes)+1)
	for _, to := range p.Routes {
		out = append(out, to)
	}
	return append(out, p.Default)
}

// Resolve maps the caller's digits to the next state.
func (p InputDriven) Resolve(digits string) StateID {
	if to, ok := p.Routes[digits]; ok {
		return to
	}
	return p.Default
}

// StateDefinition pairs an entry action with an exit policy.
type StateDefinition struct {
	Description string
	Enter       EntryFunc
	Exit        ExitPolicy
}
