package ivr

import (
	"errors"
	"strings"
	"testing"
)

func speak(text string) EntryFunc {
	return func() ActionList { return ActionList{Speak(text)} }
}

func TestACMETableClosure(t *testing.T) {
	table, err := NewACMETable(DefaultACMEOptions())
	if err != nil {
		t.Fatalf("NewACMETable() error: %v", err)
	}

	if table.Initial() != StateGreeting {
		t.Errorf("Initial() = %q, want %q", table.Initial(), StateGreeting)
	}
	if table.Len() != 7 {
		t.Errorf("Len() = %d, want 7", table.Len())
	}

	for _, id := range table.States() {
		def, err := table.Lookup(id)
		if err != nil {
			t.Fatalf("Lookup(%q) error: %v", id, err)
		}
		for _, to := range def.Exit.targets() {
			if _, err := table.Lookup(to); err != nil {
				t.Errorf("state %q target %q: %v", id, to, err)
			}
		}
	}
}

func TestACMETableExitPolicies(t *testing.T) {
	table, err := NewACMETable(DefaultACMEOptions())
	if err != nil {
		t.Fatalf("NewACMETable() error: %v", err)
	}

	tests := []struct {
		state StateID
		kind  string
	}{
		{StateGreeting, "auto_chain"},
		{StateMenu, "input_driven"},
		{StateSales, "terminal"},
		{StateSupport, "terminal"},
		{StateHours, "input_driven"},
		{StateReception, "terminal"},
		{StateError, "auto_chain"},
	}

	for _, tt := range tests {
		def, err := table.Lookup(tt.state)
		if err != nil {
			t.Fatalf("Lookup(%q) error: %v", tt.state, err)
		}
		if got := def.Exit.Kind(); got != tt.kind {
			t.Errorf("%s exit = %s, want %s", tt.state, got, tt.kind)
		}
	}
}

func TestMenuResolverIsPure(t *testing.T) {
	table, err := NewACMETable(DefaultACMEOptions())
	if err != nil {
		t.Fatalf("NewACMETable() error: %v", err)
	}
	def, _ := table.Lookup(StateMenu)
	policy := def.Exit.(InputDriven)

	for _, digits := range []string{"1", "2", "3", "9", "0", "7", ""} {
		first := policy.Resolve(digits)
		second := policy.Resolve(digits)
		if first != second {
			t.Errorf("Resolve(%q) = %q then %q", digits, first, second)
		}
	}
}

func TestACMEOptionsApplied(t *testing.T) {
	table, err := NewACMETable(ACMEOptions{
		CompanyName:     "Globex",
		ReceptionNumber: "+15550100",
		SupportQueue:    "tier1",
	})
	if err != nil {
		t.Fatalf("NewACMETable() error: %v", err)
	}

	check := func(id StateID, want Action) {
		t.Helper()
		def, _ := table.Lookup(id)
		actions := def.Enter()
		got := actions[len(actions)-1]
		if got.Kind != want.Kind || got.Text != want.Text || got.Number != want.Number || got.Queue != want.Queue {
			t.Errorf("%s last action = %+v, want %+v", id, got, want)
		}
	}
	check(StateGreeting, Speak("Welcome to Globex"))
	check(StateReception, Dial("+15550100"))
	check(StateSupport, Enqueue("tier1"))
}

func TestNewTableMissingInitial(t *testing.T) {
	_, err := NewTable("start", map[StateID]StateDefinition{
		"other": {Enter: speak("x"), Exit: Terminal{}},
	})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("NewTable() error = %v, want ErrConfiguration", err)
	}
	if !strings.Contains(err.Error(), `initial state "start"`) {
		t.Errorf("error %q should name the initial state", err)
	}
}

func TestNewTableDanglingReferences(t *testing.T) {
	tests := []struct {
		name    string
		exit    ExitPolicy
		missing string
	}{
		{"auto chain", AutoChain{Next: "nowhere"}, "nowhere"},
		{"route", InputDriven{Routes: map[string]StateID{"1": "lost"}, Default: "start"}, "lost"},
		{"default", InputDriven{Routes: map[string]StateID{"1": "start"}, Default: "gone"}, "gone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable("start", map[StateID]StateDefinition{
				"start": {Enter: speak("hi"), Exit: tt.exit},
			})
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("NewTable() error = %v, want ErrConfiguration", err)
			}
			if !strings.Contains(err.Error(), tt.missing) {
				t.Errorf("error %q should name %q", err, tt.missing)
			}
		})
	}
}

func TestNewTableReportsAllProblems(t *testing.T) {
	_, err := NewTable("a", map[StateID]StateDefinition{
		"a": {Enter: nil, Exit: AutoChain{Next: "x"}},
		"b": {Enter: speak("b"), Exit: nil},
	})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("NewTable() error = %v, want ErrConfiguration", err)
	}
	for _, want := range []string{`"a" has no entry action`, `"x"`, `"b" has no exit policy`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should contain %q", err, want)
		}
	}
}

func TestLookupUnknownState(t *testing.T) {
	table, err := NewTable("a", map[StateID]StateDefinition{
		"a": {Enter: speak("a"), Exit: Terminal{}},
	})
	if err != nil {
		t.Fatalf("NewTable() error: %v", err)
	}
	if _, err := table.Lookup("z"); !errors.Is(err, ErrUnknownState) {
		t.Fatalf("Lookup() error = %v, want ErrUnknownState", err)
	}
}

func TestTableIsolatedFromInputMap(t *testing.T) {
	defs := map[StateID]StateDefinition{
		"a": {Enter: speak("a"), Exit: Terminal{}},
	}
	table, err := NewTable("a", defs)
	if err != nil {
		t.Fatalf("NewTable() error: %v", err)
	}

	defs["b"] = StateDefinition{Enter: speak("b"), Exit: Terminal{}}
	delete(defs, "a")

	if _, err := table.Lookup("a"); err != nil {
		t.Errorf("Lookup(a) after caller mutation: %v", err)
	}
	if _, err := table.Lookup("b"); err == nil {
		t.Error("Lookup(b) should fail, table must not see later additions")
	}
}
