package ivr

import (
	"errors"
	"reflect"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	table, err := NewACMETable(DefaultACMEOptions())
	if err != nil {
		t.Fatalf("NewACMETable() error: %v", err)
	}
	return NewEngine(table)
}

// entryOf returns the entry actions of a single state for comparison.
func entryOf(t *testing.T, e *Engine, id StateID) ActionList {
	t.Helper()
	def, err := e.Table().Lookup(id)
	if err != nil {
		t.Fatalf("Lookup(%q) error: %v", id, err)
	}
	return def.Enter()
}

func TestEnterGreetingChainsToMenu(t *testing.T) {
	e := newTestEngine(t)
	var sess Session

	actions, entered, err := e.EnterState(&sess, StateGreeting)
	if err != nil {
		t.Fatalf("EnterState() error: %v", err)
	}

	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d: %+v", len(actions), actions)
	}
	if actions[0].Kind != KindSpeak {
		t.Errorf("first action = %s, want %s", actions[0].Kind, KindSpeak)
	}
	if actions[0].Text != "Welcome to ACME, Inc." {
		t.Errorf("greeting text = %q", actions[0].Text)
	}
	last := actions[len(actions)-1]
	if last.Kind != KindCollectDigits {
		t.Fatalf("last action = %s, want %s", last.Kind, KindCollectDigits)
	}
	if last.NumDigits != 1 || !last.ContinueOnEmpty {
		t.Errorf("menu gather = %+v, want 1 digit and continue on empty", last)
	}

	wantEntered := []StateID{StateGreeting, StateMenu}
	if !reflect.DeepEqual(entered, wantEntered) {
		t.Errorf("entered = %v, want %v", entered, wantEntered)
	}
	if sess.CurrentState != StateMenu {
		t.Errorf("CurrentState = %q, want %q", sess.CurrentState, StateMenu)
	}
}

func TestTerminalStatesDoNotChain(t *testing.T) {
	e := newTestEngine(t)

	for _, id := range []StateID{StateSales, StateSupport, StateReception} {
		t.Run(string(id), func(t *testing.T) {
			var sess Session
			actions, entered, err := e.EnterState(&sess, id)
			if err != nil {
				t.Fatalf("EnterState() error: %v", err)
			}
			if len(entered) != 1 || entered[0] != id {
				t.Errorf("entered = %v, want [%s]", entered, id)
			}
			if !reflect.DeepEqual(actions, entryOf(t, e, id)) {
				t.Errorf("actions = %+v, want entry actions of %s only", actions, id)
			}
			if sess.CurrentState != id {
				t.Errorf("CurrentState = %q, want %q", sess.CurrentState, id)
			}
		})
	}
}

func TestTerminalStateActions(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		state StateID
		last  Action
	}{
		{StateSales, Record()},
		{StateSupport, Enqueue("support")},
		{StateReception, Dial("+19715701777")},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			actions := entryOf(t, e, tt.state)
			got := actions[len(actions)-1]
			if !reflect.DeepEqual(got, tt.last) {
				t.Errorf("last action = %+v, want %+v", got, tt.last)
			}
		})
	}
}

func TestMenuSelections(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		digits string
		want   StateID
	}{
		{"1", StateSales},
		{"2", StateSupport},
		{"3", StateHours},
		{"9", StateMenu},
		{"0", StateReception},
		{"7", StateMenu},
		{"", StateMenu},
		{"11", StateMenu},
	}

	for _, tt := range tests {
		t.Run("digits="+tt.digits, func(t *testing.T) {
			sess := Session{CallID: "CA1", CurrentState: StateMenu}
			turn, err := e.HandleTurn(sess, tt.digits)
			if err != nil {
				t.Fatalf("HandleTurn() error: %v", err)
			}
			if turn.Session.CurrentState != tt.want {
				t.Errorf("CurrentState = %q, want %q", turn.Session.CurrentState, tt.want)
			}
		})
	}
}

func TestInvalidSelectionPlaysErrorThenMenu(t *testing.T) {
	e := newTestEngine(t)

	for _, digits := range []string{"7", ""} {
		sess := Session{CallID: "CA1", CurrentState: StateMenu}
		turn, err := e.HandleTurn(sess, digits)
		if err != nil {
			t.Fatalf("HandleTurn(%q) error: %v", digits, err)
		}

		want := ActionList{Speak("The option that you selected is invalid.")}
		want = append(want, entryOf(t, e, StateMenu)...)
		if !reflect.DeepEqual(turn.Actions, want) {
			t.Errorf("HandleTurn(%q) actions = %+v, want %+v", digits, turn.Actions, want)
		}

		wantEntered := []StateID{StateError, StateMenu}
		if !reflect.DeepEqual(turn.Entered, wantEntered) {
			t.Errorf("HandleTurn(%q) entered = %v, want %v", digits, turn.Entered, wantEntered)
		}
		// The persisted state is the final yield point, not the chained-through error state.
		if turn.Session.CurrentState != StateMenu {
			t.Errorf("HandleTurn(%q) CurrentState = %q, want %q", digits, turn.Session.CurrentState, StateMenu)
		}
	}
}

func TestHoursRepeatOrReturn(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		digits string
		want   StateID
	}{
		{"1", StateHours},
		{"2", StateMenu},
		{"", StateMenu},
		{"#", StateMenu},
	}

	for _, tt := range tests {
		t.Run("digits="+tt.digits, func(t *testing.T) {
			turn, err := e.HandleTurn(Session{CurrentState: StateHours}, tt.digits)
			if err != nil {
				t.Fatalf("HandleTurn() error: %v", err)
			}
			if turn.Session.CurrentState != tt.want {
				t.Errorf("CurrentState = %q, want %q", turn.Session.CurrentState, tt.want)
			}
			if !reflect.DeepEqual(turn.Actions, entryOf(t, e, tt.want)) {
				t.Errorf("actions = %+v, want entry actions of %s", turn.Actions, tt.want)
			}
		})
	}
}

func TestHoursPromptRepeats(t *testing.T) {
	e := newTestEngine(t)

	first, err := e.HandleTurn(Session{CurrentState: StateMenu}, "3")
	if err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}
	again, err := e.HandleTurn(first.Session, "1")
	if err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}
	if !reflect.DeepEqual(first.Actions, again.Actions) {
		t.Errorf("repeat actions = %+v, want %+v", again.Actions, first.Actions)
	}

	gather := again.Actions[0]
	if len(gather.Prompts) != 3 || gather.Prompts[1].Kind != KindPause {
		t.Errorf("hours prompts = %+v, want speak, pause, speak", gather.Prompts)
	}
}

func TestNewCallSessionRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	in := Session{CallID: "CA42"}
	turn, err := e.HandleTurn(in, "")
	if err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}

	if turn.Session.CurrentState != StateMenu {
		t.Errorf("CurrentState = %q, want %q", turn.Session.CurrentState, StateMenu)
	}
	if turn.Session.CallID != "CA42" {
		t.Errorf("CallID = %q, want CA42", turn.Session.CallID)
	}
	if in.Started() {
		t.Error("input session must not be modified")
	}
}

func TestNewCallIgnoresDigits(t *testing.T) {
	e := newTestEngine(t)

	turn, err := e.HandleTurn(Session{}, "1")
	if err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}
	if turn.Session.CurrentState != StateMenu {
		t.Errorf("CurrentState = %q, want %q", turn.Session.CurrentState, StateMenu)
	}
}

func TestFullCallWalk(t *testing.T) {
	e := newTestEngine(t)

	sess := Session{CallID: "CA-walk"}
	steps := []struct {
		digits string
		want   StateID
	}{
		{"", StateMenu},
		{"3", StateHours},
		{"1", StateHours},
		{"5", StateMenu},
		{"8", StateMenu},
		{"2", StateSupport},
	}

	for i, step := range steps {
		turn, err := e.HandleTurn(sess, step.digits)
		if err != nil {
			t.Fatalf("step %d: HandleTurn() error: %v", i, err)
		}
		if turn.Session.CurrentState != step.want {
			t.Fatalf("step %d: CurrentState = %q, want %q", i, turn.Session.CurrentState, step.want)
		}
		sess = turn.Session
	}
}

func TestExitStateRejectsNonInputDriven(t *testing.T) {
	e := newTestEngine(t)

	for _, id := range []StateID{StateGreeting, StateError, StateSales, StateSupport, StateReception} {
		var sess Session
		_, _, err := e.ExitState(&sess, id, "1")
		if !errors.Is(err, ErrNotInputDriven) {
			t.Errorf("ExitState(%q) error = %v, want ErrNotInputDriven", id, err)
		}
		if !errors.Is(err, ErrInternal) {
			t.Errorf("ExitState(%q) error = %v, want ErrInternal", id, err)
		}
	}
}

func TestHandleTurnFromTerminalStateFails(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.HandleTurn(Session{CurrentState: StateSales}, "1")
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("HandleTurn() error = %v, want ErrInternal", err)
	}
}

func TestHandleTurnUnknownStoredState(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.HandleTurn(Session{CurrentState: "billing"}, "1")
	if !errors.Is(err, ErrUnknownState) {
		t.Fatalf("HandleTurn() error = %v, want ErrUnknownState", err)
	}
}

func TestChainDepthGuard(t *testing.T) {
	say := func() ActionList { return ActionList{Speak("loop")} }
	table, err := NewTable("a", map[StateID]StateDefinition{
		"a": {Enter: say, Exit: AutoChain{Next: "b"}},
		"b": {Enter: say, Exit: AutoChain{Next: "a"}},
	})
	if err != nil {
		t.Fatalf("NewTable() error: %v", err)
	}
	e := NewEngine(table)

	var sess Session
	_, entered, err := e.EnterState(&sess, "a")
	if !errors.Is(err, ErrChainDepthExceeded) {
		t.Fatalf("EnterState() error = %v, want ErrChainDepthExceeded", err)
	}
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("EnterState() error = %v, want ErrInternal", err)
	}
	// Default depth is table size + 1.
	if len(entered) != 3 {
		t.Errorf("entered %d states, want 3", len(entered))
	}
}

func TestWithMaxChainDepth(t *testing.T) {
	table, err := NewACMETable(DefaultACMEOptions())
	if err != nil {
		t.Fatalf("NewACMETable() error: %v", err)
	}

	// greeting -> menu needs two entries.
	e := NewEngine(table, WithMaxChainDepth(1))
	var sess Session
	if _, _, err := e.EnterState(&sess, StateGreeting); !errors.Is(err, ErrChainDepthExceeded) {
		t.Fatalf("EnterState() error = %v, want ErrChainDepthExceeded", err)
	}

	e = NewEngine(table, WithMaxChainDepth(2))
	if _, _, err := e.EnterState(&sess, StateGreeting); err != nil {
		t.Fatalf("EnterState() error: %v", err)
	}
}

func TestEntryEvaluatedOncePerEntry(t *testing.T) {
	calls := make(map[StateID]int)
	counted := func(id StateID) EntryFunc {
		return func() ActionList {
			calls[id]++
			return ActionList{Speak(string(id))}
		}
	}

	table, err := NewTable("start", map[StateID]StateDefinition{
		"start": {Enter: counted("start"), Exit: AutoChain{Next: "ask"}},
		"ask": {
			Enter: counted("ask"),
			Exit:  InputDriven{Routes: map[string]StateID{"1": "ask"}, Default: "done"},
		},
		"done": {Enter: counted("done"), Exit: Terminal{}},
	})
	if err != nil {
		t.Fatalf("NewTable() error: %v", err)
	}
	e := NewEngine(table)

	turn, err := e.HandleTurn(Session{}, "")
	if err != nil {
		t.Fatalf("HandleTurn() error: %v", err)
	}
	for i := 0; i < 3; i++ {
		turn, err = e.HandleTurn(turn.Session, "1")
		if err != nil {
			t.Fatalf("HandleTurn() error: %v", err)
		}
	}

	want := map[StateID]int{"start": 1, "ask": 4}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("entry evaluations = %v, want %v", calls, want)
	}
}

type recordingObserver struct {
	from []StateID
	errs []error
}

func (o *recordingObserver) ObserveTurn(from StateID, _ Turn, err error) {
	o.from = append(o.from, from)
	o.errs = append(o.errs, err)
}

func TestObserverNotified(t *testing.T) {
	table, err := NewACMETable(DefaultACMEOptions())
	if err != nil {
		t.Fatalf("NewACMETable() error: %v", err)
	}
	obs := &recordingObserver{}
	e := NewEngine(table, WithObserver(obs))

	turn, _ := e.HandleTurn(Session{}, "")
	_, _ = e.HandleTurn(turn.Session, "1")
	_, _ = e.HandleTurn(Session{CurrentState: StateSales}, "1")

	wantFrom := []StateID{"", StateMenu, StateSales}
	if !reflect.DeepEqual(obs.from, wantFrom) {
		t.Errorf("observed from = %v, want %v", obs.from, wantFrom)
	}
	if obs.errs[0] != nil || obs.errs[1] != nil || obs.errs[2] == nil {
		t.Errorf("observed errors = %v, want nil, nil, non-nil", obs.errs)
	}
}
