package ivr

// ActionKind identifies a provider instruction. The engine never
// interprets an action, it only sequences them.
type ActionKind string

const (
	KindSpeak         ActionKind = "speak"
	KindCollectDigits ActionKind = "collect_digits"
	KindPause         ActionKind = "pause"
	KindDial          ActionKind = "dial"
	KindRecord        ActionKind = "record"
	KindEnqueue       ActionKind = "enqueue"
)

// Action is a single instruction emitted by a state's entry action.
type Action struct {
	Kind ActionKind `json:"kind"`

	// Text is the sentence spoken by a Speak action.
	Text string `json:"text,omitempty"`

	// NumDigits and ContinueOnEmpty configure CollectDigits. When
	// ContinueOnEmpty is set the provider invokes the webhook again on a
	// gather timeout instead of hanging up.
	NumDigits       int  `json:"num_digits,omitempty"`
	ContinueOnEmpty bool `json:"continue_on_empty,omitempty"`

	// Number is the destination of a Dial action.
	Number string `json:"number,omitempty"`

	// Queue is the holding line name of an Enqueue action.
	Queue string `json:"queue,omitempty"`

	// Prompts are played while digits are being collected.
	Prompts []Action `json:"prompts,omitempty"`
}

// ActionList is the ordered output of one webhook turn.
type ActionList []Action

// Speak reads text to the caller.
func Speak(text string) Action {
	return Action{Kind: KindSpeak, Text: text}
}

// CollectDigits gathers up to numDigits keypresses while playing prompts.
func CollectDigits(numDigits int, continueOnEmpty bool, prompts ...Action) Action {
	return Action{
		Kind:            KindCollectDigits,
		NumDigits:       numDigits,
		ContinueOnEmpty: continueOnEmpty,
		Prompts:         prompts,
	}
}

// Pause inserts a short silence.
func Pause() Action {
	return Action{Kind: KindPause}
}

// Dial places an outbound connection to number.
func Dial(number string) Action {
	return Action{Kind: KindDial, Number: number}
}

// Record records the caller's audio.
func Record() Action {
	return Action{Kind: KindRecord}
}

// Enqueue places the caller into the named holding line.
func Enqueue(queue string) Action {
	return Action{Kind: KindEnqueue, Queue: queue}
}
