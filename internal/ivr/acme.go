package ivr

// States of the ACME voice menu.
const (
	StateGreeting  StateID = "greeting"
	StateMenu      StateID = "menu"
	StateSales     StateID = "sales"
	StateSupport   StateID = "support"
	StateHours     StateID = "hours"
	StateReception StateID = "reception"
	StateError     StateID = "error"
)

// menuRoutes maps main menu keypresses to states.
var menuRoutes = map[string]StateID{
	"1": StateSales,
	"2": StateSupport,
	"3": StateHours,
	"9": StateMenu,
	"0": StateReception,
}

// hoursRoutes maps keypresses in the business hours state. Anything other
// than 1 returns to the menu.
var hoursRoutes = map[string]StateID{
	"1": StateHours,
}

// ACMEOptions holds the deployment-specific values of the ACME menu.
type ACMEOptions struct {
	CompanyName     string
	ReceptionNumber string
	SupportQueue    string
}

// DefaultACMEOptions returns the stock values.
func DefaultACMEOptions() ACMEOptions {
	return ACMEOptions{
		CompanyName:     "ACME, Inc.",
		ReceptionNumber: "+19715701777",
		SupportQueue:    "support",
	}
}

// NewACMETable builds the ACME voice menu. Empty option fields fall back to
// DefaultACMEOptions.
func NewACMETable(opts ACMEOptions) (*Table, error) {
	def := DefaultACMEOptions()
	if opts.CompanyName == "" {
		opts.CompanyName = def.CompanyName
	}
	if opts.ReceptionNumber == "" {
		opts.ReceptionNumber = def.ReceptionNumber
	}
	if opts.SupportQueue == "" {
		opts.SupportQueue = def.SupportQueue
	}

	return NewTable(StateGreeting, map[StateID]StateDefinition{
		StateGreeting: {
			Description: "welcome message, falls through to the menu",
			Enter: func() ActionList {
				return ActionList{Speak("Welcome to " + opts.CompanyName)}
			},
			Exit: AutoChain{Next: StateMenu},
		},
		StateMenu: {
			Description: "main menu, one digit",
			Enter:       enterMenu,
			Exit:        InputDriven{Routes: menuRoutes, Default: StateError},
		},
		StateSales: {
			Description: "sales is busy, record a message",
			Enter: func() ActionList {
				return ActionList{
					Speak("All our sales representatives are currently busy, please leave us a message and we will return your call as soon as possible."),
					Record(),
				}
			},
			Exit: Terminal{},
		},
		StateSupport: {
			Description: "transfer to the support queue",
			Enter: func() ActionList {
				return ActionList{
					Speak("You are being transferred to the support line. A representative will be with you shortly."),
					Enqueue(opts.SupportQueue),
				}
			},
			Exit: Terminal{},
		},
		StateHours: {
			Description: "business hours, 1 repeats",
			Enter:       enterHours,
			Exit:        InputDriven{Routes: hoursRoutes, Default: StateMenu},
		},
		StateReception: {
			Description: "dial the receptionist",
			Enter: func() ActionList {
				return ActionList{Dial(opts.ReceptionNumber)}
			},
			Exit: Terminal{},
		},
		StateError: {
			Description: "invalid selection, back to the menu",
			Enter: func() ActionList {
				return ActionList{Speak("The option that you selected is invalid.")}
			},
			Exit: AutoChain{Next: StateMenu},
		},
	})
}

func enterMenu() ActionList {
	return ActionList{
		CollectDigits(1, true,
			Speak("Listen to the following menu options. "+
				"For sales, press one. "+
				"For support, press two. "+
				"For our business hours, press three. "+
				"To repeat these options, press nine. "+
				"To speak with the receptionist, press zero."),
		),
	}
}

func enterHours() ActionList {
	return ActionList{
		CollectDigits(1, true,
			Speak("We are open Mondays through Fridays from 9 AM to 6 PM."),
			Pause(),
			Speak("Press 1 to repeat this message or any other key to go back to the menu."),
		),
	}
}
