package ivr

import (
	"errors"
	"fmt"
)

// ErrConfiguration is returned when a state table references a state it
// does not define. It is a startup error.
var ErrConfiguration = errors.New("ivr configuration error")

// ErrInternal indicates a logic or table bug detected while serving a turn.
var ErrInternal = errors.New("ivr internal error")

// ErrUnknownState is returned when a state is not present in the table.
var ErrUnknownState = fmt.Errorf("%w: unknown state", ErrInternal)

// ErrNotInputDriven is returned when exit is requested on a state that does
// not wait for caller input.
var ErrNotInputDriven = fmt.Errorf("%w: state is not input driven", ErrInternal)

// ErrChainDepthExceeded is returned when auto-chained transitions do not
// reach a terminal or input-driven state within the configured depth.
var ErrChainDepthExceeded = fmt.Errorf("%w: auto-chain depth exceeded", ErrInternal)
