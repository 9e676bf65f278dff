package portfolio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rustyeddy/backtester/event"
)

var (
	ErrInvalidConfig       = errors.New("invalid ledger config")
	ErrInsufficientCapital = errors.New("insufficient capital")
	ErrNoPrice             = errors.New("no reference price")
	ErrUnknownDirection    = errors.New("unknown signal direction")

	// ErrInvariant is wrapped by every InvariantError. These are fatal.
	ErrInvariant = errors.New("ledger invariant violated")
)

// InvariantError reports a fill the ledger refused because applying it
// would break an accounting invariant. The ledger is left untouched and
// Snapshot is its state at the moment of refusal.
type InvariantError struct {
	Op       string
	Reason   string
	Fill     *event.Fill
	Snapshot Snapshot
}

func (e *InvariantError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s: %s", ErrInvariant, e.Op, e.Reason)
	if e.Fill != nil {
		fmt.Fprintf(&b, " (fill %s %s %s %s @ %s, commission %s)",
			e.Fill.ID, e.Fill.Symbol, e.Fill.Side, e.Fill.Quantity, e.Fill.Price, e.Fill.Commission)
	}
	fmt.Fprintf(&b, " [cash=%s reserved=%s equity=%s positions=%d]",
		e.Snapshot.Cash, e.Snapshot.Reserved, e.Snapshot.Equity, len(e.Snapshot.Positions))
	return b.String()
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }
