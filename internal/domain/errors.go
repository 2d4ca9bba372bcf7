package domain

import (
	"fmt"
	"time"
)

// DataError reports a malformed or out-of-order bar. The offending bar is
// rejected and processing continues with prior state.
type DataError struct {
	Symbol    string
	Timeframe Timeframe
	OpenTime  time.Time
	Reason    string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("bad bar %s/%s at %s: %s", e.Symbol, e.Timeframe, e.OpenTime.Format(time.RFC3339), e.Reason)
}

// ConfigurationError reports an invalid configuration combination. It is
// raised at startup, before any bar is processed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// SimulationInvariantError reports a broken simulation invariant (negative
// quantity, equity underflow). It is fatal for the affected symbol's run and
// must be surfaced to the caller, never swallowed.
type SimulationInvariantError struct {
	Symbol string
	BarAt  time.Time
	Reason string
}

func (e *SimulationInvariantError) Error() string {
	return fmt.Sprintf("simulation invariant broken for %s at %s: %s", e.Symbol, e.BarAt.Format(time.RFC3339), e.Reason)
}
