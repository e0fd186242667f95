package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stock-alert/internal/models"
)

// Outcome is what happened to one record during a pass.
type Outcome string

const (
	OutcomeSkipped     Outcome = "skipped"
	OutcomeFetchFailed Outcome = "fetch_failed"
	OutcomeWatching    Outcome = "watching"
	OutcomeAlertSent   Outcome = "alert_sent"
	OutcomeAlertFailed Outcome = "alert_failed"
)

// Entry is the per-record line of a pass report.
type Entry struct {
	Symbol    string           `json:"symbol"`
	Outcome   Outcome          `json:"outcome"`
	Price     float64          `json:"price,omitempty"`
	Target    float64          `json:"target"`
	Direction models.Direction `json:"direction"`
	Kind      string           `json:"kind,omitempty"`
	Error     string           `json:"error,omitempty"`
	At        time.Time        `json:"at"`
	Err       error            `json:"-"`
}

func newEntry(rec models.WatchRecord, outcome Outcome, at time.Time) Entry {
	return Entry{
		Symbol:    rec.Symbol,
		Outcome:   outcome,
		Target:    rec.Target,
		Direction: rec.Direction,
		At:        at,
	}
}

func (e Entry) withError(kind string, err error) Entry {
	e.Kind = kind
	e.Err = err
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

func (e Entry) String() string {
	quote := fmt.Sprintf("%s: $%s (target: $%s %s)", e.Symbol, money(e.Price), money(e.Target), e.Direction)

	switch e.Outcome {
	case OutcomeSkipped:
		return fmt.Sprintf("%s: already triggered, use 'reset' to check again", e.Symbol)
	case OutcomeFetchFailed:
		return fmt.Sprintf("%s: price unavailable (%s): %s", e.Symbol, e.Kind, e.Error)
	case OutcomeAlertSent:
		return quote + ", alert sent"
	case OutcomeAlertFailed:
		return fmt.Sprintf("%s, alert failed: %s", quote, e.Error)
	default:
		return quote
	}
}

// Report summarises one evaluation pass.
type Report struct {
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
	Cancelled bool      `json:"cancelled"`
	Entries   []Entry   `json:"entries"`
}

func (r *Report) add(e Entry) {
	r.Entries = append(r.Entries, e)
}

// Count returns the number of entries with the given outcome.
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == outcome {
			n++
		}
	}
	return n
}

// Duration returns how long the pass ran.
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Entry returns the entry for symbol.
func (r *Report) Entry(symbol string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Symbol == symbol {
			return e, true
		}
	}
	return Entry{}, false
}

func (r *Report) String() string {
	var sb strings.Builder
	for _, e := range r.Entries {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	sb.WriteString(fmt.Sprintf("%d checked, %d alerts sent, %d failed",
		len(r.Entries)-r.Count(OutcomeSkipped),
		r.Count(OutcomeAlertSent),
		r.Count(OutcomeFetchFailed)+r.Count(OutcomeAlertFailed)))
	if r.Cancelled {
		sb.WriteString(" (interrupted)")
	}
	return sb.String()
}

// PassResult is the outcome of Engine.EvaluateAll.
type PassResult struct {
	// Records is the updated copy of the input, in input order.
	Records []models.WatchRecord
	Report  *Report
	// Dirty is set when at least one record changed and must be saved.
	Dirty bool
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
