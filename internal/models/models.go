// Package models provides domain models for the stock alert application.
package models

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	apperrors "stock-alert/internal/errors"
)

// DateLayout is the layout of the informational "added" date stamp.
const DateLayout = "2006-01-02"

// Direction is the side of the target a price must reach to trigger.
// The zero value is not a valid direction.
type Direction uint8

const (
	// DirectionAbove triggers when price >= target.
	DirectionAbove Direction = iota + 1
	// DirectionBelow triggers when price <= target.
	DirectionBelow
)

// ParseDirection parses "above" or "below", case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "above":
		return DirectionAbove, nil
	case "below":
		return DirectionBelow, nil
	}
	return 0, apperrors.NewValidationError("direction", s, "must be 'above' or 'below'", apperrors.ErrInvalidDirection)
}

// Valid reports whether d is one of the two defined directions.
func (d Direction) Valid() bool {
	return d == DirectionAbove || d == DirectionBelow
}

func (d Direction) String() string {
	switch d {
	case DirectionAbove:
		return "above"
	case DirectionBelow:
		return "below"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, apperrors.NewValidationError("direction", uint8(d), "unknown direction", apperrors.ErrInvalidDirection)
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Triggered reports whether price satisfies the condition against target.
func (d Direction) Triggered(price, target float64) bool {
	switch d {
	case DirectionAbove:
		return price >= target
	case DirectionBelow:
		return price <= target
	default:
		return false
	}
}

// WatchRecord is one monitored instrument.
type WatchRecord struct {
	Symbol    string
	Target    float64
	Direction Direction
	Alerted   bool
	AddedOn   time.Time
}

// NewWatchRecord validates its inputs and returns a fresh, non-alerted record.
// The symbol is normalised to upper case.
func NewWatchRecord(symbol string, target float64, direction Direction, addedOn time.Time) (WatchRecord, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return WatchRecord{}, err
	}
	if err := ValidateTarget(target); err != nil {
		return WatchRecord{}, err
	}
	if !direction.Valid() {
		return WatchRecord{}, apperrors.NewValidationError("direction", uint8(direction), "must be 'above' or 'below'", apperrors.ErrInvalidDirection)
	}

	y, m, day := addedOn.Date()
	return WatchRecord{
		Symbol:    sym,
		Target:    target,
		Direction: direction,
		AddedOn:   time.Date(y, m, day, 0, 0, 0, 0, addedOn.Location()),
	}, nil
}

// Validate re-checks the record invariants, e.g. after loading from storage.
func (r WatchRecord) Validate() error {
	if _, err := NormalizeSymbol(r.Symbol); err != nil {
		return err
	}
	if err := ValidateTarget(r.Target); err != nil {
		return err
	}
	if !r.Direction.Valid() {
		return apperrors.NewValidationError("direction", uint8(r.Direction), "unknown direction", apperrors.ErrInvalidDirection)
	}
	return nil
}

// Triggered reports whether price meets this record's condition.
func (r WatchRecord) Triggered(price float64) bool {
	return r.Direction.Triggered(price, r.Target)
}

// Status returns the display status of the record.
func (r WatchRecord) Status() string {
	if r.Alerted {
		return "ALERTED"
	}
	return "watching"
}

// NormalizeSymbol trims and upper-cases a symbol and checks it is non-empty ASCII alphanumeric.
func NormalizeSymbol(symbol string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return "", apperrors.NewValidationError("symbol", symbol, "symbol cannot be empty", apperrors.ErrInvalidSymbol)
	}
	for _, r := range sym {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return "", apperrors.NewValidationError("symbol", symbol, "symbol must be alphanumeric", apperrors.ErrInvalidSymbol)
		}
	}
	return sym, nil
}

// ValidateTarget checks a target price is finite and strictly positive.
func ValidateTarget(target float64) error {
	if math.IsNaN(target) || math.IsInf(target, 0) || target <= 0 {
		return apperrors.NewValidationError("target", target, "target must be a positive number", apperrors.ErrInvalidTarget)
	}
	return nil
}

// CloneRecords returns a copy of records that can be mutated independently.
func CloneRecords(records []WatchRecord) []WatchRecord {
	if records == nil {
		return nil
	}
	out := make([]WatchRecord, len(records))
	copy(out, records)
	return out
}
