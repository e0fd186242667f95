package models

import "time"

// Alert is a threshold crossing handed to a notifier.
type Alert struct {
	Symbol    string
	Price     float64
	Target    float64
	Direction Direction
	Timestamp time.Time
}

// NewAlert builds the alert for a triggered record at the observed price.
func NewAlert(record WatchRecord, price float64, at time.Time) Alert {
	return Alert{
		Symbol:    record.Symbol,
		Price:     price,
		Target:    record.Target,
		Direction: record.Direction,
		Timestamp: at,
	}
}
