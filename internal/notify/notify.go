// Package notify delivers triggered price alerts.
package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	apperrors "stock-alert/internal/errors"
	"stock-alert/internal/models"
)

// Notifier delivers a single alert. A failed delivery returns a
// *errors.NotifyError matching errors.ErrDeliveryFailed.
type Notifier interface {
	Notify(ctx context.Context, alert models.Alert) error
}

// Recorder persists delivered alerts.
type Recorder interface {
	Record(alert models.Alert) error
}

// FormatSubject returns the subject line of an alert message.
func FormatSubject(alert models.Alert) string {
	return fmt.Sprintf("Stock Alert: %s $%s", alert.Symbol, money(alert.Price))
}

// FormatBody returns the plain-text body of an alert message.
func FormatBody(alert models.Alert) string {
	var sb strings.Builder
	sb.WriteString("STOCK PRICE ALERT\n\n")
	sb.WriteString(fmt.Sprintf("Symbol: %s\n", alert.Symbol))
	sb.WriteString(fmt.Sprintf("Current Price: $%s\n", money(alert.Price)))
	sb.WriteString(fmt.Sprintf("Target: $%s (%s)\n", money(alert.Target), alert.Direction))
	sb.WriteString(fmt.Sprintf("Time: %s\n\n", alert.Timestamp.Format("2006-01-02 15:04:05")))
	sb.WriteString("This is an automated alert from your Stock Price Alert system.\n")
	return sb.String()
}

// ConsoleNotifier writes alerts to a writer instead of delivering them.
type ConsoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleNotifier creates a ConsoleNotifier writing to w.
func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{w: w}
}

// Notify prints the alert.
func (c *ConsoleNotifier) Notify(ctx context.Context, alert models.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintf(c.w, "[dry-run] %s (target: $%s %s)\n",
		FormatSubject(alert), money(alert.Target), alert.Direction)
	if err != nil {
		return apperrors.NewNotifyError(alert.Symbol, "console", err)
	}
	return nil
}

// AuditedNotifier records every alert its inner notifier delivers.
type AuditedNotifier struct {
	inner    Notifier
	recorder Recorder
	logger   zerolog.Logger
}

// NewAuditedNotifier wraps inner so successful deliveries reach recorder.
func NewAuditedNotifier(inner Notifier, recorder Recorder, logger zerolog.Logger) *AuditedNotifier {
	return &AuditedNotifier{
		inner:    inner,
		recorder: recorder,
		logger:   logger.With().Str("component", "notify").Logger(),
	}
}

// Notify delivers the alert and then appends it to the audit log.
// An audit failure is logged; the delivery still counts as successful.
func (a *AuditedNotifier) Notify(ctx context.Context, alert models.Alert) error {
	if err := a.inner.Notify(ctx, alert); err != nil {
		return err
	}

	if err := a.recorder.Record(alert); err != nil {
		a.logger.Error().
			Err(err).
			Str("symbol", alert.Symbol).
			Msg("Alert delivered but audit log write failed")
	}
	return nil
}
