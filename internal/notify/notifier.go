// Package notify alerts operators about profitable triangles through chat
// webhooks. The Notifier is a result sink that forwards only detections
// whose profit reaches a configured threshold.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches detections to one or more Senders.
type Notifier struct {
	senders   []Sender
	minProfit float64
	logger    *slog.Logger
}

// NewNotifier creates a Notifier that alerts on detections with profit >=
// minProfit.
func NewNotifier(senders []Sender, minProfit float64, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders:   senders,
		minProfit: minProfit,
		logger:    logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool { return len(n.senders) > 0 }

// Name identifies the sink in logs.
func (n *Notifier) Name() string { return "notify" }

// Publish sends an alert when the detection found a triangle at or above
// the threshold.
func (n *Notifier) Publish(ctx context.Context, d domain.Detection) error {
	if !d.Found() || d.Profit < n.minProfit {
		return nil
	}
	title, message := FormatDetection(d)
	return n.dispatch(ctx, title, message)
}

// FormatDetection renders the alert title and body.
func FormatDetection(d domain.Detection) (string, string) {
	title := fmt.Sprintf("Triangle on %s: %.4f%%", d.Exchange, (d.Profit-1)*100)

	var b strings.Builder
	for i, leg := range d.Opportunity.Legs {
		fmt.Fprintf(&b, "%d. %s @ %.8g", i+1, leg.Symbol, leg.LastPrice)
		if leg.Inverted {
			b.WriteString(" (inverted)")
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "profit %.8f, %d tickers, %s", d.Profit, d.TickerCount, d.DetectedAt.UTC().Format("2006-01-02 15:04:05Z"))
	return title, b.String()
}

// dispatch sends to every sender; one failure does not stop the others.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

var _ domain.ResultSink = (*Notifier)(nil)
