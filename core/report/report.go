// Package report collects the failures of one cycle and renders the
// messages handed to the notification sink.
package report

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/kilianp07/energyiot/core/logger"
	"github.com/kilianp07/energyiot/core/model"
)

// Notifier delivers a rendered message.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// NopNotifier discards every message.
type NopNotifier struct{}

func (NopNotifier) Send(context.Context, string, string) error { return nil }

// Subject prefixes.
const (
	FailureSubject = "Energy IOT Failures: "
	RefreshSubject = "Energy IOT Failure: RefreshToken"
	UpdateSubject  = "Energy Prices Update : "
)

// Deliver sends the message and logs delivery errors. Notification
// failures never reach the caller.
func Deliver(ctx context.Context, n Notifier, log logger.Logger, subject, body string) {
	if n == nil || strings.TrimSpace(body) == "" {
		return
	}
	if err := n.Send(ctx, subject, body); err != nil {
		log.Errorf("notify %q: %v", subject, err)
	}
}

// Aggregator accumulates the failures of a single cycle. It is owned by
// the cycle and not safe for concurrent use.
type Aggregator struct {
	failures []model.ActionFailure
	errs     []error
}

// Add appends action failures in arrival order.
func (a *Aggregator) Add(f ...model.ActionFailure) {
	a.failures = append(a.failures, f...)
}

// AddError records a cycle-level error such as an unreachable repository.
func (a *Aggregator) AddError(err error) {
	if err != nil {
		a.errs = append(a.errs, err)
	}
}

// Failures returns a copy of the collected action failures.
func (a *Aggregator) Failures() []model.ActionFailure {
	out := make([]model.ActionFailure, len(a.failures))
	copy(out, a.failures)
	return out
}

// Errors returns a copy of the collected cycle errors.
func (a *Aggregator) Errors() []error {
	out := make([]error, len(a.errs))
	copy(out, a.errs)
	return out
}

// Empty reports whether nothing went wrong.
func (a *Aggregator) Empty() bool { return len(a.failures) == 0 && len(a.errs) == 0 }

// Report renders the consolidated failure message. ok is false when there
// is nothing to report.
func (a *Aggregator) Report(loc *time.Location) (subject, body string, ok bool) {
	if a.Empty() {
		return "", "", false
	}
	if loc == nil {
		loc = time.UTC
	}
	subject = FailureSubject + fmt.Sprintf("Action Failures:%d", len(a.failures))
	if len(a.errs) > 0 {
		subject += fmt.Sprintf(" Errors:%d", len(a.errs))
	}

	var b strings.Builder
	for _, f := range a.failures {
		b.WriteString("<br/>")
		fmt.Fprintf(&b, "<br/>Trigger : %s", html.EscapeString(f.TriggerName))
		fmt.Fprintf(&b, "<br/>Action : %s", html.EscapeString(f.ItemName))
		fmt.Fprintf(&b, "<br/>ActionID : %s", html.EscapeString(f.ItemID))
		fmt.Fprintf(&b, "<br/>DateTime : %s", f.Timestamp.In(loc).Format("02/01/2006 15:04:05"))
		fmt.Fprintf(&b, "<br/>Error Message : %s", html.EscapeString(f.Message))
		if f.Detail != "" {
			fmt.Fprintf(&b, "<br/>Detail : %s", html.EscapeString(f.Detail))
		}
		fmt.Fprintf(&b, "<br/>Retries : %d", f.Retries)
		b.WriteString("<br/><br/>")
	}
	for _, err := range a.errs {
		fmt.Fprintf(&b, "<br/>Cycle Error : %s<br/>", html.EscapeString(err.Error()))
	}
	return subject, b.String(), true
}
