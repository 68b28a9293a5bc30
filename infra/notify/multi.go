package notify

import (
	"context"
	"errors"

	"github.com/kilianp07/energyiot/core/report"
)

// Multi fans a report out to several notifiers. Every notifier is tried;
// the errors are joined.
type Multi []report.Notifier

func (m Multi) Send(ctx context.Context, subject, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Combine returns nil-safe fan-out: no notifier gives NopNotifier and a
// single one is returned as is.
func Combine(ns ...report.Notifier) report.Notifier {
	var out Multi
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	switch len(out) {
	case 0:
		return report.NopNotifier{}
	case 1:
		return out[0]
	}
	return out
}
