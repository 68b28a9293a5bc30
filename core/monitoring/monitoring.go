// Package monitoring forwards errors and panics to the configured error
// tracker. The default monitor drops everything.
package monitoring

import "time"

// Tag keys shared by the callers so captures group by cycle.
const (
	TagCycle   = "cycle"
	TagCycleID = "cycle_id"
	TagGroup   = "group"
	TagJob     = "job"
	TagModule  = "module"
)

// Monitor is an error tracker.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

// NopMonitor discards captures.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init installs m as the process monitor. A nil m is ignored.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// CycleTags returns the tags of an error raised by cycle id of kind.
// Extra key/value pairs are appended in order.
func CycleTags(kind, id string, kv ...string) map[string]string {
	tags := map[string]string{TagCycle: kind}
	if id != "" {
		tags[TagCycleID] = id
	}
	for i := 0; i+1 < len(kv); i += 2 {
		tags[kv[i]] = kv[i+1]
	}
	return tags
}

// CaptureException records err with tags.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	current.CaptureException(err, tags)
}

// Recover reports a panic and re-panics. Call it deferred.
func Recover() { current.Recover() }

// Flush waits up to d for buffered events.
func Flush(d time.Duration) { current.Flush(d) }
