// Package scheduler runs the engine cycles on cron schedules. Jobs are
// serialized: a job never overlaps itself or any other job, and a panic
// inside a job is captured instead of crashing the process.
package scheduler
