// Package schedule expands cron expressions into run times and defers work
// until a given time.
package schedule
