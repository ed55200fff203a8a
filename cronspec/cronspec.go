// Package cronspec evaluates standard 5-field cron expressions in a
// specific timezone, for the engine's repeatable-job expansion.
//
// Evaluation is delegated to robfig/cron/v3, whose Schedule.Next operates
// on time.Time values carrying a *time.Location; because Go's time
// package already resolves wall-clock arithmetic against a Location's DST
// transitions, a fire that would fall in a skipped hour does not happen
// that day (Next returns the next matching wall-clock time after the
// gap), and a fire that falls in a
// wall-clock hour that occurs twice (a repeated hour) is produced once,
// at its first occurrence — exactly the behavior the engine requires.
package cronspec

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Spec is a parsed, timezone-bound cron expression.
type Spec struct {
	expr  string
	tz    string
	loc   *time.Location
	sched cron.Schedule
}

// Parse validates expression as a standard 5-field cron expression and
// binds it to the named IANA timezone.
func Parse(expression, timezone string) (*Spec, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("cronspec: load location %q: %w", timezone, err)
	}
	sched, err := parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("cronspec: parse expression %q: %w", expression, err)
	}
	return &Spec{expr: expression, tz: timezone, loc: loc, sched: sched}, nil
}

// Next returns the first fire time strictly after after, expressed in the
// Spec's timezone. after is converted into that timezone before
// evaluation so that DST transitions are resolved correctly regardless of
// the location after was constructed in.
func (s *Spec) Next(after time.Time) time.Time {
	return s.sched.Next(after.In(s.loc))
}

// Expression returns the original cron expression text.
func (s *Spec) Expression() string {
	return s.expr
}

// Timezone returns the IANA timezone name the Spec was parsed with.
func (s *Spec) Timezone() string {
	return s.tz
}
