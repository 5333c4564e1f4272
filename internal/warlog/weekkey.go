package warlog

import (
	"fmt"
	"time"

	"github.com/gladiators/warstats/internal/config"
	"github.com/gladiators/warstats/internal/models"
)

// upstream timestamps come in two flavors: RFC3339 from our own persisted
// records and the API's compact basic format.
var timeLayouts = []string{
	time.RFC3339,
	"20060102T150405.000Z",
	"2006-01-02",
}

// Boundary describes the week-ending instant: a weekday plus a civil
// time-of-day in the policy timezone. Raw record dates roll forward to
// the next occurrence of the boundary weekday (backward when
// RollBackward is set) and the time-of-day is pinned.
type Boundary struct {
	Weekday      time.Weekday
	Hour         int
	Minute       int
	Location     *time.Location
	RollBackward bool
}

// NewBoundary builds a Boundary from policy config.
func NewBoundary(p config.Policy) (Boundary, error) {
	loc, err := p.Location()
	if err != nil {
		return Boundary{}, err
	}
	if p.BoundaryWeekday < 0 || p.BoundaryWeekday > 6 {
		return Boundary{}, fmt.Errorf("boundary weekday %d out of range", p.BoundaryWeekday)
	}
	return Boundary{
		Weekday:  time.Weekday(p.BoundaryWeekday),
		Hour:     p.BoundaryHour,
		Minute:   p.BoundaryMinute,
		Location: loc,
	}, nil
}

// Align rolls t to the nearest boundary occurrence in the configured
// direction and pins the time-of-day. Aligning an already-aligned
// instant is a no-op.
func (b Boundary) Align(t time.Time) time.Time {
	local := t.In(b.Location)
	var days int
	if b.RollBackward {
		days = -((int(local.Weekday()) - int(b.Weekday) + 7) % 7)
	} else {
		days = (int(b.Weekday) - int(local.Weekday()) + 7) % 7
	}
	d := local.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), b.Hour, b.Minute, 0, 0, b.Location)
}

// Next returns the first boundary instant strictly after t.
func (b Boundary) Next(t time.Time) time.Time {
	aligned := b.Align(t)
	if aligned.After(t) {
		return aligned
	}
	return b.Align(aligned.AddDate(0, 0, 1))
}

// Prev returns the last boundary instant at or before t.
func (b Boundary) Prev(t time.Time) time.Time {
	next := b.Next(t)
	prev := next.AddDate(0, 0, -7)
	if prev.After(t) {
		// DST shifts can land AddDate a hair off; re-pin.
		prev = b.Align(prev)
	}
	return prev
}

// ResolveWeekKey computes the canonical week-ending identity for a raw
// record. Date fields are tried in order; a record with no usable date
// at all (a live snapshot) keys off the current wall clock.
func (b Boundary) ResolveWeekKey(rec models.RawWarRecord, now time.Time) time.Time {
	for _, s := range []string{rec.EndDate, rec.CreatedDate} {
		if s == "" {
			continue
		}
		if t, err := parseUpstreamTime(s); err == nil {
			return b.Align(t)
		}
	}
	return b.Align(now)
}

func parseUpstreamTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// WeekKeyString is the canonical string form of a week key, used as the
// ledger map key and in snapshot files.
func WeekKeyString(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
