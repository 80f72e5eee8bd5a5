// Package scheduling produces the 2-hour pickup windows offered to customers and
// the advisory return estimate derived from a pickup window.
package scheduling

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"laundry-pickup/internal/models"
)

const (
	// OpeningHour is the start of the first slot of a day.
	OpeningHour = 8
	// LastSlotStartHour is the start of the last slot of a day.
	LastSlotStartHour = 18
	// ClosingHour is the end of the business window.
	ClosingHour = 20

	SlotLength = 2 * time.Hour

	DefaultHorizonDays = 7
	MaxHorizonDays     = 14
)

// Scheduler generates slots in a fixed business time zone.
type Scheduler struct {
	loc *time.Location
	now func() time.Time
}

// New creates a Scheduler. A nil clock means time.Now.
func New(loc *time.Location, now func() time.Time) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Scheduler{loc: loc, now: now}
}

// Now returns the current wall-clock time in the business time zone.
func (s *Scheduler) Now() time.Time {
	return s.now().In(s.loc)
}

// Location returns the business time zone.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Slots yields the candidate windows of the next days, in order. The first day
// is today when fromToday is set, tomorrow otherwise. Windows of today that have
// already started are skipped. The sequence reads the clock each time it is
// ranged over, so it can be reused and never goes stale.
func (s *Scheduler) Slots(fromToday bool, days int) iter.Seq[models.TimeSlot] {
	return func(yield func(models.TimeSlot) bool) {
		if days <= 0 {
			return
		}
		n := min(days, MaxHorizonDays)

		now := s.Now()
		first := 0
		if !fromToday {
			first = 1
		}
		for d := first; d < first+n; d++ {
			for h := OpeningHour; h <= LastSlotStartHour; h += 2 {
				start := time.Date(now.Year(), now.Month(), now.Day()+d, h, 0, 0, 0, s.loc)
				if !start.After(now) {
					continue
				}
				if !yield(models.NewTimeSlot(start, start.Add(SlotLength))) {
					return
				}
			}
		}
	}
}

// SlotList collects Slots into a slice.
func (s *Scheduler) SlotList(fromToday bool, days int) []models.TimeSlot {
	return slices.Collect(s.Slots(fromToday, days))
}

// ParseSlot resolves a client date ("2006-01-02") and start time ("15:04") into
// a window of the slot grid.
func (s *Scheduler) ParseSlot(date, start string) (models.TimeSlot, error) {
	t, err := time.ParseInLocation(models.DateLayout+" "+models.ClockLayout, date+" "+start, s.loc)
	if err != nil {
		return models.TimeSlot{}, fmt.Errorf("%w: %s %s", models.ErrInvalidSlot, date, start)
	}
	if !OnGrid(t) {
		return models.TimeSlot{}, fmt.Errorf("%w: %s is not a slot start", models.ErrInvalidSlot, start)
	}
	return models.NewTimeSlot(t, t.Add(SlotLength)), nil
}

// OnGrid reports whether t is the start of one of the daily windows.
func OnGrid(t time.Time) bool {
	h := t.Hour()
	return t.Minute() == 0 && t.Second() == 0 &&
		h >= OpeningHour && h <= LastSlotStartHour && (h-OpeningHour)%2 == 0
}

// Earliest returns the first window still open, today included.
func (s *Scheduler) Earliest() (models.TimeSlot, bool) {
	next, stop := iter.Pull(s.Slots(true, MaxHorizonDays))
	defer stop()
	return next()
}
