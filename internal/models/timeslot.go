package models

import (
	"fmt"
	"time"
)

// DateLayout is the wire format of slot dates.
const DateLayout = "2006-01-02"

// ClockLayout is the wire format of slot start/end times.
const ClockLayout = "15:04"

// TimeSlot is a 2-hour pickup or return window. It is derived, never stored as such.
type TimeSlot struct {
	Date    string    `json:"date"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Display string    `json:"display"`
}

// NewTimeSlot builds a slot from its bounds, in the location of start.
func NewTimeSlot(start, end time.Time) TimeSlot {
	return TimeSlot{
		Date:    start.Format(DateLayout),
		Start:   start,
		End:     end,
		Display: fmt.Sprintf("%s %s - %s", start.Format("Mon 02.01."), start.Format(ClockLayout), end.Format(ClockLayout)),
	}
}

// IsZero reports whether the slot was never set.
func (s TimeSlot) IsZero() bool {
	return s.Start.IsZero()
}
