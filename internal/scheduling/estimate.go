package scheduling

import (
	"time"

	"laundry-pickup/internal/models"
)

const (
	scheduledTurnaround = 5 * time.Hour
	asapTurnaround      = 7 * time.Hour
)

// EstimateReturn derives the advisory return window of a pickup. The start is
// pickup start plus the turnaround; a start at or after closing moves to the
// next day's opening, a start before opening moves to opening the same day.
func EstimateReturn(pickup models.TimeSlot, asap bool) models.TimeSlot {
	offset := scheduledTurnaround
	if asap {
		offset = asapTurnaround
	}

	start := pickup.Start.Add(offset)
	switch {
	case start.Hour() >= ClosingHour:
		start = atOpening(start.AddDate(0, 0, 1))
	case start.Hour() < OpeningHour:
		start = atOpening(start)
	}
	return models.NewTimeSlot(start, start.Add(SlotLength))
}

func atOpening(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), OpeningHour, 0, 0, 0, day.Location())
}
