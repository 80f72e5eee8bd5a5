package scheduling

import (
	"testing"
	"time"

	"laundry-pickup/internal/models"

	"github.com/stretchr/testify/assert"
)

func slotAt(day, hour int) models.TimeSlot {
	start := time.Date(2026, 3, day, hour, 0, 0, 0, berlin)
	return models.NewTimeSlot(start, start.Add(SlotLength))
}

func TestEstimateReturn(t *testing.T) {
	tests := []struct {
		name      string
		pickup    models.TimeSlot
		asap      bool
		wantStart time.Time
	}{
		{"morning scheduled", slotAt(2, 8), false, time.Date(2026, 3, 2, 13, 0, 0, 0, berlin)},
		{"morning asap", slotAt(2, 8), true, time.Date(2026, 3, 2, 15, 0, 0, 0, berlin)},
		{"noon asap stays same day", slotAt(2, 12), true, time.Date(2026, 3, 2, 19, 0, 0, 0, berlin)},
		{"last slot scheduled rolls to next day", slotAt(2, 18), false, time.Date(2026, 3, 3, 8, 0, 0, 0, berlin)},
		{"afternoon asap hits closing", slotAt(2, 14), true, time.Date(2026, 3, 3, 8, 0, 0, 0, berlin)},
		{"afternoon scheduled stays same day", slotAt(2, 14), false, time.Date(2026, 3, 2, 19, 0, 0, 0, berlin)},
		{"exactly closing rolls over", slotAt(2, 13), true, time.Date(2026, 3, 3, 8, 0, 0, 0, berlin)},
		{"past midnight clamps to opening", slotAt(2, 18), true, time.Date(2026, 3, 3, 8, 0, 0, 0, berlin)},
		{"month end rollover", slotAt(31, 18), false, time.Date(2026, 4, 1, 8, 0, 0, 0, berlin)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateReturn(tt.pickup, tt.asap)
			assert.True(t, tt.wantStart.Equal(got.Start), "want %s, got %s", tt.wantStart, got.Start)
			assert.Equal(t, SlotLength, got.End.Sub(got.Start))
			assert.GreaterOrEqual(t, got.Start.Hour(), OpeningHour)
			assert.Less(t, got.Start.Hour(), ClosingHour)
		})
	}
}

func TestEstimateReturn_ClosingSlotScenario(t *testing.T) {
	// Day 0, 18:00-20:00, chosen time: 23:00 is past closing.
	got := EstimateReturn(slotAt(2, 18), false)

	assert.Equal(t, "2026-03-03", got.Date)
	assert.Equal(t, "08:00", got.Start.Format(models.ClockLayout))
	assert.Equal(t, "10:00", got.End.Format(models.ClockLayout))
}

func TestEstimateReturn_FollowsEveryGeneratedSlot(t *testing.T) {
	s := New(berlin, fixedClock(time.Date(2026, 3, 2, 6, 0, 0, 0, berlin)))

	for pickup := range s.Slots(true, DefaultHorizonDays) {
		for _, asap := range []bool{true, false} {
			ret := EstimateReturn(pickup, asap)
			assert.True(t, ret.Start.After(pickup.Start), "return must follow pickup")
		}
	}
}
