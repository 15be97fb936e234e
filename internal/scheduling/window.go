// Package scheduling holds the pure time-window logic behind the collision
// gate. Events store start/end as separate date and time-of-day fields, so a
// date-only comparison would over- or under-match same-day bookings; windows
// combine both into instants before testing overlap.
package scheduling

import (
	"time"

	"github.com/google/uuid"

	"example.com/venueops/services/booking/internal/models"
)

// TimeLayout is the wire format of the time-of-day fields ("14:30").
const TimeLayout = "15:04"

// Window is a half-open [Start, End) booking interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// CombineDateTime merges a date column and an "HH:MM" time-of-day into one
// instant in the date's location.
func CombineDateTime(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, clock)
	if err != nil {
		return time.Time{}, models.NewValidationError("time", "must be in HH:MM format")
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}

// NewWindow builds a window from the four stored fields. Returns
// models.ErrInvalidTimeRange when the combined end is not after the start.
func NewWindow(startDate time.Time, startTime string, endDate time.Time, endTime string) (Window, error) {
	start, err := CombineDateTime(startDate, startTime)
	if err != nil {
		return Window{}, err
	}
	end, err := CombineDateTime(endDate, endTime)
	if err != nil {
		return Window{}, err
	}
	if !end.After(start) {
		return Window{}, models.ErrInvalidTimeRange
	}
	return Window{Start: start, End: end}, nil
}

// EventWindow builds the window of a persisted event.
func EventWindow(e *models.Event) (Window, error) {
	return NewWindow(e.StartDate, e.StartTime, e.EndDate, e.EndTime)
}

// Overlaps tests strict interval overlap. Touching windows ([10,12) and
// [12,14)) do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && w.End.After(o.Start)
}

// FirstConflict returns the first candidate whose true window overlaps w,
// skipping the excluded event id (edit-in-place). Candidates whose stored
// fields don't parse are skipped.
func FirstConflict(w Window, candidates []models.Event, excludeID uuid.UUID) *models.SlotConflictError {
	for i := range candidates {
		c := &candidates[i]
		if excludeID != uuid.Nil && c.ID == excludeID {
			continue
		}
		cw, err := EventWindow(c)
		if err != nil {
			continue
		}
		if w.Overlaps(cw) {
			return &models.SlotConflictError{EventID: c.ID, Start: cw.Start, End: cw.End}
		}
	}
	return nil
}
