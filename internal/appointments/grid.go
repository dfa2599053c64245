package appointments

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used across the booking API.
// Dates carry no timezone; a slot is a (doctor, date, time-of-day label) triple.
const DateLayout = "2006-01-02"

// Grid is the ordered set of bookable time-slot labels for a day.
type Grid struct {
	slots []string
	index map[string]int
}

// NewGrid builds a grid from ordered slot labels.
func NewGrid(slots []string) *Grid {
	index := make(map[string]int, len(slots))
	for i, s := range slots {
		index[s] = i
	}
	return &Grid{slots: slots, index: index}
}

// Slots returns the labels in grid order. Callers must not mutate the slice.
func (g *Grid) Slots() []string {
	return g.slots
}

// Contains reports whether label is a valid slot on this grid.
func (g *Grid) Contains(label string) bool {
	_, ok := g.index[label]
	return ok
}

// Len returns the number of slots in the grid.
func (g *Grid) Len() int {
	return len(g.slots)
}

// ParseDate validates a calendar date string.
func ParseDate(value string) (string, error) {
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return "", fmt.Errorf("appointments: %w: %q is not a valid date", ErrInvalidDate, value)
	}
	return parsed.Format(DateLayout), nil
}
