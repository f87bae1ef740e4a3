package bikeshare2sqlite

import (
	"fmt"
)

type Temporal struct {
	Year      int
	Month     int
	DayOfWeek string
	Hour      int
}

// ExtractTemporal derives the calendar fields of raw's start time. Times are read in the
// location they were parsed with; weekday names are Go's English names.
func ExtractTemporal(raw *RawTrip) (Temporal, error) {
	if raw.StartTime == nil {
		return Temporal{}, newRecordError(raw, "start_time", ErrMissingTimestamp)
	}
	t := *raw.StartTime
	return Temporal{
		Year:      t.Year(),
		Month:     int(t.Month()),
		DayOfWeek: t.Weekday().String(),
		Hour:      t.Hour(),
	}, nil
}

// DayPartBins maps an hour onto a day part. Bin i covers [edges[i], edges[i+1]) except the last,
// which also includes its upper edge, so the bins partition edges[0]..edges[len-1].
type DayPartBins struct {
	edges  []int
	labels []string
}

func NewDayPartBins(edges []int, labels []string) (*DayPartBins, error) {
	if len(labels) == 0 || len(edges) != len(labels)+1 {
		return nil, fmt.Errorf("%w: %d day part edges need %d labels, got %d",
			ErrInvalidConfig, len(edges), len(edges)-1, len(labels))
	}
	if edges[0] != 0 || edges[len(edges)-1] != 23 {
		return nil, fmt.Errorf("%w: day part edges must run from 0 to 23, got %v", ErrInvalidConfig, edges)
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return nil, fmt.Errorf("%w: day part edges must be strictly increasing, got %v", ErrInvalidConfig, edges)
		}
	}
	return &DayPartBins{
		edges:  append([]int(nil), edges...),
		labels: append([]string(nil), labels...),
	}, nil
}

func (b *DayPartBins) Label(hour int) (string, error) {
	if hour < 0 || hour > 23 {
		return "", fmt.Errorf("%w: %d", ErrInvalidHour, hour)
	}
	last := len(b.labels) - 1
	for i := 0; i < last; i++ {
		if hour < b.edges[i+1] {
			return b.labels[i], nil
		}
	}
	return b.labels[last], nil
}

func (b *DayPartBins) Labels() []string {
	return append([]string(nil), b.labels...)
}
