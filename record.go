package bikeshare2sqlite

import (
	"fmt"
	"time"
)

// RawTrip is one row of the trip log as ingested. Nullable columns are pointers; nil means the
// cell was empty.
type RawTrip struct {
	Row int // 1-based data row in the source file

	StartTime   *time.Time
	EndTime     *time.Time
	DurationSec *int

	StartStationID   *string
	StartStationName *string
	StartStationLat  *float64
	StartStationLon  *float64

	EndStationID   *string
	EndStationName *string
	EndStationLat  *float64
	EndStationLon  *float64

	BikeID              string
	UserType            *string
	MemberBirthYear     *int
	MemberGender        *string
	BikeShareForAllTrip *bool
}

// EnrichedTrip is a RawTrip plus its derived fields. Values are never modified after they leave
// the pipeline.
type EnrichedTrip struct {
	RawTrip

	Year      int
	Month     int
	DayOfWeek Category
	Hour      int
	DayPart   Category

	UserTypeCategory     *Category
	MemberGenderCategory *Category

	Age         *int
	StationPair *string
}

// RecordError is a structural problem with one record. It wraps one of ErrMissingTimestamp,
// ErrInvalidHour, ErrUnknownCategory or a parse error.
type RecordError struct {
	Row    int
	BikeID string
	Field  string
	Err    error
}

func (e *RecordError) Error() string {
	if e.BikeID != "" {
		return fmt.Sprintf("row %d (bike %s): %s: %s", e.Row, e.BikeID, e.Field, e.Err)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// clone returns a copy of r that shares no cells with it.
func (r *RawTrip) clone() RawTrip {
	out := *r
	out.StartTime = clonePtr(r.StartTime)
	out.EndTime = clonePtr(r.EndTime)
	out.DurationSec = clonePtr(r.DurationSec)
	out.StartStationID = clonePtr(r.StartStationID)
	out.StartStationName = clonePtr(r.StartStationName)
	out.StartStationLat = clonePtr(r.StartStationLat)
	out.StartStationLon = clonePtr(r.StartStationLon)
	out.EndStationID = clonePtr(r.EndStationID)
	out.EndStationName = clonePtr(r.EndStationName)
	out.EndStationLat = clonePtr(r.EndStationLat)
	out.EndStationLon = clonePtr(r.EndStationLon)
	out.UserType = clonePtr(r.UserType)
	out.MemberBirthYear = clonePtr(r.MemberBirthYear)
	out.MemberGender = clonePtr(r.MemberGender)
	out.BikeShareForAllTrip = clonePtr(r.BikeShareForAllTrip)
	return out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func newRecordError(raw *RawTrip, field string, err error) *RecordError {
	return &RecordError{Row: raw.Row, BikeID: raw.BikeID, Field: field, Err: err}
}

// StationNames lists every distinct start and end station name in the trips, in first-seen order.
func StationNames(trips []RawTrip) []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(name *string) {
		if name == nil {
			return
		}
		if _, ok := seen[*name]; ok {
			return
		}
		seen[*name] = struct{}{}
		names = append(names, *name)
	}
	for i := range trips {
		add(trips[i].StartStationName)
		add(trips[i].EndStationName)
	}
	return names
}
