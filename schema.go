package bikeshare2sqlite

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timestamps are written without a zone and read back as UTC.
const (
	timestampLayout       = "2006-01-02 15:04:05"
	timestampOutputLayout = "2006-01-02 15:04:05.999999999"
)

type columnSchema struct {
	Name                string
	SQLType             string
	TypeDescription     string
	PresenceDescription string

	set   func(t *RawTrip, v string) error
	value func(t *RawTrip) any
}

func (c columnSchema) required() bool {
	return c.PresenceDescription == "Required"
}

type derivedColumnSchema struct {
	Name    string
	SQLType string
	value   func(t *EnrichedTrip) any
}

var tripColumns = []columnSchema{
	{
		Name: "duration_sec", SQLType: "INTEGER", TypeDescription: "Non-negative integer", PresenceDescription: "Required",
		set: func(t *RawTrip, v string) error {
			n, err := parseNonNegativeInt(v)
			t.DurationSec = &n
			return err
		},
		value: func(t *RawTrip) any { return derefOrNil(t.DurationSec) },
	},
	{
		Name: "start_time", SQLType: "TEXT", TypeDescription: "Timestamp", PresenceDescription: "Required",
		set: func(t *RawTrip, v string) error {
			ts, err := parseTimestamp(v)
			t.StartTime = &ts
			return err
		},
		value: func(t *RawTrip) any { return formatTimestamp(t.StartTime) },
	},
	{
		Name: "end_time", SQLType: "TEXT", TypeDescription: "Timestamp", PresenceDescription: "Optional",
		set: func(t *RawTrip, v string) error {
			ts, err := parseTimestamp(v)
			t.EndTime = &ts
			return err
		},
		value: func(t *RawTrip) any { return formatTimestamp(t.EndTime) },
	},
	textColumn("start_station_id", "ID", func(t *RawTrip) **string { return &t.StartStationID }),
	textColumn("start_station_name", "Text", func(t *RawTrip) **string { return &t.StartStationName }),
	floatColumn("start_station_latitude", "Latitude", func(t *RawTrip) **float64 { return &t.StartStationLat }),
	floatColumn("start_station_longitude", "Longitude", func(t *RawTrip) **float64 { return &t.StartStationLon }),
	textColumn("end_station_id", "ID", func(t *RawTrip) **string { return &t.EndStationID }),
	textColumn("end_station_name", "Text", func(t *RawTrip) **string { return &t.EndStationName }),
	floatColumn("end_station_latitude", "Latitude", func(t *RawTrip) **float64 { return &t.EndStationLat }),
	floatColumn("end_station_longitude", "Longitude", func(t *RawTrip) **float64 { return &t.EndStationLon }),
	{
		Name: "bike_id", SQLType: "TEXT", TypeDescription: "ID", PresenceDescription: "Optional",
		set: func(t *RawTrip, v string) error {
			t.BikeID = v
			return nil
		},
		value: func(t *RawTrip) any {
			if t.BikeID == "" {
				return nil
			}
			return t.BikeID
		},
	},
	textColumn("user_type", "Enum", func(t *RawTrip) **string { return &t.UserType }),
	{
		Name: "member_birth_year", SQLType: "INTEGER", TypeDescription: "Year", PresenceDescription: "Optional",
		set: func(t *RawTrip, v string) error {
			n, err := parseYear(v)
			t.MemberBirthYear = &n
			return err
		},
		value: func(t *RawTrip) any { return derefOrNil(t.MemberBirthYear) },
	},
	textColumn("member_gender", "Enum", func(t *RawTrip) **string { return &t.MemberGender }),
	{
		Name: "bike_share_for_all_trip", SQLType: "INTEGER", TypeDescription: "Yes/No flag", PresenceDescription: "Optional",
		set: func(t *RawTrip, v string) error {
			b, err := parseFlag(v)
			t.BikeShareForAllTrip = &b
			return err
		},
		value: func(t *RawTrip) any { return derefOrNil(t.BikeShareForAllTrip) },
	},
}

var derivedColumns = []derivedColumnSchema{
	{Name: "year", SQLType: "INTEGER", value: func(t *EnrichedTrip) any { return t.Year }},
	{Name: "month", SQLType: "INTEGER", value: func(t *EnrichedTrip) any { return t.Month }},
	{Name: "day_of_week", SQLType: "TEXT", value: func(t *EnrichedTrip) any { return t.DayOfWeek.Label }},
	{Name: "day_of_week_rank", SQLType: "INTEGER", value: func(t *EnrichedTrip) any { return t.DayOfWeek.Rank }},
	{Name: "hour", SQLType: "INTEGER", value: func(t *EnrichedTrip) any { return t.Hour }},
	{Name: "day_part", SQLType: "TEXT", value: func(t *EnrichedTrip) any { return t.DayPart.Label }},
	{Name: "day_part_rank", SQLType: "INTEGER", value: func(t *EnrichedTrip) any { return t.DayPart.Rank }},
	{Name: "age", SQLType: "INTEGER", value: func(t *EnrichedTrip) any { return derefOrNil(t.Age) }},
	{Name: "station_pair", SQLType: "TEXT", value: func(t *EnrichedTrip) any { return derefOrNil(t.StationPair) }},
}

var tripColumnsByName = func() map[string]columnSchema {
	out := make(map[string]columnSchema, len(tripColumns))
	for _, c := range tripColumns {
		out[c.Name] = c
	}
	return out
}()

func textColumn(name, typeDescription string, field func(t *RawTrip) **string) columnSchema {
	return columnSchema{
		Name: name, SQLType: "TEXT", TypeDescription: typeDescription, PresenceDescription: "Optional",
		set: func(t *RawTrip, v string) error {
			*field(t) = &v
			return nil
		},
		value: func(t *RawTrip) any { return derefOrNil(*field(t)) },
	}
}

func floatColumn(name, typeDescription string, field func(t *RawTrip) **float64) columnSchema {
	return columnSchema{
		Name: name, SQLType: "REAL", TypeDescription: typeDescription, PresenceDescription: "Optional",
		set: func(t *RawTrip, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			*field(t) = &f
			return err
		},
		value: func(t *RawTrip) any { return derefOrNil(*field(t)) },
	}
}

func derefOrNil[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

func parseTimestamp(v string) (time.Time, error) {
	if t, err := time.Parse(timestampLayout, v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}

func formatTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timestampOutputLayout)
}

func parseNonNegativeInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%d is negative", n)
	}
	return n, nil
}

// parseYear accepts "1984" and the "1984.0" form float-typed exports produce.
func parseYear(v string) (int, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%s is not a whole year", v)
	}
	return int(f), nil
}

func parseFlag(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(v)
}
