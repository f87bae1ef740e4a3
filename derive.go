package bikeshare2sqlite

import (
	"fmt"
	"strings"
)

// Age is referenceYear minus the rider's birth year. ok is false when the birth year is absent.
func Age(raw *RawTrip, referenceYear int) (age int, ok bool) {
	if raw.MemberBirthYear == nil {
		return 0, false
	}
	return referenceYear - *raw.MemberBirthYear, true
}

// StationPair joins the start and end station names with sep. ok is false when either name is
// absent.
func StationPair(raw *RawTrip, sep string) (pair string, ok bool) {
	if raw.StartStationName == nil || raw.EndStationName == nil {
		return "", false
	}
	return *raw.StartStationName + sep + *raw.EndStationName, true
}

// validateSeparator rejects a separator that occurs inside any station name, since then two
// different start/end combinations could produce the same pair key.
func validateSeparator(sep string, stationNames []string) error {
	for _, name := range stationNames {
		if strings.Contains(name, sep) {
			return fmt.Errorf("%w: station pair separator %q occurs in station name %q",
				ErrInvalidConfig, sep, name)
		}
	}
	return nil
}
