package bikeshare2sqlite

import (
	"fmt"
	"log/slog"
	"strings"
)

type RejectReason string

const (
	RejectNullField  RejectReason = "NullField"
	RejectAgeOutlier RejectReason = "AgeOutlier"
)

// RejectReasons in evaluation order.
var RejectReasons = []RejectReason{RejectNullField, RejectAgeOutlier}

// Cleaner filters enriched trips. It never modifies a trip; it only counts the ones it drops.
type Cleaner struct {
	ageBound int
	accepted int
	rejected map[RejectReason]int
}

func NewCleaner(ageOutlierBound int) *Cleaner {
	return &Cleaner{ageBound: ageOutlierBound, rejected: make(map[RejectReason]int)}
}

// Check returns the reason trip would be rejected, or ok if it is accepted. It does not count.
func (c *Cleaner) Check(trip *EnrichedTrip) (reason RejectReason, ok bool) {
	if len(nullFields(trip)) > 0 {
		return RejectNullField, false
	}
	if *trip.Age < 0 || *trip.Age >= c.ageBound {
		return RejectAgeOutlier, false
	}
	return "", true
}

// Clean returns the accepted trips in their input order.
func (c *Cleaner) Clean(trips []EnrichedTrip) []EnrichedTrip {
	out := make([]EnrichedTrip, 0, len(trips))
	for i := range trips {
		if c.Accept(&trips[i]) {
			out = append(out, trips[i])
		}
	}
	return out
}

// Accept is Check plus bookkeeping.
func (c *Cleaner) Accept(trip *EnrichedTrip) bool {
	reason, ok := c.Check(trip)
	if !ok {
		c.rejected[reason]++
		slog.Debug("Rejected trip", slog.Int("row", trip.Row), slog.String("reason", string(reason)))
		return false
	}
	c.accepted++
	return true
}

func (c *Cleaner) Accepted() int {
	return c.accepted
}

func (c *Cleaner) Rejected() map[RejectReason]int {
	out := make(map[RejectReason]int, len(c.rejected))
	for reason, n := range c.rejected {
		out[reason] = n
	}
	return out
}

func nullFields(trip *EnrichedTrip) []string {
	var missing []string
	if trip.DurationSec == nil {
		missing = append(missing, "duration_sec")
	}
	if trip.StartStationName == nil {
		missing = append(missing, "start_station_name")
	}
	if trip.EndStationName == nil {
		missing = append(missing, "end_station_name")
	}
	if trip.UserType == nil {
		missing = append(missing, "user_type")
	}
	if trip.MemberGender == nil {
		missing = append(missing, "member_gender")
	}
	if trip.BikeShareForAllTrip == nil {
		missing = append(missing, "bike_share_for_all_trip")
	}
	if trip.Age == nil {
		missing = append(missing, "age")
	}
	return missing
}

// Summary is the observability record of one run.
type Summary struct {
	Input    int
	Accepted int
	Invalid  int
	Clipped  int // dropped by Clip after import
	Rejected map[RejectReason]int
}

func (s *Summary) add(other Summary) {
	s.Input += other.Input
	s.Accepted += other.Accepted
	s.Invalid += other.Invalid
	s.Clipped += other.Clipped
	if s.Rejected == nil {
		s.Rejected = make(map[RejectReason]int)
	}
	for reason, n := range other.Rejected {
		s.Rejected[reason] += n
	}
}

func (s Summary) String() string {
	var parts []string
	for _, reason := range RejectReasons {
		parts = append(parts, fmt.Sprintf("%s: %d", reason, s.Rejected[reason]))
	}
	if s.Clipped > 0 {
		parts = append(parts, fmt.Sprintf("clipped: %d", s.Clipped))
	}
	return fmt.Sprintf("%d of %d trips accepted, %d invalid (%s)",
		s.Accepted, s.Input, s.Invalid, strings.Join(parts, ", "))
}
