package bikeshare2sqlite

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func cleanTrip(row int, age *int) EnrichedTrip {
	return EnrichedTrip{
		RawTrip: RawTrip{
			Row:                 row,
			DurationSec:         ptr(600),
			StartStationName:    ptr("Berry St at 4th St"),
			EndStationName:      ptr("Market St at 10th St"),
			UserType:            ptr("Subscriber"),
			MemberGender:        ptr("Female"),
			BikeShareForAllTrip: ptr(false),
		},
		Age: age,
	}
}

func TestCleanerAgeBound(t *testing.T) {
	c := NewCleaner(100)
	cases := []struct {
		age  int
		want bool
	}{
		{0, true},
		{29, true},
		{99, true},
		{100, false},
		{150, false},
		{-1, false},
	}
	for _, tc := range cases {
		trip := cleanTrip(1, ptr(tc.age))
		reason, ok := c.Check(&trip)
		assert.Equal(t, tc.want, ok, "age %d", tc.age)
		if !ok {
			assert.Equal(t, RejectAgeOutlier, reason)
		}
	}
}

func TestCleanerNullFieldComesFirst(t *testing.T) {
	c := NewCleaner(100)

	trip := cleanTrip(1, ptr(150))
	trip.MemberGender = nil
	reason, ok := c.Check(&trip)
	require.False(t, ok)
	assert.Equal(t, RejectNullField, reason)

	for _, unset := range []func(trip *EnrichedTrip){
		func(trip *EnrichedTrip) { trip.DurationSec = nil },
		func(trip *EnrichedTrip) { trip.StartStationName = nil },
		func(trip *EnrichedTrip) { trip.EndStationName = nil },
		func(trip *EnrichedTrip) { trip.UserType = nil },
		func(trip *EnrichedTrip) { trip.BikeShareForAllTrip = nil },
		func(trip *EnrichedTrip) { trip.Age = nil },
	} {
		trip := cleanTrip(1, ptr(30))
		unset(&trip)
		reason, ok := c.Check(&trip)
		require.False(t, ok)
		assert.Equal(t, RejectNullField, reason)
	}
}

func TestCleanIsIdempotentAndDoesNotMutate(t *testing.T) {
	input := []EnrichedTrip{
		cleanTrip(1, ptr(25)),
		cleanTrip(2, nil),
		cleanTrip(3, ptr(105)),
		cleanTrip(4, ptr(30)),
	}
	before := make([]EnrichedTrip, len(input))
	copy(before, input)

	first := NewCleaner(100)
	once := first.Clean(input)
	assert.Equal(t, before, input)
	require.Len(t, once, 2)
	assert.Equal(t, 1, once[0].Row)
	assert.Equal(t, 4, once[1].Row)
	assert.Equal(t, map[RejectReason]int{RejectNullField: 1, RejectAgeOutlier: 1}, first.Rejected())
	assert.Equal(t, 2, first.Accepted())

	second := NewCleaner(100)
	twice := second.Clean(once)
	assert.Equal(t, once, twice)
	assert.Empty(t, second.Rejected())
}
