package bikeshare2sqlite

import (
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func testRawTrip(row int, start string, birthYear *int) RawTrip {
	ts, err := parseTimestamp(start)
	if err != nil {
		panic(err)
	}
	return RawTrip{
		Row:                 row,
		StartTime:           &ts,
		DurationSec:         ptr(600 + row),
		StartStationName:    ptr(fmt.Sprintf("Station %d", row%3)),
		EndStationName:      ptr(fmt.Sprintf("Station %d", (row+1)%3)),
		BikeID:              fmt.Sprint(1000 + row),
		UserType:            ptr("Subscriber"),
		MemberBirthYear:     birthYear,
		MemberGender:        ptr("Male"),
		BikeShareForAllTrip: ptr(false),
	}
}

func testPipeline(t *testing.T, raws []RawTrip) *Pipeline {
	t.Helper()
	p, err := NewPipeline(DefaultConfig(2019), StationNames(raws))
	require.NoError(t, err)
	return p
}

func TestRunEndToEnd(t *testing.T) {
	raws := []RawTrip{
		testRawTrip(1, "2019-02-28 17:32:10.1450", nil),
		testRawTrip(2, "2019-02-28 08:00:00", ptr(1914)),
		testRawTrip(3, "2019-02-27 23:10:00", ptr(1994)),
		testRawTrip(4, "2019-02-25 00:05:00", ptr(1989)),
		testRawTrip(5, "2019-02-24 11:00:00", ptr(1869)),
	}
	p := testPipeline(t, raws)

	res, err := p.Run(raws, nil)
	require.NoError(t, err)
	require.Len(t, res.Trips, 2)
	assert.Equal(t, 25, *res.Trips[0].Age)
	assert.Equal(t, 30, *res.Trips[1].Age)
	assert.Equal(t, Summary{
		Input:    5,
		Accepted: 2,
		Rejected: map[RejectReason]int{RejectNullField: 1, RejectAgeOutlier: 2},
	}, res.Summary)

	trip := res.Trips[0]
	assert.Equal(t, 2019, trip.Year)
	assert.Equal(t, 2, trip.Month)
	assert.Equal(t, 23, trip.Hour)
	assert.Equal(t, Category{Label: "Wednesday", Rank: 2}, trip.DayOfWeek)
	assert.Equal(t, Category{Label: "Night", Rank: 4}, trip.DayPart)
	assert.Equal(t, "Station 0-Station 1", *trip.StationPair)
	assert.Equal(t, &Category{Label: "Subscriber", Rank: 0}, trip.UserTypeCategory)
	assert.Equal(t, &Category{Label: "Male", Rank: 0}, trip.MemberGenderCategory)

	trip = res.Trips[1]
	assert.Equal(t, Category{Label: "Monday", Rank: 0}, trip.DayOfWeek)
	assert.Equal(t, Category{Label: "Midnight", Rank: 0}, trip.DayPart)
}

func TestEnrichIsPure(t *testing.T) {
	raws := []RawTrip{testRawTrip(1, "2019-02-28 17:32:10", ptr(1990))}
	p := testPipeline(t, raws)

	once, err := p.Enrich(&raws[0])
	require.NoError(t, err)
	again, err := p.Enrich(&once.RawTrip)
	require.NoError(t, err)
	assert.Equal(t, once, again)
	assert.Equal(t, testRawTrip(1, "2019-02-28 17:32:10", ptr(1990)), raws[0])
}

func TestRunReportsStructuralErrors(t *testing.T) {
	missing := testRawTrip(2, "2019-02-28 17:32:10", ptr(1990))
	missing.StartTime = nil
	badGender := testRawTrip(3, "2019-02-28 17:32:10", ptr(1990))
	badGender.MemberGender = ptr("male")

	raws := []RawTrip{
		testRawTrip(1, "2019-02-28 17:32:10", ptr(1990)),
		missing,
		badGender,
	}
	p := testPipeline(t, raws)

	res, err := p.Run(raws, nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, ErrMissingTimestamp)
	assert.ErrorIs(t, err, ErrUnknownCategory)
	require.Len(t, res.Issues, 2)
	assert.Equal(t, 2, res.Issues[0].Row)
	assert.Equal(t, "start_time", res.Issues[0].Field)
	assert.Equal(t, 3, res.Issues[1].Row)
	assert.Equal(t, FieldMemberGender, res.Issues[1].Field)
	assert.Len(t, res.Trips, 1)
	assert.Equal(t, 2, res.Summary.Invalid)

	res, err = p.Run(raws, &RunOpts{IgnoreInvalid: true})
	require.NoError(t, err)
	assert.Len(t, res.Issues, 2)
	assert.Len(t, res.Trips, 1)
}

func TestRunParallelMatchesRun(t *testing.T) {
	start := time.Date(2019, time.February, 1, 0, 0, 0, 0, time.UTC)
	var raws []RawTrip
	for i := range 200 {
		ts := start.Add(time.Duration(i*97) * time.Minute).Format(timestampLayout)
		var birthYear *int
		if i%11 != 0 {
			birthYear = ptr(1900 + i%110)
		}
		raws = append(raws, testRawTrip(i+1, ts, birthYear))
	}
	p := testPipeline(t, raws)

	want, err := p.Run(raws, nil)
	require.NoError(t, err)

	for _, partitions := range []int{1, 3, 8, 500} {
		got, err := p.RunParallel(raws, partitions, nil)
		require.NoError(t, err)
		assert.Equal(t, want.Trips, got.Trips, "partitions %d", partitions)
		assert.Equal(t, want.Summary, got.Summary, "partitions %d", partitions)
	}
}

func TestRunOutputSharesNothingWithInput(t *testing.T) {
	raws := []RawTrip{testRawTrip(1, "2019-02-28 17:32:10", ptr(1990))}
	p := testPipeline(t, raws)

	res, err := p.Run(raws, nil)
	require.NoError(t, err)
	require.Len(t, res.Trips, 1)

	*raws[0].MemberGender = "Female"
	*raws[0].StartStationName = "Elsewhere"
	*raws[0].DurationSec = 1
	*raws[0].MemberBirthYear = 1800

	trip := res.Trips[0]
	assert.Equal(t, "Male", *trip.MemberGender)
	assert.Equal(t, "Station 1", *trip.StartStationName)
	assert.Equal(t, 601, *trip.DurationSec)
	assert.Equal(t, 1990, *trip.MemberBirthYear)
}
