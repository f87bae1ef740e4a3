package bikeshare2sqlite

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"strings"
	"testing"
)

func TestImportsValid(t *testing.T) {
	outDir := testTempdir(t)
	res, err := Import("./sample_data/tripdata.csv", outDir+"/tripdata.db", nil)
	require.NoError(t, err)

	assert.Equal(t, Summary{
		Input:    9,
		Accepted: 7,
		Rejected: map[RejectReason]int{RejectNullField: 1, RejectAgeOutlier: 1},
	}, res.Summary)
	assert.Empty(t, res.Issues)
}

func TestImportsDerivedColumns(t *testing.T) {
	outDir := testTempdir(t)
	_, err := Import("./sample_data/tripdata.csv", outDir+"/tripdata.db", nil)
	require.NoError(t, err)

	conn, err := sqlite.OpenConn(outDir+"/tripdata.db", sqlite.SQLITE_OPEN_READONLY)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	var rows []string
	query := "SELECT source_row, age, day_of_week, hour, day_part, station_pair FROM trips ORDER BY source_row"
	err = sqlitex.Exec(conn, query, func(stmt *sqlite.Stmt) error {
		rows = append(rows, fmt.Sprintf("%d %d %s %d %s",
			stmt.GetInt64("source_row"), stmt.GetInt64("age"), stmt.GetText("day_of_week"),
			stmt.GetInt64("hour"), stmt.GetText("day_part")))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"1 35 Thursday 17 Evening",
		"3 47 Thursday 12 Afternoon",
		"4 30 Thursday 17 Evening",
		"5 45 Thursday 23 Night",
		"6 60 Thursday 23 Night",
		"8 30 Thursday 23 Night",
		"9 31 Thursday 23 Night",
	}, rows)

	var pair string
	err = sqlitex.Exec(conn, "SELECT station_pair FROM trips WHERE source_row = 8", func(stmt *sqlite.Stmt) error {
		pair = stmt.GetText("station_pair")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Washington St at Kearny St-Valencia St at 21st St", pair)
}

func TestImportsEmptyAsNull(t *testing.T) {
	outDir := testTempdir(t)
	_, err := Import("./sample_data/tripdata.csv", outDir+"/tripdata.db", &ImportOpts{
		Config: &Config{
			ReferenceYear:        2019,
			AgeOutlierBound:      150,
			DayPartBinEdges:      []int{0, 12, 23},
			DayPartLabels:        []string{"AM", "PM"},
			StationPairSeparator: "|",
		},
	})
	require.NoError(t, err)

	conn, err := sqlite.OpenConn(outDir+"/tripdata.db", sqlite.SQLITE_OPEN_READONLY)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	var count int
	err = sqlitex.Exec(conn, "SELECT count(*) as count FROM trips WHERE day_part = 'PM'", func(stmt *sqlite.Stmt) error {
		count = int(stmt.GetInt64("count"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 8, count)

	err = sqlitex.Exec(conn, "SELECT count(*) as count FROM trips WHERE member_birth_year IS NULL", func(stmt *sqlite.Stmt) error {
		count = int(stmt.GetInt64("count"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestImportInvalid(t *testing.T) {
	input := "./sample_data/tripdata-invalid.csv"

	t.Run("nofix", func(t *testing.T) {
		outDir := testTempdir(t)
		res, err := Import(input, outDir+"/imported.db", nil)
		require.ErrorIs(t, err, ErrInvalidInput)
		assert.ErrorIs(t, err, ErrMissingTimestamp)
		assert.ErrorIs(t, err, ErrUnknownCategory)
		require.Len(t, res.Issues, 3)

		_, statErr := os.Stat(outDir + "/imported.db")
		assert.True(t, errors.Is(statErr, os.ErrNotExist))
	})
	t.Run("ignore", func(t *testing.T) {
		outDir := testTempdir(t)
		res, err := Import(input, outDir+"/imported.db", &ImportOpts{IgnoreInvalid: true})
		require.NoError(t, err)
		require.Len(t, res.Issues, 3)
		assert.Equal(t, "duration_sec", res.Issues[0].Field)
		assert.Equal(t, 3, res.Issues[0].Row)
		assert.Equal(t, "start_time", res.Issues[1].Field)
		assert.Equal(t, FieldMemberGender, res.Issues[2].Field)
		assert.Equal(t, Summary{Input: 4, Accepted: 1, Invalid: 3, Rejected: map[RejectReason]int{}}, res.Summary)
	})
}

func TestImportRejectsCollidingSeparator(t *testing.T) {
	outDir := testTempdir(t)
	cfg := DefaultConfig(2019)
	cfg.StationPairSeparator = "("
	_, err := Import("./sample_data/tripdata.csv", outDir+"/tripdata.db", &ImportOpts{Config: &cfg})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestReadTripsMissingRequiredColumn(t *testing.T) {
	_, _, err := ReadTrips(strings.NewReader("start_time,bike_id\n2019-02-28 17:32:10,4902\n"))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestReadTripsParsesCells(t *testing.T) {
	input := "\ufeffstart_time,duration_sec,member_birth_year,bike_share_for_all_trip,start_station_latitude,rider_notes\n" +
		"2019-02-28T17:32:10Z,600,1984.0,Yes,37.7896254,hello\n" +
		"2019-02-28 17:32:10,601,,,,\n"
	trips, issues, err := ReadTrips(strings.NewReader(input))
	require.NoError(t, err)
	require.Empty(t, issues)
	require.Len(t, trips, 2)

	assert.Equal(t, 1, trips[0].Row)
	assert.Equal(t, 600, *trips[0].DurationSec)
	assert.Equal(t, 1984, *trips[0].MemberBirthYear)
	assert.True(t, *trips[0].BikeShareForAllTrip)
	assert.InDelta(t, 37.7896254, *trips[0].StartStationLat, 1e-9)
	assert.Equal(t, 17, trips[0].StartTime.Hour())

	assert.Nil(t, trips[1].MemberBirthYear)
	assert.Nil(t, trips[1].BikeShareForAllTrip)
	assert.Nil(t, trips[1].StartStationLat)
}

func testTempdir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "")
	require.NoError(t, err)
	t.Cleanup(func() {
		if t.Failed() {
			fmt.Println("Preserving tempdir after failed test", dir)
		} else {
			_ = os.RemoveAll(dir)
		}
	})
	return dir
}
