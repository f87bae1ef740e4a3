package bikeshare2sqlite

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"fmt"
	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"
	"log/slog"
)

// Clip writes a copy of the store at inputPath to outputPath keeping only trips whose start
// station lies inside clipFeature. Trips without start coordinates are dropped.
func Clip(inputPath string, outputPath string, clipFeature string) error {
	feature, err := geojson.Parse(clipFeature, &geojson.ParseOptions{RequireValid: true})
	if err != nil {
		return fmt.Errorf("parse clip feature: %w", err)
	}

	slog.Info(fmt.Sprintf("Writing a clipped copy of %s to %s (clipFeature has %d points)",
		inputPath, outputPath, feature.NumPoints()))

	inputDB, err := sqlite.OpenConn(inputPath, sqlite.SQLITE_OPEN_READONLY)
	if err != nil {
		return err
	}
	defer func() {
		if inputDB != nil {
			_ = inputDB.Close()
		}
	}()

	db, err := inputDB.BackupToDB("", outputPath)
	if err != nil {
		return err
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	err = inputDB.Close()
	inputDB = nil
	if err != nil {
		return err
	}
	slog.Info("Copied input db")

	if err := sqlitex.ExecTransient(db, "CREATE TEMP TABLE trips_inside (trip_rowid INTEGER)", sqlitexNoop); err != nil {
		return err
	}

	insideCount := 0
	totalCount := 0
	query := "SELECT rowid, start_station_latitude, start_station_longitude FROM " + tripsTable
	err = sqlitex.Exec(db, query, func(stmt *sqlite.Stmt) error {
		totalCount++
		if stmt.ColumnType(1) == sqlite.SQLITE_NULL || stmt.ColumnType(2) == sqlite.SQLITE_NULL {
			return nil
		}
		lat := stmt.GetFloat("start_station_latitude")
		lng := stmt.GetFloat("start_station_longitude")
		point := geojson.NewPoint(geometry.Point{X: lng, Y: lat})

		if feature.Contains(point) {
			insideCount++
			return sqlitex.Exec(db, "INSERT INTO trips_inside (trip_rowid) VALUES (?)", sqlitexNoop, stmt.GetInt64("rowid"))
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("%d of %d trips start inside", insideCount, totalCount))

	script := fmt.Sprintf(`
DELETE FROM %s WHERE rowid NOT IN (SELECT trip_rowid FROM trips_inside);
DROP TABLE trips_inside;
INSERT INTO %s (feature_points, count) VALUES (%d, %d);
`, tripsTable, clipsTable, feature.NumPoints(), totalCount-insideCount)
	if err := sqlitex.ExecScript(db, script); err != nil {
		return err
	}

	err = db.Close()
	db = nil
	if err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("Wrote %s", outputPath))
	return nil
}
