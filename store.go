package bikeshare2sqlite

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"fmt"
	"gopkg.in/yaml.v2"
	"strings"
)

const (
	tripsTable      = "trips"
	rejectionsTable = "__bikeshare2sqlite_rejections"
	issuesTable     = "__bikeshare2sqlite_issues"
	configTable     = "__bikeshare2sqlite_config"
	clipsTable      = "__bikeshare2sqlite_clips"
)

var storePragmas = map[string]string{
	"synchronous": "OFF",
}

func sqlitexNoop(*sqlite.Stmt) error {
	return nil
}

func createStore(db *sqlite.Conn) error {
	for pragma, value := range storePragmas {
		if err := sqlitex.Exec(db, "PRAGMA "+pragma+" = "+value, sqlitexNoop); err != nil {
			return err
		}
	}

	columnFragments := []string{"source_row INTEGER"}
	for _, c := range tripColumns {
		columnFragments = append(columnFragments, c.Name+" "+c.SQLType)
	}
	for _, c := range derivedColumns {
		columnFragments = append(columnFragments, c.Name+" "+c.SQLType)
	}

	script := fmt.Sprintf(`
CREATE TABLE %s (%s);
CREATE TABLE %s (reason TEXT, count INTEGER);
CREATE TABLE %s (source_row INTEGER, bike_id TEXT, field TEXT, message TEXT);
CREATE TABLE %s (input INTEGER, yaml TEXT);
CREATE TABLE %s (feature_points INTEGER, count INTEGER);
`, tripsTable, strings.Join(columnFragments, ", "), rejectionsTable, issuesTable, configTable, clipsTable)
	return sqlitex.ExecScript(db, script)
}

func writeStore(db *sqlite.Conn, cfg Config, res *Result) (err error) {
	defer sqlitex.Save(db)(&err)

	cfgYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	err = sqlitex.Exec(db, "INSERT INTO "+configTable+" (input, yaml) VALUES (?, ?)", sqlitexNoop,
		res.Summary.Input, string(cfgYAML))
	if err != nil {
		return err
	}

	for _, reason := range RejectReasons {
		err = sqlitex.Exec(db, "INSERT INTO "+rejectionsTable+" (reason, count) VALUES (?, ?)", sqlitexNoop,
			string(reason), res.Summary.Rejected[reason])
		if err != nil {
			return err
		}
	}

	for _, issue := range res.Issues {
		err = sqlitex.Exec(db, "INSERT INTO "+issuesTable+" (source_row, bike_id, field, message) VALUES (?, ?, ?, ?)",
			sqlitexNoop, issue.Row, issue.BikeID, issue.Field, issue.Err.Error())
		if err != nil {
			return err
		}
	}

	columnNames := []string{"source_row"}
	for _, c := range tripColumns {
		columnNames = append(columnNames, c.Name)
	}
	for _, c := range derivedColumns {
		columnNames = append(columnNames, c.Name)
	}
	var argFragments []string
	for i := range columnNames {
		argFragments = append(argFragments, fmt.Sprintf("?%d", i+1))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tripsTable, strings.Join(columnNames, ", "), strings.Join(argFragments, ", "))
	insertStmt, err := db.Prepare(query)
	if err != nil {
		return err
	}

	for i := range res.Trips {
		trip := &res.Trips[i]

		if err = insertStmt.Reset(); err != nil {
			return err
		}
		if err = insertStmt.ClearBindings(); err != nil {
			return err
		}

		param := 1
		bindValue(insertStmt, param, trip.Row)
		for _, c := range tripColumns {
			param++
			bindValue(insertStmt, param, c.value(&trip.RawTrip))
		}
		for _, c := range derivedColumns {
			param++
			bindValue(insertStmt, param, c.value(trip))
		}

		if _, err = insertStmt.Step(); err != nil {
			return err
		}
	}
	return nil
}

func bindValue(stmt *sqlite.Stmt, param int, v any) {
	switch v := v.(type) {
	case nil:
		stmt.BindNull(param)
	case string:
		stmt.BindText(param, v)
	case int:
		stmt.BindInt64(param, int64(v))
	case float64:
		stmt.BindFloat(param, v)
	case bool:
		stmt.BindBool(param, v)
	default:
		panic(fmt.Sprintf("unsupported column value %T", v))
	}
}

// readStore returns the config the store was built with and its trips as raw records.
// Re-enriching them with that config reproduces the stored derived columns.
func readStore(db *sqlite.Conn) (Config, []RawTrip, error) {
	var cfg Config
	var cfgYAML string
	err := sqlitex.Exec(db, "SELECT yaml FROM "+configTable, func(stmt *sqlite.Stmt) error {
		cfgYAML = stmt.GetText("yaml")
		return nil
	})
	if err != nil {
		return Config{}, nil, err
	}
	if cfgYAML == "" {
		return Config{}, nil, fmt.Errorf("%w: store has no config", ErrInvalidInput)
	}
	if err := yaml.UnmarshalStrict([]byte(cfgYAML), &cfg); err != nil {
		return Config{}, nil, err
	}

	var trips []RawTrip
	err = sqlitex.Exec(db, "SELECT * FROM "+tripsTable+" ORDER BY rowid", func(stmt *sqlite.Stmt) error {
		trip := RawTrip{Row: int(stmt.GetInt64("source_row"))}
		for _, c := range tripColumns {
			v := stmt.GetText(c.Name)
			if v == "" {
				continue
			}
			if err := c.set(&trip, v); err != nil {
				return fmt.Errorf("stored %s of row %d: %w", c.Name, trip.Row, err)
			}
		}
		trips = append(trips, trip)
		return nil
	})
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, trips, nil
}

// readSummary returns the cleaning summary recorded at import.
func readSummary(db *sqlite.Conn) (Summary, error) {
	s := Summary{Rejected: make(map[RejectReason]int)}
	err := sqlitex.Exec(db, "SELECT input FROM "+configTable, func(stmt *sqlite.Stmt) error {
		s.Input = int(stmt.GetInt64("input"))
		return nil
	})
	if err != nil {
		return s, err
	}
	err = sqlitex.Exec(db, "SELECT reason, count FROM "+rejectionsTable, func(stmt *sqlite.Stmt) error {
		s.Rejected[RejectReason(stmt.GetText("reason"))] = int(stmt.GetInt64("count"))
		return nil
	})
	if err != nil {
		return s, err
	}
	err = sqlitex.Exec(db, "SELECT count(*) AS count FROM "+issuesTable, func(stmt *sqlite.Stmt) error {
		s.Invalid = int(stmt.GetInt64("count"))
		return nil
	})
	if err != nil {
		return s, err
	}
	err = sqlitex.Exec(db, "SELECT coalesce(sum(count), 0) AS count FROM "+clipsTable, func(stmt *sqlite.Stmt) error {
		s.Clipped = int(stmt.GetInt64("count"))
		return nil
	})
	if err != nil {
		return s, err
	}
	err = sqlitex.Exec(db, "SELECT count(*) AS count FROM "+tripsTable, func(stmt *sqlite.Stmt) error {
		s.Accepted = int(stmt.GetInt64("count"))
		return nil
	})
	return s, err
}
