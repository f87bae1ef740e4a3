package bikeshare2sqlite

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ReadTrips parses a trip log CSV. Empty cells become absent values.
//
// A cell that cannot be parsed drops its row and is reported as a *RecordError. An empty
// start_time is not a parse failure: the row is returned and the pipeline reports it.
// A header missing a required column fails the whole read with ErrInvalidInput.
func ReadTrips(r io.Reader) ([]RawTrip, []*RecordError, error) {
	inputCSV := csv.NewReader(r)

	header, err := inputCSV.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	columns := make([]*columnSchema, len(header))
	present := make(map[string]bool)
	var unknownColumns []string
	for i, name := range header {
		name = strings.TrimSpace(name)
		if c, ok := tripColumnsByName[name]; ok {
			columns[i] = &c
			present[name] = true
		} else {
			unknownColumns = append(unknownColumns, name)
		}
	}
	if len(unknownColumns) > 0 {
		slog.Info("Ignoring unknown columns: " + strings.Join(unknownColumns, ", "))
	}
	for _, c := range tripColumns {
		if c.required() && !present[c.Name] {
			return nil, nil, fmt.Errorf("%w: missing required column %s", ErrInvalidInput, c.Name)
		}
	}

	inputCSV.FieldsPerRecord = -1 // Allow variable numbers of fields

	var trips []RawTrip
	var issues []*RecordError
	rowCount := 0
	for {
		row, err := inputCSV.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, nil, err
		}
		rowCount++

		trip := RawTrip{Row: rowCount}
		var rowErr *RecordError
		for i, v := range row {
			if i >= len(columns) || columns[i] == nil || v == "" {
				continue
			}
			if err := columns[i].set(&trip, v); err != nil && rowErr == nil {
				rowErr = &RecordError{Row: rowCount, Field: columns[i].Name, Err: err}
			}
		}
		if rowErr != nil {
			rowErr.BikeID = trip.BikeID
			issues = append(issues, rowErr)
			continue
		}
		trips = append(trips, trip)
	}
	slog.Info(fmt.Sprintf("Read %d rows (%d unparseable)", rowCount, len(issues)))

	return trips, issues, nil
}
