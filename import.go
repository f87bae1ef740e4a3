package bikeshare2sqlite

import (
	"context"
	"crawshaw.io/sqlite"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

type ImportOpts struct {
	// Config defaults to DefaultConfig(DefaultReferenceYear)
	Config        *Config
	IgnoreInvalid bool
	Partitions    int
}

// Import reads the trip log CSV at inputPath, cleans it and writes an analysis-ready sqlite store
// to outputPath. Structural issues are returned with the result; unless opts.IgnoreInvalid is set
// they fail the import with ErrInvalidInput before anything is written.
func Import(inputPath string, outputPath string, opts *ImportOpts) (*Result, error) {
	if inputPath == "" {
		panic("Missing inputPath")
	}
	if outputPath == "" {
		panic("Missing outputPath")
	}

	if opts == nil {
		opts = &ImportOpts{}
	}
	cfg := DefaultConfig(DefaultReferenceYear)
	if opts.Config != nil {
		cfg = *opts.Config
	}

	slog.Info(fmt.Sprintf("Importing %s to %s", inputPath, outputPath))

	inputF, err := os.Open(inputPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = inputF.Close() }()

	raws, readIssues, err := ReadTrips(inputF)
	if err != nil {
		return nil, err
	}

	pipeline, err := NewPipeline(cfg, StationNames(raws))
	if err != nil {
		return nil, err
	}

	res, err := pipeline.RunParallel(raws, opts.Partitions, &RunOpts{IgnoreInvalid: opts.IgnoreInvalid})
	if len(readIssues) > 0 {
		level := slog.LevelError
		if opts.IgnoreInvalid {
			level = slog.LevelWarn
		}
		for _, issue := range readIssues {
			slog.Log(context.Background(), level, issue.Error())
		}
		res.Issues = append(readIssues, res.Issues...)
		res.Summary.Input += len(readIssues)
		res.Summary.Invalid += len(readIssues)
		if !opts.IgnoreInvalid {
			err = issuesError(res.Issues)
		}
	}
	if err != nil {
		return res, err
	}

	err = os.Remove(outputPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	db, err := sqlite.OpenConn(outputPath, 0)
	if err != nil {
		return nil, err
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	if err := createStore(db); err != nil {
		return nil, err
	}
	if err := writeStore(db, cfg, res); err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("Wrote %d trips", len(res.Trips)))

	err = db.Close()
	db = nil
	if err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("Wrote %s", outputPath))
	return res, nil
}
