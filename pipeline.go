package bikeshare2sqlite

import (
	"context"
	"errors"
	"fmt"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"runtime"
)

type RunOpts struct {
	// IgnoreInvalid drops structurally invalid records instead of failing the run
	IgnoreInvalid bool
}

type Result struct {
	Trips   []EnrichedTrip
	Summary Summary
	Issues  []*RecordError
}

// Pipeline turns raw trips into cleaned, enriched trips. It holds no mutable state, so one
// Pipeline may be shared by concurrent runs.
type Pipeline struct {
	cfg  Config
	bins *DayPartBins
	norm *Normalizer
}

// NewPipeline validates cfg against the observed station names. A config error is fatal: no
// record is processed with a config that failed validation.
func NewPipeline(cfg Config, stationNames []string) (*Pipeline, error) {
	if err := cfg.Validate(stationNames); err != nil {
		return nil, err
	}

	bins, err := NewDayPartBins(cfg.DayPartBinEdges, cfg.DayPartLabels)
	if err != nil {
		return nil, err
	}

	norm := NewNormalizer()
	for field, labels := range map[string][]string{
		FieldDayOfWeek:    WeekdayLabels,
		FieldDayPart:      cfg.DayPartLabels,
		FieldUserType:     UserTypeLabels,
		FieldMemberGender: GenderLabels,
	} {
		if err := norm.Declare(field, labels); err != nil {
			return nil, err
		}
	}

	return &Pipeline{cfg: cfg, bins: bins, norm: norm}, nil
}

func (p *Pipeline) Config() Config {
	return p.cfg
}

func (p *Pipeline) Normalizer() *Normalizer {
	return p.norm
}

// Enrich derives every computed field of raw. The result shares no memory with raw. The returned
// error is always a *RecordError.
func (p *Pipeline) Enrich(raw *RawTrip) (EnrichedTrip, error) {
	tm, err := ExtractTemporal(raw)
	if err != nil {
		return EnrichedTrip{}, err
	}

	out := EnrichedTrip{
		RawTrip: raw.clone(),
		Year:    tm.Year,
		Month:   tm.Month,
		Hour:    tm.Hour,
	}

	if age, ok := Age(raw, p.cfg.ReferenceYear); ok {
		out.Age = &age
	}
	if pair, ok := StationPair(raw, p.cfg.StationPairSeparator); ok {
		out.StationPair = &pair
	}

	dayPart, err := p.bins.Label(tm.Hour)
	if err != nil {
		return EnrichedTrip{}, newRecordError(raw, "hour", err)
	}
	if out.DayPart, err = p.norm.Normalize(FieldDayPart, dayPart); err != nil {
		return EnrichedTrip{}, newRecordError(raw, FieldDayPart, err)
	}
	if out.DayOfWeek, err = p.norm.Normalize(FieldDayOfWeek, tm.DayOfWeek); err != nil {
		return EnrichedTrip{}, newRecordError(raw, FieldDayOfWeek, err)
	}

	if raw.UserType != nil {
		c, err := p.norm.Normalize(FieldUserType, *raw.UserType)
		if err != nil {
			return EnrichedTrip{}, newRecordError(raw, FieldUserType, err)
		}
		out.UserTypeCategory = &c
	}
	if raw.MemberGender != nil {
		c, err := p.norm.Normalize(FieldMemberGender, *raw.MemberGender)
		if err != nil {
			return EnrichedTrip{}, newRecordError(raw, FieldMemberGender, err)
		}
		out.MemberGenderCategory = &c
	}

	return out, nil
}

// Run enriches and cleans raws in a single pass. Accepted trips keep their input order.
//
// Structural errors are collected into Result.Issues. Unless opts.IgnoreInvalid is set they
// also make Run return an error wrapping ErrInvalidInput and every issue, alongside the result.
func (p *Pipeline) Run(raws []RawTrip, opts *RunOpts) (*Result, error) {
	return p.finish(p.run(raws), opts)
}

// RunParallel is Run over contiguous partitions processed concurrently. The result is identical
// to Run's.
func (p *Pipeline) RunParallel(raws []RawTrip, partitions int, opts *RunOpts) (*Result, error) {
	if partitions <= 0 {
		partitions = runtime.GOMAXPROCS(0)
	}
	chunks := partition(len(raws), partitions)
	partials := make([]*Result, len(chunks))

	var g errgroup.Group
	for i, chunk := range chunks {
		g.Go(func() error {
			partials[i] = p.run(raws[chunk[0]:chunk[1]])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Summary: Summary{Rejected: make(map[RejectReason]int)}}
	for _, partial := range partials {
		res.Trips = append(res.Trips, partial.Trips...)
		res.Issues = append(res.Issues, partial.Issues...)
		res.Summary.add(partial.Summary)
	}
	return p.finish(res, opts)
}

func (p *Pipeline) run(raws []RawTrip) *Result {
	cleaner := NewCleaner(p.cfg.AgeOutlierBound)
	res := &Result{}

	for i := range raws {
		trip, err := p.Enrich(&raws[i])
		if err != nil {
			var recErr *RecordError
			if !errors.As(err, &recErr) {
				recErr = newRecordError(&raws[i], "", err)
			}
			res.Issues = append(res.Issues, recErr)
			continue
		}
		if cleaner.Accept(&trip) {
			res.Trips = append(res.Trips, trip)
		}
	}

	res.Summary = Summary{
		Input:    len(raws),
		Accepted: cleaner.Accepted(),
		Invalid:  len(res.Issues),
		Rejected: cleaner.Rejected(),
	}
	return res
}

func (p *Pipeline) finish(res *Result, opts *RunOpts) (*Result, error) {
	if opts == nil {
		opts = &RunOpts{}
	}

	level := slog.LevelError
	if opts.IgnoreInvalid {
		level = slog.LevelWarn
	}
	for _, issue := range res.Issues {
		slog.Log(context.Background(), level, issue.Error())
	}
	slog.Info(fmt.Sprintf("Cleaned trips: %s", res.Summary))

	if len(res.Issues) > 0 && !opts.IgnoreInvalid {
		return res, issuesError(res.Issues)
	}
	return res, nil
}

// issuesError wraps ErrInvalidInput and every issue, so errors.Is reaches both.
func issuesError(issues []*RecordError) error {
	errs := make([]error, len(issues))
	for i, issue := range issues {
		errs[i] = issue
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
}

// partition splits n items into at most parts contiguous [start, end) ranges.
func partition(n, parts int) [][2]int {
	if n == 0 {
		return nil
	}
	if parts > n {
		parts = n
	}
	size := (n + parts - 1) / parts
	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}
