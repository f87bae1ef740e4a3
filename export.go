package bikeshare2sqlite

import (
	"archive/zip"
	"crawshaw.io/sqlite"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Grouping is one summary table: trips grouped by Dimensions, optionally cut to the TopN most
// frequent groups. Within restricts the trips first. Duration switches the table from counts to
// duration_sec statistics.
type Grouping struct {
	Dimensions []string
	TopN       int
	Within     *Restriction
	Duration   bool
}

// Restriction keeps only trips whose Dimension value is among its TopN most frequent values.
type Restriction struct {
	Dimension string
	TopN      int
}

func (g Grouping) Name() string {
	name := strings.Join(g.Dimensions, "-")
	if g.TopN > 0 {
		name += fmt.Sprintf("-top%d", g.TopN)
	}
	if g.Within != nil {
		name += fmt.Sprintf("-in-top%d-%s", g.Within.TopN, g.Within.Dimension)
	}
	if g.Duration {
		if name != "" {
			name += "-"
		}
		name += "duration"
	}
	return name
}

// ParseGrouping parses "dim[,dim...][:topN][/within=dim:N][/duration]". The dimension list may
// be empty only for a duration grouping.
func ParseGrouping(s string) (Grouping, error) {
	var g Grouping
	parts := strings.Split(s, "/")
	for _, modifier := range parts[1:] {
		switch {
		case modifier == "duration":
			g.Duration = true
		case strings.HasPrefix(modifier, "within="):
			dim, top, ok := strings.Cut(strings.TrimPrefix(modifier, "within="), ":")
			n, err := strconv.Atoi(top)
			if !ok || err != nil || n <= 0 {
				return Grouping{}, fmt.Errorf("invalid restriction in grouping %q", s)
			}
			if _, err := LookupDimensions(dim); err != nil {
				return Grouping{}, err
			}
			g.Within = &Restriction{Dimension: dim, TopN: n}
		default:
			return Grouping{}, fmt.Errorf("unknown modifier %q in grouping %q", modifier, s)
		}
	}

	dims, top, hasTop := strings.Cut(parts[0], ":")
	if hasTop {
		n, err := strconv.Atoi(top)
		if err != nil || n <= 0 {
			return Grouping{}, fmt.Errorf("invalid top count in grouping %q", s)
		}
		g.TopN = n
	}
	if dims == "" && g.Duration && !hasTop {
		return g, nil
	}
	for _, dim := range strings.Split(dims, ",") {
		dim = strings.TrimSpace(dim)
		if dim == "" {
			return Grouping{}, fmt.Errorf("empty dimension in grouping %q", s)
		}
		g.Dimensions = append(g.Dimensions, dim)
	}
	if _, err := LookupDimensions(g.Dimensions...); err != nil {
		return Grouping{}, err
	}
	return g, nil
}

var DefaultGroupings = []Grouping{
	{Dimensions: []string{"hour"}},
	{Dimensions: []string{"day_of_week"}},
	{Dimensions: []string{"day_part"}},
	{Dimensions: []string{"member_gender"}},
	{Dimensions: []string{"user_type"}},
	{Dimensions: []string{"bike_share_for_all_trip"}},
	{Dimensions: []string{"age"}},
	{Dimensions: []string{"start_station_name"}, TopN: 10},
	{Dimensions: []string{"end_station_name"}, TopN: 10},
	{Dimensions: []string{"station_pair"}, TopN: 10},
	{Dimensions: []string{"hour", "member_gender"}},
	{Dimensions: []string{"day_of_week", "member_gender"}},
	{Dimensions: []string{"day_part", "member_gender"}},
	{Dimensions: []string{"day_of_week", "user_type"}},
	{Dimensions: []string{"start_station_name", "user_type"}, Within: &Restriction{Dimension: "start_station_name", TopN: 10}},
	{Dimensions: []string{"start_station_name", "day_of_week"}, Within: &Restriction{Dimension: "start_station_name", TopN: 10}},
	{Duration: true},
	{Dimensions: []string{"day_of_week"}, Duration: true},
	{Dimensions: []string{"hour"}, Duration: true},
	{Dimensions: []string{"day_part"}, Duration: true},
	{Dimensions: []string{"age"}, Duration: true},
	{Dimensions: []string{"member_gender"}, Duration: true},
	{Dimensions: []string{"user_type"}, Duration: true},
}

type SummarizeOpts struct {
	// Groupings defaults to DefaultGroupings
	Groupings  []Grouping
	Partitions int
}

// Summarize reads the store at inputPath and writes one CSV per grouping, plus cleaning.csv,
// into the zip at outputPath.
func Summarize(inputPath string, outputPath string, opts *SummarizeOpts) error {
	if inputPath == "" {
		panic("Missing inputPath")
	}
	if outputPath == "" {
		panic("Missing outputPath")
	}

	if opts == nil {
		opts = &SummarizeOpts{}
	}
	groupings := opts.Groupings
	if len(groupings) == 0 {
		groupings = DefaultGroupings
	}

	slog.Info(fmt.Sprintf("Summarizing %s to %s", inputPath, outputPath))

	db, err := sqlite.OpenConn(inputPath, sqlite.SQLITE_OPEN_READONLY)
	if err != nil {
		return err
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	cfg, raws, err := readStore(db)
	if err != nil {
		return err
	}
	summary, err := readSummary(db)
	if err != nil {
		return err
	}

	err = db.Close()
	db = nil
	if err != nil {
		return err
	}

	pipeline, err := NewPipeline(cfg, StationNames(raws))
	if err != nil {
		return err
	}
	res, err := pipeline.Run(raws, nil)
	if err != nil {
		return err
	}
	if len(res.Trips) != len(raws) {
		slog.Warn(fmt.Sprintf("Store holds %d trips that no longer pass cleaning", len(raws)-len(res.Trips)))
	}

	outputF, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	outputZip := zip.NewWriter(outputF)
	defer func() {
		_ = outputZip.Close()
		_ = outputF.Close()
	}()

	if err := exportCleaningSummary(outputZip, summary); err != nil {
		return err
	}

	for _, grouping := range groupings {
		if err := exportGrouping(outputZip, res.Trips, grouping, opts.Partitions); err != nil {
			return err
		}
	}

	if err := outputZip.Close(); err != nil {
		return err
	}
	if err := outputF.Close(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("Wrote %s", outputPath))
	return nil
}

func exportGrouping(outputZip *zip.Writer, trips []EnrichedTrip, grouping Grouping, partitions int) error {
	dims, err := LookupDimensions(grouping.Dimensions...)
	if err != nil {
		return err
	}
	if grouping.Within != nil {
		within, err := LookupDimensions(grouping.Within.Dimension)
		if err != nil {
			return err
		}
		var ranked Dimension
		trips, ranked, err = TopValues(trips, partitions, within[0], grouping.Within.TopN)
		if err != nil {
			return err
		}
		for i := range dims {
			if dims[i].Name == ranked.Name {
				dims[i] = ranked
			}
		}
	}
	outputName := grouping.Name() + ".csv"

	if grouping.Duration {
		table, err := GroupDurationsParallel(trips, partitions, dims...)
		if err != nil {
			return err
		}
		var stats []DurationStats
		if grouping.TopN > 0 {
			stats = table.TopN(grouping.TopN)
		} else {
			stats = table.Ordered()
		}
		return exportDurationsIn(outputZip, outputName, table.Dimensions(), stats)
	}

	table, err := GroupCountParallel(trips, partitions, dims...)
	if err != nil {
		return err
	}
	var groups []Group
	if grouping.TopN > 0 {
		groups = table.TopN(grouping.TopN)
	} else {
		groups = table.Ordered()
	}
	return exportGroupsIn(outputZip, outputName, table.Dimensions(), groups)
}

func exportGroupsIn(outputZip *zip.Writer, outputName string, dims []string, groups []Group) error {
	outputF, err := outputZip.Create(outputName)
	if err != nil {
		return err
	}
	outputCSV := csv.NewWriter(outputF)

	header := append(append([]string(nil), dims...), "count", "percentage")
	if err := outputCSV.Write(header); err != nil {
		return err
	}
	for _, g := range groups {
		row := append(append([]string(nil), g.Values...),
			strconv.Itoa(g.Count), strconv.FormatFloat(g.Percent, 'f', 2, 64))
		if err := outputCSV.Write(row); err != nil {
			return err
		}
	}
	slog.Info(fmt.Sprintf("Wrote %d groups to %s", len(groups), outputName))

	outputCSV.Flush()
	return outputCSV.Error()
}

func exportDurationsIn(outputZip *zip.Writer, outputName string, dims []string, stats []DurationStats) error {
	outputF, err := outputZip.Create(outputName)
	if err != nil {
		return err
	}
	outputCSV := csv.NewWriter(outputF)

	header := append(append([]string(nil), dims...), "count", "mean", "q1", "median", "q3")
	if err := outputCSV.Write(header); err != nil {
		return err
	}
	for _, st := range stats {
		row := append(append([]string(nil), st.Values...), strconv.Itoa(st.Count))
		for _, v := range []float64{st.Mean, st.Q1, st.Median, st.Q3} {
			row = append(row, strconv.FormatFloat(v, 'f', 2, 64))
		}
		if err := outputCSV.Write(row); err != nil {
			return err
		}
	}
	slog.Info(fmt.Sprintf("Wrote duration statistics of %d groups to %s", len(stats), outputName))

	outputCSV.Flush()
	return outputCSV.Error()
}

func exportCleaningSummary(outputZip *zip.Writer, s Summary) error {
	outputF, err := outputZip.Create("cleaning.csv")
	if err != nil {
		return err
	}
	outputCSV := csv.NewWriter(outputF)

	rows := [][]string{
		{"measure", "count"},
		{"input", strconv.Itoa(s.Input)},
		{"accepted", strconv.Itoa(s.Accepted)},
		{"invalid", strconv.Itoa(s.Invalid)},
		{"clipped", strconv.Itoa(s.Clipped)},
	}
	for _, reason := range RejectReasons {
		rows = append(rows, []string{string(reason), strconv.Itoa(s.Rejected[reason])})
	}
	if err := outputCSV.WriteAll(rows); err != nil {
		return err
	}
	return outputCSV.Error()
}
