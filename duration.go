package bikeshare2sqlite

import (
	"golang.org/x/sync/errgroup"
	"math"
	"runtime"
	"slices"
	"sort"
)

// DurationStats describes the trip durations of one group, in seconds.
type DurationStats struct {
	Values []string
	Count  int
	Mean   float64
	Q1     float64
	Median float64
	Q3     float64

	ranks []int
}

type durationGroup struct {
	values    []string
	ranks     []int
	durations []int
}

// DurationTable collects duration_sec per distinct combination of dimension values. Only
// combinations that occur are present. Statistics are computed from every collected duration,
// so merging partial tables in any order gives the same statistics.
type DurationTable struct {
	dims   []Dimension
	groups []*durationGroup // first-encountered order
	index  map[string]*durationGroup
}

func NewDurationTable(dims ...Dimension) *DurationTable {
	return &DurationTable{dims: dims, index: make(map[string]*durationGroup)}
}

// GroupDurations groups trips by dims. With no dims every trip falls into one group. A trip
// lacking a dimension value or a duration is ErrMissingDimension.
func GroupDurations(trips []EnrichedTrip, dims ...Dimension) (*DurationTable, error) {
	t := NewDurationTable(dims...)
	for i := range trips {
		if err := t.Add(&trips[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// GroupDurationsParallel is GroupDurations over contiguous partitions merged in partition order.
func GroupDurationsParallel(trips []EnrichedTrip, partitions int, dims ...Dimension) (*DurationTable, error) {
	if partitions <= 0 {
		partitions = runtime.GOMAXPROCS(0)
	}
	chunks := partition(len(trips), partitions)
	partials := make([]*DurationTable, len(chunks))

	var g errgroup.Group
	for i, chunk := range chunks {
		g.Go(func() error {
			t, err := GroupDurations(trips[chunk[0]:chunk[1]], dims...)
			partials[i] = t
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := NewDurationTable(dims...)
	for _, partial := range partials {
		if err := out.Merge(partial); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *DurationTable) Add(trip *EnrichedTrip) error {
	if trip.DurationSec == nil {
		return &RecordError{Row: trip.Row, BikeID: trip.BikeID, Field: "duration_sec", Err: ErrMissingDimension}
	}
	values, ranks, err := dimensionValues(t.dims, trip)
	if err != nil {
		return err
	}
	g := t.group(values, ranks)
	g.durations = append(g.durations, *trip.DurationSec)
	return nil
}

func (t *DurationTable) group(values []string, ranks []int) *durationGroup {
	key := groupKey(values)
	g, ok := t.index[key]
	if !ok {
		g = &durationGroup{values: values, ranks: ranks}
		t.index[key] = g
		t.groups = append(t.groups, g)
	}
	return g
}

// Merge adds other's durations into t.
func (t *DurationTable) Merge(other *DurationTable) error {
	if err := checkMergeable(t.dims, other.dims); err != nil {
		return err
	}
	for _, og := range other.groups {
		g := t.group(slices.Clone(og.values), slices.Clone(og.ranks))
		g.durations = append(g.durations, og.durations...)
	}
	return nil
}

func (t *DurationTable) Dimensions() []string {
	return dimensionNames(t.dims)
}

func (t *DurationTable) Len() int {
	return len(t.groups)
}

// Stats returns every group in first-encountered order.
func (t *DurationTable) Stats() []DurationStats {
	out := make([]DurationStats, len(t.groups))
	for i, g := range t.groups {
		out[i] = describeDurations(g)
	}
	return out
}

// Ordered returns every group in display order, like GroupTable.Ordered.
func (t *DurationTable) Ordered() []DurationStats {
	out := t.Stats()
	sort.SliceStable(out, func(i, j int) bool {
		return rankLess(out[i].Values, out[i].ranks, out[j].Values, out[j].ranks)
	})
	return out
}

// TopN returns the n groups with the most trips, most first. Ties go to the group encountered
// first. n <= 0 means every group.
func (t *DurationTable) TopN(n int) []DurationStats {
	out := t.Stats()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

func describeDurations(g *durationGroup) DurationStats {
	sorted := slices.Clone(g.durations)
	slices.Sort(sorted)

	sum := 0
	for _, d := range sorted {
		sum += d
	}
	return DurationStats{
		Values: slices.Clone(g.values),
		Count:  len(sorted),
		Mean:   float64(sum) / float64(len(sorted)),
		Q1:     quantile(sorted, 0.25),
		Median: quantile(sorted, 0.5),
		Q3:     quantile(sorted, 0.75),
		ranks:  g.ranks,
	}
}

// quantile interpolates linearly between the closest ranks of sorted, which must not be empty.
func quantile(sorted []int, q float64) float64 {
	index := q * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	return float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight
}
