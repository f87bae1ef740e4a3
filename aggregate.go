package bikeshare2sqlite

import (
	"fmt"
	"golang.org/x/sync/errgroup"
	"runtime"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Dimension is a discrete property of a trip that trips can be grouped by.
type Dimension struct {
	Name  string
	value func(t *EnrichedTrip) (label string, rank int, ok bool)
}

func intDimension(name string, get func(t *EnrichedTrip) int) Dimension {
	return Dimension{Name: name, value: func(t *EnrichedTrip) (string, int, bool) {
		v := get(t)
		return strconv.Itoa(v), v, true
	}}
}

func textDimension(name string, get func(t *EnrichedTrip) *string) Dimension {
	return Dimension{Name: name, value: func(t *EnrichedTrip) (string, int, bool) {
		v := get(t)
		if v == nil {
			return "", 0, false
		}
		return *v, 0, true
	}}
}

func categoryDimension(name string, get func(t *EnrichedTrip) *Category) Dimension {
	return Dimension{Name: name, value: func(t *EnrichedTrip) (string, int, bool) {
		c := get(t)
		if c == nil {
			return "", 0, false
		}
		return c.Label, c.Rank, true
	}}
}

var (
	DimYear      = intDimension("year", func(t *EnrichedTrip) int { return t.Year })
	DimMonth     = intDimension("month", func(t *EnrichedTrip) int { return t.Month })
	DimHour      = intDimension("hour", func(t *EnrichedTrip) int { return t.Hour })
	DimDayOfWeek = categoryDimension(FieldDayOfWeek, func(t *EnrichedTrip) *Category { return &t.DayOfWeek })
	DimDayPart   = categoryDimension(FieldDayPart, func(t *EnrichedTrip) *Category { return &t.DayPart })

	DimUserType     = categoryDimension(FieldUserType, func(t *EnrichedTrip) *Category { return t.UserTypeCategory })
	DimMemberGender = categoryDimension(FieldMemberGender, func(t *EnrichedTrip) *Category { return t.MemberGenderCategory })

	DimBikeShareForAllTrip = Dimension{Name: "bike_share_for_all_trip", value: func(t *EnrichedTrip) (string, int, bool) {
		if t.BikeShareForAllTrip == nil {
			return "", 0, false
		}
		if *t.BikeShareForAllTrip {
			return "Yes", 1, true
		}
		return "No", 0, true
	}}

	DimAge = Dimension{Name: "age", value: func(t *EnrichedTrip) (string, int, bool) {
		if t.Age == nil {
			return "", 0, false
		}
		return strconv.Itoa(*t.Age), *t.Age, true
	}}

	DimStartStation = textDimension("start_station_name", func(t *EnrichedTrip) *string { return t.StartStationName })
	DimEndStation   = textDimension("end_station_name", func(t *EnrichedTrip) *string { return t.EndStationName })
	DimStationPair  = textDimension("station_pair", func(t *EnrichedTrip) *string { return t.StationPair })
)

var dimensionsByName = func() map[string]Dimension {
	out := make(map[string]Dimension)
	for _, d := range []Dimension{
		DimYear, DimMonth, DimHour, DimDayOfWeek, DimDayPart, DimUserType, DimMemberGender,
		DimBikeShareForAllTrip, DimAge, DimStartStation, DimEndStation, DimStationPair,
	} {
		out[d.Name] = d
	}
	return out
}()

func LookupDimensions(names ...string) ([]Dimension, error) {
	var out []Dimension
	for _, name := range names {
		d, ok := dimensionsByName[name]
		if !ok {
			return nil, fmt.Errorf("unknown dimension %q", name)
		}
		out = append(out, d)
	}
	return out, nil
}

// DimensionNames lists every dimension that can be grouped by, sorted.
func DimensionNames() []string {
	var out []string
	for name := range dimensionsByName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type Group struct {
	Values  []string
	Count   int
	Percent float64 // of every trip counted into the table

	ranks []int
}

// GroupTable counts trips per distinct combination of dimension values. Only combinations that
// occur are present.
type GroupTable struct {
	dims   []Dimension
	groups []*Group // first-encountered order
	index  map[string]*Group
	total  int
}

func NewGroupTable(dims ...Dimension) *GroupTable {
	return &GroupTable{dims: dims, index: make(map[string]*Group)}
}

// GroupCount groups trips by dims. A trip lacking a value for any dim is ErrMissingDimension.
func GroupCount(trips []EnrichedTrip, dims ...Dimension) (*GroupTable, error) {
	t := NewGroupTable(dims...)
	for i := range trips {
		if err := t.Add(&trips[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// GroupCountParallel is GroupCount over contiguous partitions counted concurrently and merged in
// partition order, so first-encountered order matches GroupCount.
func GroupCountParallel(trips []EnrichedTrip, partitions int, dims ...Dimension) (*GroupTable, error) {
	if partitions <= 0 {
		partitions = runtime.GOMAXPROCS(0)
	}
	chunks := partition(len(trips), partitions)
	partials := make([]*GroupTable, len(chunks))

	var g errgroup.Group
	for i, chunk := range chunks {
		g.Go(func() error {
			t, err := GroupCount(trips[chunk[0]:chunk[1]], dims...)
			partials[i] = t
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := NewGroupTable(dims...)
	for _, partial := range partials {
		if err := out.Merge(partial); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *GroupTable) Add(trip *EnrichedTrip) error {
	values, ranks, err := dimensionValues(t.dims, trip)
	if err != nil {
		return err
	}
	t.add(values, ranks, 1)
	return nil
}

func (t *GroupTable) add(values []string, ranks []int, count int) {
	key := groupKey(values)
	g, ok := t.index[key]
	if !ok {
		g = &Group{Values: values, ranks: ranks}
		t.index[key] = g
		t.groups = append(t.groups, g)
	}
	g.Count += count
	t.total += count
}

// Merge adds other's counts into t. Counts are summed per group, so merging is commutative and
// associative as far as counts go; groups new to t are appended in other's order.
func (t *GroupTable) Merge(other *GroupTable) error {
	if err := checkMergeable(t.dims, other.dims); err != nil {
		return err
	}
	for _, g := range other.groups {
		t.add(slices.Clone(g.Values), slices.Clone(g.ranks), g.Count)
	}
	return nil
}

func (t *GroupTable) Dimensions() []string {
	return dimensionNames(t.dims)
}

func (t *GroupTable) Total() int {
	return t.total
}

func (t *GroupTable) Len() int {
	return len(t.groups)
}

// Groups returns every group in first-encountered order.
func (t *GroupTable) Groups() []Group {
	out := make([]Group, len(t.groups))
	for i, g := range t.groups {
		out[i] = *g
		out[i].Values = slices.Clone(g.Values)
		if t.total > 0 {
			out[i].Percent = 100 * float64(g.Count) / float64(t.total)
		}
	}
	return out
}

// Ordered returns every group in display order: by category rank (or numeric value) of each
// dimension in turn, then by label.
func (t *GroupTable) Ordered() []Group {
	out := t.Groups()
	sort.SliceStable(out, func(i, j int) bool {
		return rankLess(out[i].Values, out[i].ranks, out[j].Values, out[j].ranks)
	})
	return out
}

// TopN returns the n groups with the highest counts, highest first. Ties go to the group
// encountered first. n <= 0 means every group.
func (t *GroupTable) TopN(n int) []Group {
	out := t.Groups()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// TopValues keeps the trips whose value of dim is among its n most frequent, and returns dim
// re-ranked by that frequency so Ordered lists the most frequent value first.
func TopValues(trips []EnrichedTrip, partitions int, dim Dimension, n int) ([]EnrichedTrip, Dimension, error) {
	table, err := GroupCountParallel(trips, partitions, dim)
	if err != nil {
		return nil, Dimension{}, err
	}
	ranks := make(map[string]int)
	for i, g := range table.TopN(n) {
		ranks[g.Values[0]] = i
	}

	ranked := Dimension{Name: dim.Name, value: func(t *EnrichedTrip) (string, int, bool) {
		label, _, ok := dim.value(t)
		if !ok {
			return "", 0, false
		}
		rank, ok := ranks[label]
		return label, rank, ok
	}}

	var out []EnrichedTrip
	for i := range trips {
		if _, _, ok := ranked.value(&trips[i]); ok {
			out = append(out, trips[i])
		}
	}
	return out, ranked, nil
}

func dimensionValues(dims []Dimension, trip *EnrichedTrip) ([]string, []int, error) {
	values := make([]string, len(dims))
	ranks := make([]int, len(dims))
	for i, d := range dims {
		label, rank, ok := d.value(trip)
		if !ok {
			return nil, nil, &RecordError{Row: trip.Row, BikeID: trip.BikeID, Field: d.Name, Err: ErrMissingDimension}
		}
		values[i] = label
		ranks[i] = rank
	}
	return values, ranks, nil
}

func dimensionNames(dims []Dimension) []string {
	out := make([]string, len(dims))
	for i, d := range dims {
		out[i] = d.Name
	}
	return out
}

func checkMergeable(dims, other []Dimension) error {
	if !slices.Equal(dimensionNames(dims), dimensionNames(other)) {
		return fmt.Errorf("cannot merge groups by %v into groups by %v", dimensionNames(other), dimensionNames(dims))
	}
	return nil
}

func groupKey(values []string) string {
	return strings.Join(values, "\x00")
}

// rankLess orders by the rank (or numeric value) of each dimension in turn, then by label.
func rankLess(aValues []string, aRanks []int, bValues []string, bRanks []int) bool {
	for k := range aRanks {
		if aRanks[k] != bRanks[k] {
			return aRanks[k] < bRanks[k]
		}
		if aValues[k] != bValues[k] {
			return aValues[k] < bValues[k]
		}
	}
	return false
}
