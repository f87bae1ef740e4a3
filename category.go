package bikeshare2sqlite

import (
	"fmt"
)

const (
	FieldDayOfWeek    = "day_of_week"
	FieldDayPart      = "day_part"
	FieldUserType     = "user_type"
	FieldMemberGender = "member_gender"
)

var WeekdayLabels = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
var UserTypeLabels = []string{"Subscriber", "Customer"}
var GenderLabels = []string{"Male", "Female", "Other"}

// Category is a label from a closed, ordered set together with its rank in that set. Rank is
// for ordering output only.
type Category struct {
	Label string
	Rank  int
}

type categorySet struct {
	labels []string
	ranks  map[string]int
}

// Normalizer validates categorical values against their field's declared label set.
type Normalizer struct {
	sets map[string]categorySet
}

func NewNormalizer() *Normalizer {
	return &Normalizer{sets: make(map[string]categorySet)}
}

// Declare registers the ordered label set for field. Labels must be unique.
func (n *Normalizer) Declare(field string, labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("%w: %s has no labels", ErrInvalidConfig, field)
	}
	set := categorySet{labels: append([]string(nil), labels...), ranks: make(map[string]int, len(labels))}
	for i, label := range labels {
		if _, dup := set.ranks[label]; dup {
			return fmt.Errorf("%w: %s label %q declared twice", ErrInvalidConfig, field, label)
		}
		set.ranks[label] = i
	}
	n.sets[field] = set
	return nil
}

// Normalize tags value with its rank in field's label set. Matching is exact: a label with
// different spelling or casing is ErrUnknownCategory.
func (n *Normalizer) Normalize(field, value string) (Category, error) {
	set, ok := n.sets[field]
	if !ok {
		return Category{}, fmt.Errorf("%w: field %s is not categorical", ErrUnknownCategory, field)
	}
	rank, ok := set.ranks[value]
	if !ok {
		return Category{}, fmt.Errorf("%w: %q is not a %s", ErrUnknownCategory, value, field)
	}
	return Category{Label: value, Rank: rank}, nil
}

func (n *Normalizer) Labels(field string) []string {
	return append([]string(nil), n.sets[field].labels...)
}
