package bikeshare2sqlite

import (
	"fmt"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
	"os"
)

// DefaultReferenceYear is the collection year of the Ford GoBike February 2019 extract.
const DefaultReferenceYear = 2019

const envPrefix = "BIKESHARE"

// Config holds every tunable of the pipeline. Nothing here is read from a constant at record
// time, so the same code serves extracts from other months, years and cities.
type Config struct {
	ReferenceYear        int      `yaml:"reference_year" envconfig:"REFERENCE_YEAR" validate:"gt=0"`
	AgeOutlierBound      int      `yaml:"age_outlier_bound" envconfig:"AGE_OUTLIER_BOUND" validate:"gt=0"`
	DayPartBinEdges      []int    `yaml:"day_part_bin_edges" envconfig:"DAY_PART_BIN_EDGES" validate:"min=2"`
	DayPartLabels        []string `yaml:"day_part_labels" envconfig:"DAY_PART_LABELS" validate:"min=1,dive,required"`
	StationPairSeparator string   `yaml:"station_pair_separator" envconfig:"STATION_PAIR_SEPARATOR" validate:"len=1"`
}

func DefaultConfig(referenceYear int) Config {
	return Config{
		ReferenceYear:        referenceYear,
		AgeOutlierBound:      100,
		DayPartBinEdges:      []int{0, 4, 11, 16, 20, 23},
		DayPartLabels:        []string{"Midnight", "Morning", "Afternoon", "Evening", "Night"},
		StationPairSeparator: "-",
	}
}

// LoadConfig starts from DefaultConfig, applies the YAML file at path (if path is not empty) and
// then any BIKESHARE_* environment variables. The result is not validated; see Config.Validate.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig(DefaultReferenceYear)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config from env: %w", err)
	}
	return cfg, nil
}
