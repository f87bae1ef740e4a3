package bikeshare2sqlite

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig(2019).Validate([]string{"Berry St at 4th St", "Market St at 10th St"}))
}

func TestConfigValidateRejects(t *testing.T) {
	cases := map[string]func(cfg *Config){
		"zero reference year":    func(cfg *Config) { cfg.ReferenceYear = 0 },
		"zero age bound":         func(cfg *Config) { cfg.AgeOutlierBound = 0 },
		"long separator":         func(cfg *Config) { cfg.StationPairSeparator = "->" },
		"empty separator":        func(cfg *Config) { cfg.StationPairSeparator = "" },
		"mismatched labels":      func(cfg *Config) { cfg.DayPartLabels = cfg.DayPartLabels[:4] },
		"empty label":            func(cfg *Config) { cfg.DayPartLabels[2] = "" },
		"duplicate labels":       func(cfg *Config) { cfg.DayPartLabels[4] = "Midnight" },
		"edges not covering day": func(cfg *Config) { cfg.DayPartBinEdges = []int{0, 4, 11, 16, 20, 22} },
		"separator in station":   func(cfg *Config) { cfg.StationPairSeparator = "@" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig(2019)
			mutate(&cfg)
			err := cfg.Validate([]string{"Berry St @ 4th St"})
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(DefaultReferenceYear), cfg)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := testTempdir(t)
	path := dir + "/config.yaml"
	err := os.WriteFile(path, []byte(`
reference_year: 2018
station_pair_separator: "|"
day_part_bin_edges: [0, 6, 12, 18, 23]
day_part_labels: [Night, Morning, Afternoon, Evening]
`), 0o644)
	require.NoError(t, err)

	t.Setenv("BIKESHARE_AGE_OUTLIER_BOUND", "90")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Config{
		ReferenceYear:        2018,
		AgeOutlierBound:      90,
		DayPartBinEdges:      []int{0, 6, 12, 18, 23},
		DayPartLabels:        []string{"Night", "Morning", "Afternoon", "Evening"},
		StationPairSeparator: "|",
	}, cfg)
	require.NoError(t, cfg.Validate(nil))
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	dir := testTempdir(t)
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("reference_yr: 2018\n"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigSampleMatchesDefaults(t *testing.T) {
	cfg, err := LoadConfig("./sample_data/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(2019), cfg)
}
