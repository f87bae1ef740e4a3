package main

import (
	"fmt"
	"github.com/dzfranklin/bikeshare2sqlite"
	"github.com/spf13/pflag"
	"os"
	"path"
	"strings"
)

func usageAndDie() {
	fmt.Println("Example usage:\n" +
		"    bikeshare2sqlite --import <tripdata.csv> [--reference-year 2019] [--config <config.yaml>]\n" +
		"    bikeshare2sqlite --summarize <tripdata.db> [--group day_of_week,member_gender] [--group station_pair:10] [--group hour/duration]\n" +
		"    bikeshare2sqlite --clip <tripdata.db> --clip-feature <feature_geojson.json>")
	os.Exit(1)
}

func main() {
	importPath := pflag.StringP("import", "i", "", "Import a trip log CSV")
	summarizePath := pflag.StringP("summarize", "s", "", "Write grouped trip counts from a database")
	clipPath := pflag.StringP("clip", "c", "", "Clip a database")
	primaryOptions := []*string{importPath, summarizePath, clipPath}

	output := pflag.StringP("out", "o", "", "Path to write output to")
	configPath := pflag.String("config", "", "YAML config file (BIKESHARE_* environment variables override it)")
	referenceYear := pflag.Int("reference-year", 0, "Year ages are computed against (default from config)")
	ageBound := pflag.Int("age-outlier-bound", 0, "Trips with riders this age or older are dropped (default from config)")
	separator := pflag.String("station-pair-separator", "", "Separator between start and end station names (default from config)")
	ignoreInvalidMode := pflag.Bool("ignore-invalid", false, "Drop malformed rows instead of failing the import")
	partitions := pflag.Int("partitions", 0, "Partitions to process concurrently (default GOMAXPROCS)")
	groups := pflag.StringArray("group", nil, "Grouping as dim[,dim...][:topN][/within=dim:N][/duration]; repeatable (default is the standard set)")
	clipFeaturePath := pflag.String("clip-feature", "", "If --clip is specified clips to the GeoJSON feature in the file specified")

	pflag.Parse()

	primaryCount := 0
	for _, opt := range primaryOptions {
		if *opt != "" {
			primaryCount++
		}
	}
	if primaryCount > 1 {
		usageAndDie()
	}

	var err error
	if *importPath != "" {
		var cfg bikeshare2sqlite.Config
		cfg, err = bikeshare2sqlite.LoadConfig(*configPath)
		if err == nil {
			if *referenceYear != 0 {
				cfg.ReferenceYear = *referenceYear
			}
			if *ageBound != 0 {
				cfg.AgeOutlierBound = *ageBound
			}
			if *separator != "" {
				cfg.StationPairSeparator = *separator
			}

			outputPath := outputPathOrDefault(*importPath, *output, ".csv", ".db")
			opts := &bikeshare2sqlite.ImportOpts{
				Config:        &cfg,
				IgnoreInvalid: *ignoreInvalidMode,
				Partitions:    *partitions,
			}
			var res *bikeshare2sqlite.Result
			res, err = bikeshare2sqlite.Import(*importPath, outputPath, opts)
			if res != nil {
				fmt.Println(res.Summary)
			}
		}
	} else if *summarizePath != "" {
		opts := &bikeshare2sqlite.SummarizeOpts{Partitions: *partitions}
		for _, arg := range *groups {
			var g bikeshare2sqlite.Grouping
			g, err = bikeshare2sqlite.ParseGrouping(arg)
			if err != nil {
				break
			}
			opts.Groupings = append(opts.Groupings, g)
		}
		if err == nil {
			outputPath := outputPathOrDefault(*summarizePath, *output, ".db", "_summary.zip")
			err = bikeshare2sqlite.Summarize(*summarizePath, outputPath, opts)
		}
	} else if *clipPath != "" {
		if *clipFeaturePath == "" {
			usageAndDie()
		}
		var feature []byte
		feature, err = os.ReadFile(*clipFeaturePath)
		if err != nil {
			panic(err)
		}
		featureName := trimFileExt(path.Base(*clipFeaturePath))

		outputPath := outputPathOrDefault(*clipPath, *output, ".db", fmt.Sprintf("_%s.db", featureName))
		err = bikeshare2sqlite.Clip(*clipPath, outputPath, string(feature))
	} else {
		usageAndDie()
	}

	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	} else {
		fmt.Println("All done")
	}
}

func outputPathOrDefault(inputPath string, outputPath string, suffixToTrim string, newSuffix string) string {
	if outputPath != "" {
		return outputPath
	}
	inputPath = path.Clean(inputPath)
	return strings.TrimSuffix(path.Base(inputPath), suffixToTrim) + newSuffix
}

func trimFileExt(name string) string {
	i := strings.LastIndex(name, ".")
	if i == -1 {
		return name
	} else {
		return name[:i]
	}
}
