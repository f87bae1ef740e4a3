package bikeshare2sqlite

import (
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"log/slog"
	"strings"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidConfig    = errors.New("invalid config")
	ErrMissingTimestamp = errors.New("missing timestamp")
	ErrInvalidHour      = errors.New("invalid hour")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrMissingDimension = errors.New("missing dimension value")
)

var configValidate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg before any record is processed. stationNames is the observed station-name
// alphabet the pair separator is checked against.
func (cfg Config) Validate(stationNames []string) error {
	v := &configChecker{}

	if err := configValidate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			if fe.Param() != "" {
				v.append("%s must satisfy %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
			} else {
				v.append("%s must satisfy %s (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
			}
		}
	}

	if _, err := NewDayPartBins(cfg.DayPartBinEdges, cfg.DayPartLabels); err != nil {
		v.appendErr(err)
	}
	if err := NewNormalizer().Declare(FieldDayPart, cfg.DayPartLabels); err != nil {
		v.appendErr(err)
	}
	if cfg.StationPairSeparator != "" {
		if err := validateSeparator(cfg.StationPairSeparator, stationNames); err != nil {
			v.appendErr(err)
		}
	}

	if len(v.issues) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(v.issues, "; "))
	}
	return nil
}

type configChecker struct {
	issues []string
}

func (v *configChecker) append(msg string, args ...any) {
	issue := fmt.Sprintf(msg, args...)
	slog.Error(issue)
	v.issues = append(v.issues, issue)
}

func (v *configChecker) appendErr(err error) {
	v.append("%s", strings.TrimPrefix(err.Error(), ErrInvalidConfig.Error()+": "))
}
