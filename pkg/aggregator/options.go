package aggregator

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DefaultStaleAfter is the default age after which results are out of date.
const DefaultStaleAfter = 24 * time.Hour

// Options configures an aggregation run.
type Options struct {
	// StaleAfter marks results older than this as out of date. Zero
	// disables the check.
	StaleAfter time.Duration

	// SortBy selects the key used to order jobs inside each group.
	SortBy SortKey

	// Now returns the reference time for the staleness check.
	Now func() time.Time
}

func (o *Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}

	return o.Now()
}

// Property names of the legacy untyped configuration.
const (
	PropertyOutOfDateResults = "OUT_OF_DATE_RESULTS_ARG"
	PropertySortJobsBy       = "SORT_JOBS_BY"
)

type legacyProperties struct {
	OutOfDateResultsHours float64 `mapstructure:"OUT_OF_DATE_RESULTS_ARG"`
	SortJobsBy            string  `mapstructure:"SORT_JOBS_BY"`
}

// OptionsFromProperties converts a legacy property bag into Options. The
// out-of-date threshold is expressed in hours and may be a number or a
// numeric string; an empty value disables the check.
func OptionsFromProperties(props map[string]any) (Options, error) {
	var legacy legacyProperties

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &legacy,
	})
	if err != nil {
		return Options{}, fmt.Errorf("creating property decoder: %w", err)
	}

	if err := decoder.Decode(props); err != nil {
		return Options{}, fmt.Errorf("decoding properties: %w", err)
	}

	return Options{
		StaleAfter: time.Duration(legacy.OutOfDateResultsHours * float64(time.Hour)),
		SortBy:     ParseSortKey(legacy.SortJobsBy),
	}, nil
}
