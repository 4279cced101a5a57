package aggregator

import (
	"math"
	"strings"
	"time"
)

// failColor highlights the fail counter of jobs with failing tests.
const failColor = "red"

// Classify derives the status of a job from its raw results.
func Classify(results *Results) Status {
	if results == nil {
		return ""
	}

	if results.Building {
		return StatusRunning
	}

	previous := strings.ToUpper(results.PreviousResult)

	switch currentResult(results) {
	case buildFailure:
		if previous == buildFailure {
			return StatusStillFailing
		}

		return StatusFailure
	case buildUnstable:
		if previous == buildUnstable {
			return StatusStillUnstable
		}

		return StatusUnstable
	case buildAborted:
		return StatusAborted
	default:
		if previous == buildFailure || previous == buildUnstable {
			return StatusFixed
		}

		return StatusSuccess
	}
}

// currentResult returns the CI result of the run, falling back to the test
// counters when the CI did not report a known result.
func currentResult(results *Results) string {
	switch current := strings.ToUpper(results.CurrentResult); current {
	case buildSuccess, buildFailure, buildUnstable, buildAborted:
		return current
	}

	if results.Fail > 0 {
		return buildUnstable
	}

	return buildSuccess
}

// Percentage returns part/total as a percentage rounded to two decimals.
// A zero total yields zero.
func Percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}

	return math.Round(float64(part)*10000/float64(total)) / 100
}

// newJobReport builds the report of a job with non-nil results.
func newJobReport(results *Results, buildInfo *BuildInfo, opts *Options) *JobReport {
	report := &JobReport{
		Status: Classify(results),
	}

	report.applyCounters(results)
	report.Stale = isStale(results.Timestamp, opts)
	report.Changes = results.NumberOfChanges
	report.ReportURL = results.ReportURL
	report.SonarURL = results.SonarURL
	report.Coverage = results.Coverage

	if buildInfo != nil {
		report.Duration = buildInfo.Duration
		report.Description = buildInfo.Description
	}

	report.Percentage = results.Percentage
	if report.Percentage == 0 {
		report.Percentage = Percentage(results.Pass, results.Total)
	}

	// Partial counts of a failed run are not shown.
	if report.Status.IsFailure() {
		report.applyCounters(nil)
	}

	return report
}

// applyCounters sets the display counters from results, or clears them
// when results is nil.
func (r *JobReport) applyCounters(results *Results) {
	if results == nil {
		r.Total, r.Pass, r.Fail, r.Skip = 0, 0, 0, 0
		r.FailColor = ""

		return
	}

	r.Total = results.Total
	r.Pass = results.Pass
	r.Fail = results.Fail
	r.Skip = results.Skip
	r.FailColor = ""

	if results.Fail > 0 {
		r.FailColor = failColor
	}
}

func isStale(lastRun time.Time, opts *Options) bool {
	if opts.StaleAfter <= 0 || lastRun.IsZero() {
		return false
	}

	return lastRun.Before(opts.now().Add(-opts.StaleAfter))
}
