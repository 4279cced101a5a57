// Package aggregator classifies CI job results and rolls them up per group
// and globally.
package aggregator

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNilJobs is returned when no job list is passed.
	ErrNilJobs = errors.New("job list is nil")

	// ErrNilJob is returned when the job list contains a nil entry.
	ErrNilJob = errors.New("job is nil")
)

// Aggregator turns per-job results into an Aggregated report.
type Aggregator struct {
	log logrus.FieldLogger
}

// New creates an Aggregator that writes diagnostics to log.
func New(log logrus.FieldLogger) *Aggregator {
	return &Aggregator{
		log: log.WithField("component", "aggregator"),
	}
}

// Aggregate classifies every job, computes group and global rollups and
// orders the jobs inside each group by opts.SortBy. Each job gets a fresh
// Report; the input slice itself is not reordered.
func (a *Aggregator) Aggregate(jobs []*Job, opts Options) (*Aggregated, error) {
	if jobs == nil {
		return nil, ErrNilJobs
	}

	for i, job := range jobs {
		if job == nil {
			return nil, fmt.Errorf("job %d: %w", i, ErrNilJob)
		}
	}

	opts.SortBy = ParseSortKey(string(opts.SortBy))

	groups, grouped := resolveGroups(jobs)

	result := &Aggregated{
		Grouped: grouped,
		Groups:  groups,
	}

	for _, group := range groups {
		acc := a.foldGroup(group, &opts)
		group.Report = acc.report()
		acc.global.mergeInto(result)
	}

	for _, group := range groups {
		sortJobs(group.Jobs, opts.SortBy)
	}

	a.log.WithField("jobs", len(jobs)).
		WithField("groups", len(groups)).
		Info("Analyze finished")

	return result, nil
}

// foldGroup classifies the jobs of a group into a fresh accumulator.
func (a *Aggregator) foldGroup(group *Group, opts *Options) *groupAccumulator {
	acc := &groupAccumulator{}

	for _, job := range group.Jobs {
		if job.Results == nil {
			job.Report = &JobReport{}

			a.log.WithField("job", job.Name).Warn("No results found for job")

			continue
		}

		job.Report = newJobReport(job.Results, job.BuildInfo, opts)
		acc.add(job)
	}

	return acc
}

// globalTally holds the global counters contributed by one group.
type globalTally struct {
	success, fixed, running         int
	failed, keepFailing             int
	unstable, keepUnstable, aborted int

	results  Results
	duration time.Duration
	changes  int
}

func (t *globalTally) mergeInto(result *Aggregated) {
	result.SuccessJobs += t.success
	result.FixedJobs += t.fixed
	result.RunningJobs += t.running
	result.FailedJobs += t.failed
	result.KeepFailJobs += t.keepFailing
	result.UnstableJobs += t.unstable
	result.KeepUnstableJobs += t.keepUnstable
	result.AbortedJobs += t.aborted
	result.TotalDuration += t.duration
	result.TotalNumberOfChanges += t.changes
	result.Results.Add(&t.results)
}

// groupAccumulator folds classified jobs into group and global counters.
type groupAccumulator struct {
	results Results

	success, failed, unstable, aborted, running int

	foundFailure bool
	foundRunning bool
	foundSkip    bool

	global globalTally
}

func (acc *groupAccumulator) add(job *Job) {
	switch job.Report.Status {
	case StatusSuccess:
		acc.success++
		acc.global.success++
	case StatusFixed:
		acc.success++
		acc.global.fixed++
	case StatusRunning:
		acc.foundRunning = true
		acc.running++
		acc.global.running++
	case StatusFailure:
		acc.foundFailure = true
		acc.failed++
		acc.global.failed++
	case StatusStillFailing:
		acc.foundFailure = true
		acc.failed++
		acc.global.keepFailing++
	case StatusUnstable:
		acc.foundSkip = true
		acc.unstable++
		acc.global.unstable++
	case StatusStillUnstable:
		acc.foundSkip = true
		acc.unstable++
		acc.global.keepUnstable++
	case StatusAborted:
		acc.foundSkip = true
		acc.aborted++
		acc.global.aborted++
	}

	acc.results.Pass += job.Results.Pass
	acc.results.Skip += job.Results.Skip
	acc.results.Total += job.Results.Total

	acc.global.results.Add(job.Results)

	if job.BuildInfo != nil {
		acc.global.duration += job.BuildInfo.Duration
		acc.global.changes += job.Results.NumberOfChanges
	}
}

// report resolves the group status with the worst status winning.
func (acc *groupAccumulator) report() *GroupReport {
	report := &GroupReport{
		JobSuccess:  acc.success,
		JobFailed:   acc.failed,
		JobUnstable: acc.unstable,
		JobAborted:  acc.aborted,
		JobRunning:  acc.running,
		Results:     acc.results,
	}

	switch {
	case acc.foundFailure:
		report.Status = StatusFailure
	case acc.foundRunning:
		report.Status = StatusRunning
	case acc.foundSkip:
		report.Status = StatusUnstable
	default:
		report.Status = StatusSuccess
	}

	report.Percentage = Percentage(
		acc.success,
		acc.success+acc.running+acc.aborted+acc.unstable+acc.failed,
	)

	return report
}
