package aggregator

import (
	"strings"
	"time"
)

// Coverage contains code coverage percentages reported by a job.
type Coverage struct {
	Packages   float64 `json:"packages" yaml:"packages"`
	Files      float64 `json:"files" yaml:"files"`
	Classes    float64 `json:"classes" yaml:"classes"`
	Methods    float64 `json:"methods" yaml:"methods"`
	Lines      float64 `json:"lines" yaml:"lines"`
	Conditions float64 `json:"conditions" yaml:"conditions"`
}

// Add sums the coverage metrics of other into c.
func (c *Coverage) Add(other Coverage) {
	c.Packages += other.Packages
	c.Files += other.Files
	c.Classes += other.Classes
	c.Methods += other.Methods
	c.Lines += other.Lines
	c.Conditions += other.Conditions
}

// Results contains the raw test counters collected for a single job run.
type Results struct {
	Pass            int           `json:"pass" yaml:"pass"`
	Fail            int           `json:"fail" yaml:"fail"`
	Skip            int           `json:"skip" yaml:"skip"`
	Total           int           `json:"total" yaml:"total"`
	NumberOfChanges int           `json:"number_of_changes" yaml:"number_of_changes"`
	Timestamp       time.Time     `json:"timestamp" yaml:"timestamp"`
	Duration        time.Duration `json:"duration" yaml:"duration"`
	Percentage      float64       `json:"percentage" yaml:"percentage"`

	// CurrentResult and PreviousResult carry the CI build result strings
	// (SUCCESS, FAILURE, UNSTABLE, ABORTED) of this run and the one before.
	CurrentResult  string `json:"current_result,omitempty" yaml:"current_result,omitempty"`
	PreviousResult string `json:"previous_result,omitempty" yaml:"previous_result,omitempty"`
	Building       bool   `json:"building,omitempty" yaml:"building,omitempty"`

	Coverage  Coverage `json:"coverage" yaml:"coverage"`
	SonarURL  string   `json:"sonar_url,omitempty" yaml:"sonar_url,omitempty"`
	ReportURL string   `json:"report_url,omitempty" yaml:"report_url,omitempty"`
}

// Add sums the counters of other into r. Build cues and links are not summed.
func (r *Results) Add(other *Results) {
	if other == nil {
		return
	}

	r.Pass += other.Pass
	r.Fail += other.Fail
	r.Skip += other.Skip
	r.Total += other.Total
	r.NumberOfChanges += other.NumberOfChanges
	r.Duration += other.Duration
	r.Coverage.Add(other.Coverage)
}

// BuildInfo contains metadata about the CI build that produced the results.
type BuildInfo struct {
	Duration    time.Duration `json:"duration" yaml:"duration"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Timestamp   time.Time     `json:"timestamp" yaml:"timestamp"`
}

// Job is a single CI job record fed into the aggregation.
type Job struct {
	Name         string     `json:"name" yaml:"name"`
	FriendlyName string     `json:"friendly_name,omitempty" yaml:"friendly_name,omitempty"`
	Group        string     `json:"group,omitempty" yaml:"group,omitempty"`
	Results      *Results   `json:"results,omitempty" yaml:"results,omitempty"`
	BuildInfo    *BuildInfo `json:"build_info,omitempty" yaml:"build_info,omitempty"`

	// Report is derived by the aggregator and replaced on every run.
	Report *JobReport `json:"report,omitempty" yaml:"-"`
}

// DisplayName returns the friendly name when set, otherwise the last path
// segment of the job name (jobs inside folders are named "folder/job").
func (j *Job) DisplayName() string {
	if j.FriendlyName != "" {
		return j.FriendlyName
	}

	if idx := strings.LastIndex(j.Name, "/"); idx >= 0 {
		return j.Name[idx+1:]
	}

	return j.Name
}

// JobReport is the classified view of a job's results.
type JobReport struct {
	Status      Status        `json:"status,omitempty"`
	Total       int           `json:"total"`
	Pass        int           `json:"pass"`
	Fail        int           `json:"fail"`
	FailColor   string        `json:"fail_color,omitempty"`
	Skip        int           `json:"skip"`
	Stale       bool          `json:"stale"`
	Changes     int           `json:"changes"`
	ReportURL   string        `json:"report_url,omitempty"`
	SonarURL    string        `json:"sonar_url,omitempty"`
	Coverage    Coverage      `json:"coverage"`
	Duration    time.Duration `json:"duration"`
	Description string        `json:"description,omitempty"`
	Percentage  float64       `json:"percentage"`
}

// GroupReport contains the rollup of all jobs sharing a group label.
type GroupReport struct {
	JobSuccess  int     `json:"job_success"`
	JobFailed   int     `json:"job_failed"`
	JobUnstable int     `json:"job_unstable"`
	JobAborted  int     `json:"job_aborted"`
	JobRunning  int     `json:"job_running"`
	Results     Results `json:"results"`
	Status      Status  `json:"status"`
	Percentage  float64 `json:"percentage"`
}

// Group is a set of jobs sharing a group label. The implicit group has an
// empty name.
type Group struct {
	Name   string       `json:"name"`
	Jobs   []*Job       `json:"jobs"`
	Report *GroupReport `json:"report"`
}

// Aggregated is the output of a single aggregation run.
type Aggregated struct {
	Grouped bool     `json:"grouped"`
	Groups  []*Group `json:"groups"`

	SuccessJobs      int `json:"success_jobs"`
	FixedJobs        int `json:"fixed_jobs"`
	RunningJobs      int `json:"running_jobs"`
	FailedJobs       int `json:"failed_jobs"`
	KeepFailJobs     int `json:"keep_fail_jobs"`
	UnstableJobs     int `json:"unstable_jobs"`
	KeepUnstableJobs int `json:"keep_unstable_jobs"`
	AbortedJobs      int `json:"aborted_jobs"`

	TotalDuration        time.Duration `json:"total_duration"`
	TotalNumberOfChanges int           `json:"total_number_of_changes"`
	Results              Results       `json:"results"`
}

// Jobs returns every job in output order.
func (a *Aggregated) Jobs() []*Job {
	var n int
	for _, g := range a.Groups {
		n += len(g.Jobs)
	}

	jobs := make([]*Job, 0, n)
	for _, g := range a.Groups {
		jobs = append(jobs, g.Jobs...)
	}

	return jobs
}

// ClassifiedJobs returns the number of jobs that received a status.
func (a *Aggregated) ClassifiedJobs() int {
	return a.SuccessJobs + a.FixedJobs + a.RunningJobs + a.FailedJobs +
		a.KeepFailJobs + a.UnstableJobs + a.KeepUnstableJobs + a.AbortedJobs
}
