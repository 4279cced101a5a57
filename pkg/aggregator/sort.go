package aggregator

import (
	"cmp"
	"slices"
	"strings"
)

// SortKey selects the ordering of jobs inside a group.
type SortKey string

const (
	SortByName       SortKey = "NAME"
	SortByStatus     SortKey = "STATUS"
	SortByTotalTest  SortKey = "TOTAL_TEST"
	SortByPass       SortKey = "PASS"
	SortByFail       SortKey = "FAIL"
	SortBySkip       SortKey = "SKIP"
	SortByLastRun    SortKey = "LAST_RUN"
	SortByCommits    SortKey = "COMMITS"
	SortByDuration   SortKey = "DURATION"
	SortByPercentage SortKey = "PERCENTAGE"
)

// SortKeys lists every supported sort key.
var SortKeys = []SortKey{
	SortByName,
	SortByStatus,
	SortByTotalTest,
	SortByPass,
	SortByFail,
	SortBySkip,
	SortByLastRun,
	SortByCommits,
	SortByDuration,
	SortByPercentage,
}

// ParseSortKey matches s case-insensitively against the supported keys.
// Unknown or empty values select SortByName.
func ParseSortKey(s string) SortKey {
	for _, key := range SortKeys {
		if strings.EqualFold(string(key), strings.TrimSpace(s)) {
			return key
		}
	}

	return SortByName
}

// sortJobs orders jobs in place by key.
func sortJobs(jobs []*Job, key SortKey) {
	slices.SortStableFunc(jobs, func(a, b *Job) int {
		return compareJobs(key, a, b)
	})
}

// compareJobs compares two jobs by key. When a field needed by the key is
// missing on either side the left job sorts first.
func compareJobs(key SortKey, a, b *Job) int {
	switch key {
	case SortByStatus:
		if a.Report == nil || b.Report == nil ||
			!a.Report.Status.Valid() || !b.Report.Status.Valid() {
			return -1
		}

		return cmp.Compare(a.Report.Status.Priority(), b.Report.Status.Priority())
	case SortByTotalTest, SortByPass, SortByFail, SortBySkip,
		SortByLastRun, SortByCommits, SortByDuration, SortByPercentage:
		if a.Results == nil || b.Results == nil {
			return -1
		}

		if key == SortByLastRun && (a.Results.Timestamp.IsZero() || b.Results.Timestamp.IsZero()) {
			return -1
		}

		return compareResults(key, a.Results, b.Results)
	default:
		return strings.Compare(a.DisplayName(), b.DisplayName())
	}
}

func compareResults(key SortKey, a, b *Results) int {
	switch key {
	case SortByTotalTest:
		return cmp.Compare(b.Total, a.Total)
	case SortByPass:
		return cmp.Compare(b.Pass, a.Pass)
	case SortByFail:
		return cmp.Compare(b.Fail, a.Fail)
	case SortBySkip:
		return cmp.Compare(b.Skip, a.Skip)
	case SortByLastRun:
		return a.Timestamp.Compare(b.Timestamp)
	case SortByCommits:
		return cmp.Compare(a.NumberOfChanges, b.NumberOfChanges)
	case SortByDuration:
		return cmp.Compare(a.Duration, b.Duration)
	default:
		return cmp.Compare(a.Percentage, b.Percentage)
	}
}
