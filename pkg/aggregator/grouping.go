package aggregator

import (
	"slices"
	"strings"
)

// hasGroupLabels reports whether at least one job carries a group label.
func hasGroupLabels(jobs []*Job) bool {
	return slices.ContainsFunc(jobs, func(j *Job) bool {
		return j.Group != ""
	})
}

// resolveGroups splits jobs into groups. When no job is labeled, a single
// implicit group holds every job in input order. Otherwise jobs are stably
// ordered by label and each distinct label becomes a group; unlabeled jobs
// form the group with an empty name.
func resolveGroups(jobs []*Job) ([]*Group, bool) {
	ordered := slices.Clone(jobs)

	if !hasGroupLabels(ordered) {
		return []*Group{{Jobs: ordered}}, false
	}

	slices.SortStableFunc(ordered, func(a, b *Job) int {
		return strings.Compare(a.Group, b.Group)
	})

	groups := make([]*Group, 0, 8)

	for _, job := range ordered {
		if n := len(groups); n > 0 && groups[n-1].Name == job.Group {
			groups[n-1].Jobs = append(groups[n-1].Jobs, job)

			continue
		}

		groups = append(groups, &Group{
			Name: job.Group,
			Jobs: []*Job{job},
		})
	}

	return groups, true
}
