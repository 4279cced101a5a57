package aggregator

// Status is the classification of a job or group.
type Status string

const (
	StatusSuccess       Status = "SUCCESS"
	StatusFixed         Status = "FIXED"
	StatusRunning       Status = "RUNNING"
	StatusFailure       Status = "FAILURE"
	StatusStillFailing  Status = "STILL_FAILING"
	StatusUnstable      Status = "UNSTABLE"
	StatusStillUnstable Status = "STILL_UNSTABLE"
	StatusAborted       Status = "ABORTED"
)

// statusPriority orders statuses by severity, lowest value first.
var statusPriority = map[Status]int{
	StatusFailure:       1,
	StatusStillFailing:  2,
	StatusUnstable:      3,
	StatusStillUnstable: 4,
	StatusAborted:       5,
	StatusRunning:       6,
	StatusFixed:         7,
	StatusSuccess:       8,
}

// Priority returns the sort priority of the status. Unknown statuses
// return 0.
func (s Status) Priority() int {
	return statusPriority[s]
}

// Valid reports whether s is a member of the taxonomy.
func (s Status) Valid() bool {
	_, ok := statusPriority[s]

	return ok
}

// IsFailure reports whether s is FAILURE or STILL_FAILING.
func (s Status) IsFailure() bool {
	return s == StatusFailure || s == StatusStillFailing
}

// CI build result strings.
const (
	buildSuccess  = "SUCCESS"
	buildFailure  = "FAILURE"
	buildUnstable = "UNSTABLE"
	buildAborted  = "ABORTED"
)
