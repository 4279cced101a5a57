// Package records decodes snapshots of already collected CI job records.
package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ethpandaops/resultsaggregator/pkg/aggregator"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a snapshot.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	// ErrNoJobs is returned when a snapshot has no jobs field.
	ErrNoJobs = errors.New("snapshot has no jobs")

	// ErrUnknownFormat is returned for unsupported snapshot formats.
	ErrUnknownFormat = errors.New("unknown snapshot format")
)

// Snapshot is the serialized form of a job list.
//
// JSON durations are integer nanoseconds; YAML durations may also be written
// as Go duration strings such as "1m30s".
type Snapshot struct {
	Jobs []*aggregator.Job `json:"jobs" yaml:"jobs"`
}

// ParseFormat parses a format name. An empty name selects JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatFromPath infers the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode reads a snapshot from r.
func Decode(r io.Reader, format Format) ([]*aggregator.Job, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snapshot Snapshot

	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &snapshot)
	case FormatYAML:
		err = yaml.NewDecoder(bytes.NewReader(data)).Decode(&snapshot)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err != nil {
		return nil, fmt.Errorf("parsing %s snapshot: %w", format, err)
	}

	if snapshot.Jobs == nil {
		return nil, ErrNoJobs
	}

	for _, job := range snapshot.Jobs {
		if job != nil {
			job.Report = nil
		}
	}

	return snapshot.Jobs, nil
}
