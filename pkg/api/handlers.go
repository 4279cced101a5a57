package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethpandaops/resultsaggregator/pkg/aggregator"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// aggregateRequest is a job snapshot with optional per-request options.
type aggregateRequest struct {
	Jobs       []*aggregator.Job `json:"jobs"`
	SortBy     string            `json:"sort_by,omitempty"`
	StaleAfter string            `json:"stale_after,omitempty"`
}

type aggregateResponse struct {
	ID     string                 `json:"id"`
	Result *aggregator.Aggregated `json:"result"`
}

type batchRequest struct {
	Snapshots []aggregateRequest `json:"snapshots"`
}

type batchResponse struct {
	Results []aggregateResponse `json:"results"`
}

// options resolves the aggregator options of a request on top of the
// server defaults.
func (s *server) options(req *aggregateRequest) (aggregator.Options, error) {
	opts := s.defaults

	if req.SortBy != "" {
		opts.SortBy = aggregator.ParseSortKey(req.SortBy)
	}

	if req.StaleAfter != "" {
		d, err := time.ParseDuration(req.StaleAfter)
		if err != nil {
			return opts, fmt.Errorf("parsing stale_after: %w", err)
		}

		if d < 0 {
			return opts, errors.New("stale_after must not be negative")
		}

		opts.StaleAfter = d
	}

	return opts, nil
}

// aggregate runs one aggregation and tags it with a fresh ID.
func (s *server) aggregate(req *aggregateRequest, requestID string) (*aggregateResponse, error) {
	opts, err := s.options(req)
	if err != nil {
		return nil, err
	}

	for _, job := range req.Jobs {
		if job != nil {
			job.Report = nil
		}
	}

	result, err := s.aggregator.Aggregate(req.Jobs, opts)
	if err != nil {
		return nil, fmt.Errorf("aggregating jobs: %w", err)
	}

	id := uuid.NewString()

	s.log.WithField("aggregation_id", id).
		WithField("request_id", requestID).
		WithField("jobs", len(req.Jobs)).
		WithField("failed_jobs", result.FailedJobs+result.KeepFailJobs).
		Info("Aggregation completed")

	return &aggregateResponse{ID: id, Result: result}, nil
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		status := http.StatusBadRequest

		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
		}

		writeJSON(w, status, errorResponse{"invalid request body: " + err.Error()})

		return false
	}

	return true
}

// handleAggregate aggregates a single job snapshot.
func (s *server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req aggregateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := s.aggregate(&req, chimw.GetReqID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleAggregateBatch aggregates independent snapshots concurrently. The
// whole batch fails if any snapshot is invalid.
func (s *server) handleAggregateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if len(req.Snapshots) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{"no snapshots in batch"})

		return
	}

	requestID := chimw.GetReqID(r.Context())
	results := make([]aggregateResponse, len(req.Snapshots))

	g, gCtx := errgroup.WithContext(r.Context())

	for i := range req.Snapshots {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			resp, err := s.aggregate(&req.Snapshots[i], requestID)
			if err != nil {
				return fmt.Errorf("snapshot %d: %w", i, err)
			}

			results[i] = *resp

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, batchResponse{Results: results})
}
