package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethpandaops/resultsaggregator/pkg/aggregator"
	"github.com/ethpandaops/resultsaggregator/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() *config.Config {
	return &config.Config{
		Aggregation: config.AggregationConfig{
			StaleAfter: time.Hour,
			SortBy:     "name",
		},
		API: config.APIConfig{
			Server: config.APIServerConfig{
				Listen:      "127.0.0.1:0",
				MaxBodySize: "1MB",
			},
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*server, http.Handler) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(bytes.NewBuffer(nil))

	srv := newServer(log, cfg)

	maxBodyBytes, err := cfg.API.Server.MaxBodyBytes()
	require.NoError(t, err)

	srv.maxBodyBytes = maxBodyBytes

	t.Cleanup(func() { _ = srv.Stop() })

	return srv, srv.buildRouter()
}

func doJSON(t *testing.T, handler http.Handler, path string, body any, auth func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	if auth != nil {
		auth(req)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func TestHandleHealth(t *testing.T) {
	_, handler := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleAggregate(t *testing.T) {
	_, handler := newTestServer(t, testConfig())

	body := aggregateRequest{
		SortBy: "status",
		Jobs: []*aggregator.Job{
			{Name: "ok", Group: "g", Results: &aggregator.Results{Pass: 4, Total: 4}},
			{Name: "broken", Group: "g", Results: &aggregator.Results{
				Pass: 1, Fail: 1, Total: 2, CurrentResult: "FAILURE",
			}},
			{Name: "missing", Group: "h"},
		},
	}

	rec := doJSON(t, handler, "/api/v1/aggregate", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp aggregateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.ID)
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.Grouped)
	assert.Equal(t, 1, resp.Result.SuccessJobs)
	assert.Equal(t, 1, resp.Result.FailedJobs)
	require.Len(t, resp.Result.Groups, 2)

	group := resp.Result.Groups[0]
	assert.Equal(t, "g", group.Name)
	assert.Equal(t, aggregator.StatusFailure, group.Report.Status)
	assert.Equal(t, float64(50), group.Report.Percentage)
	require.Len(t, group.Jobs, 2)
	assert.Equal(t, "broken", group.Jobs[0].Name)
	assert.Zero(t, group.Jobs[0].Report.Pass)
}

func TestHandleAggregate_BadRequests(t *testing.T) {
	_, handler := newTestServer(t, testConfig())

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{name: "missing jobs", body: map[string]any{}, status: http.StatusBadRequest},
		{name: "null job", body: map[string]any{"jobs": []any{nil}}, status: http.StatusBadRequest},
		{
			name:   "bad stale_after",
			body:   map[string]any{"jobs": []any{}, "stale_after": "soon"},
			status: http.StatusBadRequest,
		},
		{name: "not an object", body: "jobs", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, "/api/v1/aggregate", tt.body, nil)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestHandleAggregate_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.API.Server.MaxBodySize = "64b"

	_, handler := newTestServer(t, cfg)

	jobs := make([]*aggregator.Job, 0, 10)
	for range 10 {
		jobs = append(jobs, &aggregator.Job{Name: "a-rather-long-job-name"})
	}

	rec := doJSON(t, handler, "/api/v1/aggregate", aggregateRequest{Jobs: jobs}, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleAggregateBatch(t *testing.T) {
	_, handler := newTestServer(t, testConfig())

	body := batchRequest{
		Snapshots: []aggregateRequest{
			{Jobs: []*aggregator.Job{{Name: "a", Results: &aggregator.Results{Pass: 1, Total: 1}}}},
			{Jobs: []*aggregator.Job{
				{Name: "b", Results: &aggregator.Results{CurrentResult: "ABORTED"}},
				{Name: "c", Results: &aggregator.Results{Building: true}},
			}},
		},
	}

	rec := doJSON(t, handler, "/api/v1/aggregate/batch", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)

	assert.Equal(t, 1, resp.Results[0].Result.SuccessJobs)
	assert.Equal(t, 1, resp.Results[1].Result.AbortedJobs)
	assert.Equal(t, 1, resp.Results[1].Result.RunningJobs)
	assert.NotEqual(t, resp.Results[0].ID, resp.Results[1].ID)
}

func TestHandleAggregateBatch_Errors(t *testing.T) {
	_, handler := newTestServer(t, testConfig())

	rec := doJSON(t, handler, "/api/v1/aggregate/batch", batchRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, "/api/v1/aggregate/batch", map[string]any{
		"snapshots": []any{
			map[string]any{"jobs": []any{}},
			map[string]any{},
		},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "snapshot 1")
}

func TestServerOptions(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	opts, err := srv.options(&aggregateRequest{})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, opts.StaleAfter)
	assert.Equal(t, aggregator.SortByName, opts.SortBy)

	opts, err = srv.options(&aggregateRequest{SortBy: "fail", StaleAfter: "30m"})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, opts.StaleAfter)
	assert.Equal(t, aggregator.SortByFail, opts.SortBy)

	_, err = srv.options(&aggregateRequest{StaleAfter: "-1h"})
	require.Error(t, err)
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.API.Auth.Basic = config.BasicAuthConfig{
		Enabled: true,
		Users:   []config.BasicAuthUser{{Username: "ci", PasswordHash: string(hash)}},
	}

	_, handler := newTestServer(t, cfg)

	body := aggregateRequest{Jobs: []*aggregator.Job{}}

	tests := []struct {
		name   string
		auth   func(*http.Request)
		status int
	}{
		{name: "no credentials", auth: nil, status: http.StatusUnauthorized},
		{
			name:   "wrong password",
			auth:   func(r *http.Request) { r.SetBasicAuth("ci", "nope") },
			status: http.StatusUnauthorized,
		},
		{
			name:   "unknown user",
			auth:   func(r *http.Request) { r.SetBasicAuth("other", "secret") },
			status: http.StatusUnauthorized,
		},
		{
			name:   "valid credentials",
			auth:   func(r *http.Request) { r.SetBasicAuth("ci", "secret") },
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, "/api/v1/aggregate", body, tt.auth)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	// Health stays public.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.API.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}

	_, handler := newTestServer(t, cfg)

	body := aggregateRequest{Jobs: []*aggregator.Job{}}

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, doJSON(t, handler, "/api/v1/aggregate", body, nil).Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterMap_Evict(t *testing.T) {
	rl := newLimiterSet(10)
	rl.forClient("10.0.0.1")
	rl.forClient("10.0.0.2")

	rl.evict(time.Now().Add(rateLimitEntryTTL + time.Minute))
	assert.Empty(t, rl.limiters)
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name     string
		xff      string
		remote   string
		expected string
	}{
		{name: "remote addr", remote: "192.0.2.1:1234", expected: "192.0.2.1"},
		{name: "forwarded chain", xff: "203.0.113.5, 10.0.0.1", remote: "10.0.0.1:80", expected: "203.0.113.5"},
		{name: "no port", remote: "192.0.2.9", expected: "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote

			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}

			assert.Equal(t, tt.expected, extractIP(req))
		})
	}
}

func TestServer_StartStop(t *testing.T) {
	log := logrus.New()
	log.SetOutput(bytes.NewBuffer(nil))

	srv := NewServer(log, testConfig())
	require.NoError(t, srv.Start(t.Context()))
	require.NoError(t, srv.Stop())
}

func TestServer_StopTwice(t *testing.T) {
	log := logrus.New()
	log.SetOutput(bytes.NewBuffer(nil))

	srv := NewServer(log, testConfig())
	require.NoError(t, srv.Start(t.Context()))
	require.NoError(t, srv.Stop())

	assert.NotPanics(t, func() {
		assert.NoError(t, srv.Stop())
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		origin      string
		allowOrigin string
		credentials string
	}{
		{
			name:        "no origins configured",
			origin:      "https://evil.example",
			allowOrigin: "*",
		},
		{
			name:        "wildcard",
			origins:     []string{"*"},
			origin:      "https://evil.example",
			allowOrigin: "*",
		},
		{
			name:        "listed origin",
			origins:     []string{"https://ci.example"},
			origin:      "https://ci.example",
			allowOrigin: "https://ci.example",
			credentials: "true",
		},
		{
			name:    "unlisted origin",
			origins: []string{"https://ci.example"},
			origin:  "https://evil.example",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.API.Server.CORSOrigins = tt.origins

			_, handler := newTestServer(t, cfg)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			req.Header.Set("Origin", tt.origin)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.allowOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.credentials, rec.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}
