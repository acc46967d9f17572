package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/knowledge-sync/internal/coordinator"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   [][2]int
	summary coordinator.Summary
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, pageSize, maxItems int) (coordinator.Summary, error) {
	f.mu.Lock()
	f.calls = append(f.calls, [2]int{pageSize, maxItems})
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return f.summary, ctx.Err()
		}
	}
	return f.summary, f.err
}

func newTestServer(t *testing.T, runner Runner, mutate func(*Options)) *Server {
	t.Helper()
	opts := Options{PageSize: 10, MaxItems: 100, Registerer: prometheus.NewRegistry()}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := NewServer(runner, opts)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_TriggerRunReturnsSummary(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{summary: coordinator.Summary{RunID: "run-1", Examined: 20, Created: 15, Skipped: 5, StopReason: coordinator.StopMaxItems}}
	s := newTestServer(t, runner, nil)

	rec := do(t, s, http.MethodPost, "/v1/runs", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var got RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, runner.summary.RunID, got.Summary.RunID)
	assert.Equal(t, 15, got.Summary.Created)
	assert.Empty(t, got.Error)
	assert.Equal(t, [][2]int{{10, 100}}, runner.calls)

	latest := do(t, s, http.MethodGet, "/v1/runs/latest", nil, nil)
	require.Equal(t, http.StatusOK, latest.Code)
	assert.Contains(t, latest.Body.String(), `"run_id":"run-1"`)
}

func TestServer_TriggerRunBodyOverrides(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	s := newTestServer(t, runner, nil)

	rec := do(t, s, http.MethodPost, "/v1/runs", []byte(`{"page_size":5,"max_items":0}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [][2]int{{5, 0}}, runner.calls)
}

func TestServer_TriggerRunRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "invalid json", body: "{invalid", want: "invalid JSON"},
		{name: "page size", body: `{"page_size":0}`, want: "page_size"},
		{name: "max items", body: `{"max_items":-2}`, want: "max_items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			runner := &fakeRunner{}
			s := newTestServer(t, runner, nil)
			rec := do(t, s, http.MethodPost, "/v1/runs", []byte(tt.body), nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Empty(t, runner.calls)
		})
	}
}

func TestServer_TriggerRunAbortIsBadGateway(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		summary: coordinator.Summary{RunID: "run-2", StopReason: coordinator.StopAborted},
		err:     coordinator.ErrIndexLoad,
	}
	s := newTestServer(t, runner, nil)

	rec := do(t, s, http.MethodPost, "/v1/runs", nil, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), coordinator.ErrIndexLoad.Error())

	latest := do(t, s, http.MethodGet, "/v1/runs/latest", nil, nil)
	require.Equal(t, http.StatusOK, latest.Code)
	assert.Contains(t, latest.Body.String(), `"stop_reason":"aborted"`)
}

func TestServer_OverlappingRunIsRejected(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{started: make(chan struct{}), release: make(chan struct{})}
	s := newTestServer(t, runner, nil)

	done := make(chan int, 1)
	go func() {
		done <- do(t, s, http.MethodPost, "/v1/runs", nil, nil).Code
	}()

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never started")
	}

	second := do(t, s, http.MethodPost, "/v1/runs", nil, nil)
	assert.Equal(t, http.StatusConflict, second.Code)

	ready := do(t, s, http.MethodGet, "/readyz", nil, nil)
	assert.Contains(t, ready.Body.String(), `"run_in_progress":true`)

	close(runner.release)
	assert.Equal(t, http.StatusOK, <-done)

	ready = do(t, s, http.MethodGet, "/readyz", nil, nil)
	assert.Contains(t, ready.Body.String(), `"run_in_progress":false`)
}

func TestServer_ReadinessDoesNotBlockTriggers(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeRunner{}, nil)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					do(t, s, http.MethodGet, "/readyz", nil, nil)
				}
			}
		}()
	}

	for i := range 50 {
		rec := do(t, s, http.MethodPost, "/v1/runs", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, "trigger %d was rejected while idle", i)
	}
	close(stop)
	wg.Wait()
}

func TestServer_LatestBeforeAnyRun(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeRunner{}, nil)
	rec := do(t, s, http.MethodGet, "/v1/runs/latest", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_APIKeyProtectsRunRoutes(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	s := newTestServer(t, runner, func(o *Options) { o.APIKey = "secret" })

	rec := do(t, s, http.MethodPost, "/v1/runs", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(t, s, http.MethodPost, "/v1/runs", nil, map[string]string{"X-API-Key": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, runner.calls)

	rec = do(t, s, http.MethodPost, "/v1/runs", nil, map[string]string{"X-API-Key": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)

	health := do(t, s, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, health.Code, "probes stay open")
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := newTestServer(t, &fakeRunner{}, func(o *Options) { o.Registerer = reg })

	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", nil, nil).Code)
	rec := do(t, s, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `knowledgesync_http_requests_total{code="200",method="GET",route="/healthz"} 1`)
}

func TestServer_RequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeRunner{}, nil)
	rec := do(t, s, http.MethodGet, "/healthz", nil, map[string]string{"X-Request-ID": "abc"})
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestNewServerRequiresRunner(t *testing.T) {
	t.Parallel()

	_, err := NewServer(nil, Options{})
	require.Error(t, err)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, panicRunner{}, nil)
	rec := do(t, s, http.MethodPost, "/v1/runs", nil, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	// The run flag is cleared after a panic.
	rec = do(t, s, http.MethodGet, "/readyz", nil, nil)
	assert.Contains(t, rec.Body.String(), `"run_in_progress":false`)
}

type panicRunner struct{}

func (panicRunner) Run(context.Context, int, int) (coordinator.Summary, error) {
	panic(errors.New("boom"))
}
