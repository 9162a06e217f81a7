package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pep299/econ-news-digest/internal/lock"
	"github.com/pep299/econ-news-digest/internal/metrics"
	"github.com/pep299/econ-news-digest/internal/model"
	"github.com/pep299/econ-news-digest/internal/pipeline"
)

const testTimeout = 5 * time.Second

// blockingFetcher holds the run in its fetch stage until released.
type blockingFetcher struct {
	entered chan struct{}
	release chan struct{}
}

func (f *blockingFetcher) FetchAll(ctx context.Context, keywords []string) []model.Article {
	f.entered <- struct{}{}
	<-f.release
	return []model.Article{{Title: "Alpha", URL: "https://x/a", Source: "S"}}
}

type echoSummarizer struct{}

func (echoSummarizer) Summarize(ctx context.Context, articles []model.Article) string { return "ok" }

type tempRenderer struct{ dir string }

func (r tempRenderer) Render(ctx context.Context, summary string, articles []model.Article, date time.Time) (model.Report, error) {
	path := filepath.Join(r.dir, "report.pdf")
	return model.Report{Path: path}, os.WriteFile(path, []byte(summary), 0o644)
}

type nopDeliverer struct{}

func (nopDeliverer) Deliver(ctx context.Context, report model.Report) ([]model.Receipt, error) {
	return []model.Receipt{{Target: "nop"}}, nil
}

type fixedSchedule struct{ next time.Time }

func (s fixedSchedule) Next() time.Time { return s.next }
func (s fixedSchedule) Times() []string { return []string{"01:00", "16:00"} }

type testEnv struct {
	server  *httptest.Server
	fetcher *blockingFetcher
	runner  *pipeline.Runner
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	registry := prometheus.NewRegistry()
	fetcher := &blockingFetcher{entered: make(chan struct{}, 1), release: make(chan struct{})}
	runner := pipeline.NewRunner(pipeline.Deps{
		Guard:      lock.NewLocal(),
		Fetcher:    fetcher,
		Summarizer: echoSummarizer{},
		Renderer:   tempRenderer{dir: t.TempDir()},
		Deliverer:  nopDeliverer{},
	}, nil, zap.NewNop(), metrics.New(registry))

	next := time.Date(2030, 1, 2, 1, 0, 0, 0, time.UTC)
	srv := NewServer(runner, fixedSchedule{next: next}, Options{TriggerToken: token, Gatherer: registry, Version: "test"}, zap.NewNop())
	server := httptest.NewServer(srv.SetupRoutes())

	t.Cleanup(func() {
		select {
		case <-fetcher.release:
		default:
			close(fetcher.release)
		}
		runner.Wait()
		server.Close()
	})
	return &testEnv{server: server, fetcher: fetcher, runner: runner}
}

func (e *testEnv) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-e.fetcher.entered:
	case <-time.After(testTimeout):
		t.Fatal("run did not start")
	}
}

func get(t *testing.T, url string, header ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	client := &http.Client{Timeout: testTimeout}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, body.String()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := get(t, env.server.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestReportAcceptedAndHealthStaysResponsive(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := get(t, env.server.URL+"/report")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var parsed Response
	require.NoError(t, json.Unmarshal([]byte(body), &parsed))
	assert.Equal(t, "accepted", parsed.Status)

	env.waitEntered(t)

	resp, _ = get(t, env.server.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health answers while a run is active")

	resp, _ = get(t, env.server.URL+"/report")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode, "second trigger is still accepted")

	resp, _ = get(t, env.server.URL+"/report?wait=true")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "synchronous trigger reports the rejection")

	close(env.fetcher.release)
	env.runner.Wait()
	assert.Equal(t, pipeline.OutcomeCompleted, env.runner.Status().LastOutcome)
}

func TestReportWait(t *testing.T) {
	env := newTestEnv(t, "")
	close(env.fetcher.release)

	resp, body := get(t, env.server.URL+"/report?wait=true")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed Response
	require.NoError(t, json.Unmarshal([]byte(body), &parsed))
	assert.Equal(t, string(pipeline.OutcomeCompleted), parsed.Status)
}

func TestReportRequiresToken(t *testing.T) {
	env := newTestEnv(t, "s3cret")

	resp, _ := get(t, env.server.URL+"/report")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = get(t, env.server.URL+"/report", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = get(t, env.server.URL+"/report", "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	env.waitEntered(t)

	resp, _ = get(t, env.server.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health is never protected")
}

func TestIndex(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := get(t, env.server.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, `<a href="/report">`)
	assert.Contains(t, body, "01:00, 16:00")
	assert.Contains(t, body, "2030-01-02 01:00")
	assert.Contains(t, body, "Run in progress: no")
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, "")
	close(env.fetcher.release)
	get(t, env.server.URL+"/report?wait=true")

	resp, body := get(t, env.server.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `econ_digest_runs_total{outcome="completed"} 1`)
}

func TestUnknownMethod(t *testing.T) {
	env := newTestEnv(t, "")

	req, err := http.NewRequest(http.MethodDelete, env.server.URL+"/health", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
