package delivery

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pep299/econ-news-digest/internal/model"
)

func writeReport(t *testing.T) model.Report {
	t.Helper()
	path := filepath.Join(t.TempDir(), "economic-report-2024-05-01.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.3 ANALYSIS"), 0o644))
	return model.Report{
		Path:         path,
		Filename:     "economic-report-2024-05-01.pdf",
		Date:         time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		Subject:      "[ECONOMIC REPORT] 2024-05-01",
		Body:         "Attached.",
		ArticleCount: 3,
	}
}

func TestResendDeliver(t *testing.T) {
	var got resendRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"id":"msg-123"}`))
	}))
	defer server.Close()

	resend := NewResend(ResendOptions{
		APIKey:   "re_key",
		Endpoint: server.URL,
		From:     "reports@example.com",
		To:       []string{"a@example.com", "b@example.com"},
		Retry:    RetryPolicy{Attempts: 3},
	}, zap.NewNop())

	receipt, err := resend.Deliver(context.Background(), writeReport(t))
	require.NoError(t, err)

	assert.Equal(t, model.Receipt{Target: "email", Reference: "msg-123"}, receipt)
	assert.Equal(t, "Bearer re_key", auth)
	assert.Equal(t, "reports@example.com", got.From)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, got.To)
	assert.Equal(t, "[ECONOMIC REPORT] 2024-05-01", got.Subject)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "economic-report-2024-05-01.pdf", got.Attachments[0].Filename)

	decoded, err := base64.StdEncoding.DecodeString(got.Attachments[0].Content)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 ANALYSIS", string(decoded))
}

func TestResendRetries(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int
		wantErr   bool
	}{
		{"recovers after server error", []int{500, 200}, 2, false},
		{"rate limit is retried", []int{429, 429, 200}, 3, false},
		{"gives up after attempts", []int{503, 503, 503, 200}, 3, true},
		{"client error is permanent", []int{422, 200}, 1, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var mu sync.Mutex
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				status := test.statuses[calls]
				calls++
				mu.Unlock()
				w.WriteHeader(status)
				w.Write([]byte(`{"id":"msg-1","message":"x"}`))
			}))
			defer server.Close()

			resend := NewResend(ResendOptions{Endpoint: server.URL, Retry: RetryPolicy{Attempts: 3}}, zap.NewNop())
			_, err := resend.Deliver(context.Background(), writeReport(t))

			if test.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, test.wantCalls, calls)
		})
	}
}

func TestResendMissingFile(t *testing.T) {
	resend := NewResend(ResendOptions{Endpoint: "http://127.0.0.1:0"}, zap.NewNop())
	_, err := resend.Deliver(context.Background(), model.Report{Path: filepath.Join(t.TempDir(), "gone.pdf")})
	assert.Error(t, err)
}

type fakeStore struct {
	mu          sync.Mutex
	objects     map[string][]byte
	contentType string
	public      []string
	putFailures int
}

func (s *fakeStore) Put(ctx context.Context, bucket, object, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putFailures > 0 {
		s.putFailures--
		return errors.New("503 backend error")
	}
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[bucket+"/"+object] = data
	s.contentType = contentType
	return nil
}

func (s *fakeStore) MakePublic(ctx context.Context, bucket, object string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.public = append(s.public, bucket+"/"+object)
	return nil
}

func TestGCSDeliver(t *testing.T) {
	store := &fakeStore{putFailures: 1}
	gcs := NewGCS(store, GCSOptions{Bucket: "reports-bucket", Folder: "daily", Retry: RetryPolicy{Attempts: 2}}, zap.NewNop())

	receipt, err := gcs.Deliver(context.Background(), writeReport(t))
	require.NoError(t, err)

	assert.Equal(t, "gcs", receipt.Target)
	assert.Equal(t, "gs://reports-bucket/daily/economic-report-2024-05-01.pdf", receipt.Reference)
	assert.Equal(t, "%PDF-1.3 ANALYSIS", string(store.objects["reports-bucket/daily/economic-report-2024-05-01.pdf"]))
	assert.Equal(t, "application/pdf", store.contentType)
	assert.Empty(t, store.public)
}

func TestGCSDeliverPublic(t *testing.T) {
	store := &fakeStore{}
	gcs := NewGCS(store, GCSOptions{Bucket: "b", Folder: "reports", PublicRead: true}, zap.NewNop())

	receipt, err := gcs.Deliver(context.Background(), writeReport(t))
	require.NoError(t, err)

	assert.Equal(t, "https://storage.googleapis.com/b/reports/economic-report-2024-05-01.pdf", receipt.Reference)
	assert.Equal(t, []string{"b/reports/economic-report-2024-05-01.pdf"}, store.public)
}

func TestGCSDeliverGivesUp(t *testing.T) {
	store := &fakeStore{putFailures: 5}
	gcs := NewGCS(store, GCSOptions{Bucket: "b", Retry: RetryPolicy{Attempts: 2}}, zap.NewNop())

	_, err := gcs.Deliver(context.Background(), writeReport(t))
	assert.Error(t, err)
	assert.Equal(t, 3, store.putFailures)
}

type stubTransport struct {
	name  string
	err   error
	calls int
}

func (s *stubTransport) Name() string { return s.name }

func (s *stubTransport) Deliver(ctx context.Context, report model.Report) (model.Receipt, error) {
	s.calls++
	if s.err != nil {
		return model.Receipt{}, s.err
	}
	return model.Receipt{Target: s.name, Reference: s.name + "-ref"}, nil
}

type recordingNotifier struct {
	receipts []model.Receipt
	err      error
}

func (n *recordingNotifier) Notify(ctx context.Context, report model.Report, receipts []model.Receipt) error {
	n.receipts = receipts
	return n.err
}

func TestFanoutContinuesAfterFailure(t *testing.T) {
	failing := &stubTransport{name: "email", err: errors.New("smtp down")}
	upload := &stubTransport{name: "gcs"}
	notifier := &recordingNotifier{err: errors.New("slack down")}

	receipts, err := NewFanout([]Transport{failing, upload}, notifier, zap.NewNop(), nil).
		Deliver(context.Background(), writeReport(t))

	require.NoError(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, upload.calls)
	assert.Equal(t, []model.Receipt{{Target: "gcs", Reference: "gcs-ref"}}, receipts)
	assert.Equal(t, receipts, notifier.receipts)
}

func TestFanoutNothingDelivered(t *testing.T) {
	notifier := &recordingNotifier{}
	transports := []Transport{
		&stubTransport{name: "email", err: errors.New("a")},
		&stubTransport{name: "gcs", err: errors.New("b")},
	}

	receipts, err := NewFanout(transports, notifier, zap.NewNop(), nil).Deliver(context.Background(), writeReport(t))

	assert.Empty(t, receipts)
	assert.ErrorIs(t, err, ErrNothingDelivered)
	assert.Contains(t, err.Error(), "email: a")
	assert.Nil(t, notifier.receipts, "nothing to announce")
}
