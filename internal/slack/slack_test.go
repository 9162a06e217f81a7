package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pep299/econ-news-digest/internal/model"
)

var testReport = model.Report{Date: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), ArticleCount: 12}

func TestNotify(t *testing.T) {
	var got ChatPostMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("Expected path /chat.postMessage, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer xoxb-test" {
			t.Errorf("Expected bearer token, got '%s'", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient("xoxb-test", "#reports").WithBaseURL(server.URL + "/")
	receipts := []model.Receipt{
		{Target: "email", Reference: "msg-1"},
		{Target: "gcs", Reference: "gs://bucket/reports/r.pdf"},
	}

	if err := client.Notify(context.Background(), testReport, receipts); err != nil {
		t.Fatalf("Failed to notify: %v", err)
	}

	if got.Channel != "#reports" {
		t.Errorf("Expected channel '#reports', got '%s'", got.Channel)
	}
	for _, want := range []string{"2024-05-01", "12", "email: msg-1", "gcs: gs://bucket/reports/r.pdf"} {
		if !strings.Contains(got.Text, want) {
			t.Errorf("Expected message to contain '%s', got '%s'", want, got.Text)
		}
	}
}

func TestNotifyErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"http error", http.StatusInternalServerError, "", "status 500"},
		{"api error", http.StatusOK, `{"ok":false,"error":"channel_not_found"}`, "channel_not_found"},
		{"bad json", http.StatusOK, `not json`, "decoding response"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.status)
				w.Write([]byte(test.body))
			}))
			defer server.Close()

			err := NewClient("xoxb-test", "#reports").WithBaseURL(server.URL).Notify(context.Background(), testReport, nil)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Expected error containing '%s', got '%v'", test.wantErr, err)
			}
		})
	}
}

func TestFormatMessage(t *testing.T) {
	message := FormatMessage(testReport, nil)
	if strings.HasSuffix(message, "\n") {
		t.Error("Expected no trailing newline")
	}
	if !strings.Contains(message, "Articles analyzed: 12") {
		t.Errorf("Unexpected message: %s", message)
	}
}
