package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key", "gemini-2.5-flash")

	require.NotNil(t, client)
	assert.Equal(t, "test-api-key", client.apiKey)
	assert.Equal(t, "gemini-2.5-flash", client.Model())
	assert.NotNil(t, client.httpClient)
	assert.Contains(t, client.baseURL, "generativelanguage.googleapis.com")
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"), "key must not leak into the URL")

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "summarize this", req.Contents[0].Parts[0].Text)

		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Hello "},{"text":"world"}]}}]}`))
	}))
	defer server.Close()

	client := NewClient("test-key", "test-model").WithBaseURL(server.URL + "/")
	text, err := client.Generate(context.Background(), "summarize this")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
}

func TestGenerateStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("overloaded"))
	}))
	defer server.Close()

	_, err := NewClient("k", "m").WithBaseURL(server.URL).Generate(context.Background(), "p")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.True(t, strings.Contains(err.Error(), "503"))
}

func TestGenerateEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	_, err := NewClient("k", "m").WithBaseURL(server.URL).Generate(context.Background(), "p")
	assert.EqualError(t, err, "no content in response")
}
