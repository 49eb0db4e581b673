package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifierSendDigest(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, server.Client())

	result := notifier.SendDigest(context.Background(), sampleDigest())

	assert.True(t, result.Success)
	assert.Equal(t, "webhook", result.Channel)
	assert.Equal(t, "arxiv_digest", gotBody["type"])
	assert.Equal(t, float64(2), gotBody["count"])

	papers, ok := gotBody["papers"].([]any)
	require.True(t, ok)
	require.Len(t, papers, 2)
	first, ok := papers[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Sparse Attention at Scale", first["title"])
	assert.Equal(t, float64(85), first["rating"])
	assert.Equal(t, "https://arxiv.org/abs/2501.00001", first["arxiv_url"])
	assert.Equal(t, "2025-01-15", first["publish_date"])
}

func TestWebhookNotifierSendStatus(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, server.Client())

	result := notifier.SendStatus(context.Background(), "Filter errors: 1/3 batches failed")

	assert.True(t, result.Success)
	assert.Equal(t, "arxiv_status", gotBody["type"])
	assert.Equal(t, "Filter errors: 1/3 batches failed", gotBody["message"])
}

func TestWebhookNotifierNoURL(t *testing.T) {
	notifier := NewWebhookNotifier("", nil)

	result := notifier.SendDigest(context.Background(), sampleDigest())

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "no webhook URL")
}

func TestWebhookNotifierServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, server.Client())

	result := notifier.SendStatus(context.Background(), "status")

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "webhook returned")
}
