package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookChannelPostsJSON(t *testing.T) {
	received := make(chan webhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p webhookPayload
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received <- p
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	NewWebhookChannel(srv.URL, WithHTTPClient(srv.Client())).
		Notify(context.Background(), "M001", ReturnedMessage("Clean Code"))

	require.Len(t, received, 1)
	got := <-received
	assert.Equal(t, "M001", got.RecipientID)
	assert.Equal(t, "You have returned: Clean Code", got.Message)
}

func TestWebhookChannelLogsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	ch := NewWebhookChannel(srv.URL,
		WithHTTPClient(srv.Client()),
		WithWebhookLogger(slog.New(slog.NewTextHandler(&buf, nil))),
	)

	ch.Notify(context.Background(), "M001", "hello")

	assert.Contains(t, buf.String(), "webhook notification failed")
	assert.Contains(t, buf.String(), "unexpected status code: 502")
}

func TestWebhookChannelIgnoresCancelledCaller(t *testing.T) {
	var delivered atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Store(true)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewWebhookChannel(srv.URL, WithHTTPClient(srv.Client())).Notify(ctx, "M001", "hello")

	assert.True(t, delivered.Load())
}
