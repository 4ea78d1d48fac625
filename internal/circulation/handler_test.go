package circulation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendingregistry/internal/catalog"
	"lendingregistry/internal/journal"
	"lendingregistry/internal/notify/notifytest"
)

func newTestServer(t *testing.T) (*httptest.Server, *notifytest.Recorder) {
	t.Helper()
	notifier := &notifytest.Recorder{}
	srv := httptest.NewServer(NewHandler(NewRegistry(notifier)).Routes())
	t.Cleanup(srv.Close)
	return srv, notifier
}

func post(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := srv.Client().Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandlerBorrowFlow(t *testing.T) {
	srv, notifier := newTestServer(t)

	resp := post(t, srv, "/items", `{"id":"B001","title":"Clean Code","author":"Robert Martin"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created catalog.Item
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.True(t, created.Available)

	resp = post(t, srv, "/members", `{"id":"M001","name":"Alice"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = post(t, srv, "/borrow", `{"member_id":"M001","item_id":"B001"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "You have borrowed: Clean Code", notifier.Last().Message)

	resp = get(t, srv, "/items/B001")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var item catalog.Item
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&item))
	assert.False(t, item.Available)

	resp = get(t, srv, "/members/M001")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var member struct {
		ID        string   `json:"id"`
		MaxItems  int      `json:"max_items"`
		HeldItems []string `json:"held_items"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&member))
	assert.Equal(t, 3, member.MaxItems)
	assert.Equal(t, []string{"B001"}, member.HeldItems)

	resp = get(t, srv, "/stats")
	var stats map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 0, stats["available"])

	resp = post(t, srv, "/return", `{"member_id":"M001","item_id":"B001"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "You have returned: Clean Code", notifier.Last().Message)

	resp = get(t, srv, "/items/B001/history")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events []journal.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	require.Len(t, events, 3)
	assert.Equal(t, EventItemReturned, events[2].EventType)

	resp = get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandlerErrorStatuses(t *testing.T) {
	srv, _ := newTestServer(t)
	require.Equal(t, http.StatusCreated, post(t, srv, "/items", `{"id":"B001","title":"Clean Code"}`).StatusCode)
	require.Equal(t, http.StatusCreated, post(t, srv, "/members", `{"id":"M001","name":"Alice","max_items":1}`).StatusCode)
	require.Equal(t, http.StatusCreated, post(t, srv, "/members", `{"id":"M002","name":"Bob"}`).StatusCode)
	require.Equal(t, http.StatusOK, post(t, srv, "/borrow", `{"member_id":"M001","item_id":"B001"}`).StatusCode)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"malformed json", "/borrow", `{`, http.StatusBadRequest},
		{"unknown member", "/borrow", `{"member_id":"M404","item_id":"B001"}`, http.StatusNotFound},
		{"item unavailable", "/borrow", `{"member_id":"M002","item_id":"B001"}`, http.StatusConflict},
		{"not borrowed by member", "/return", `{"member_id":"M002","item_id":"B001"}`, http.StatusConflict},
		{"duplicate item", "/items", `{"id":"B001","title":"Again"}`, http.StatusConflict},
		{"empty member id", "/members", `{"id":"","name":"Nobody"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, post(t, srv, tt.path, tt.body).StatusCode)
		})
	}

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/items/B404").StatusCode)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/members/M404").StatusCode)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/items/B404/history").StatusCode)
}

func TestHandlerBorrowLimit(t *testing.T) {
	reg := NewRegistry(nil)
	ctx := context.Background()
	_, err := reg.RegisterMember(ctx, "M001", "Alice", 1)
	require.NoError(t, err)
	for _, id := range []string{"B001", "B002"} {
		_, err := reg.RegisterItem(ctx, id, "Title "+id, "Author")
		require.NoError(t, err)
	}
	require.NoError(t, reg.Borrow(ctx, "M001", "B001"))

	srv := httptest.NewServer(NewHandler(reg).Routes())
	defer srv.Close()

	resp := post(t, srv, "/borrow", `{"member_id":"M001","item_id":"B002"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = get(t, srv, "/items")
	var items []catalog.Item
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 2)
	assert.True(t, items[1].Available)
}

func TestHandlerEventsPagesThroughJournal(t *testing.T) {
	srv, _ := newTestServer(t)
	require.Equal(t, http.StatusCreated, post(t, srv, "/items", `{"id":"B001","title":"Clean Code"}`).StatusCode)
	require.Equal(t, http.StatusCreated, post(t, srv, "/members", `{"id":"M001","name":"Alice"}`).StatusCode)
	require.Equal(t, http.StatusOK, post(t, srv, "/borrow", `{"member_id":"M001","item_id":"B001"}`).StatusCode)

	resp := get(t, srv, "/events?batch=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first []journal.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&first))
	require.Len(t, first, 2)
	assert.Equal(t, EventItemRegistered, first[0].EventType)
	assert.Equal(t, EventMemberRegistered, first[1].EventType)

	resp = get(t, srv, "/events?from=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rest []journal.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rest))
	require.Len(t, rest, 1)
	assert.Equal(t, EventItemBorrowed, rest[0].EventType)
	assert.Equal(t, int64(3), rest[0].Sequence)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/events?from=-1").StatusCode)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/events?batch=0").StatusCode)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/events?from=abc").StatusCode)
}

type failingWriter struct {
	header http.Header
	status int
}

func (w *failingWriter) Header() http.Header {
	if w.header == nil {
		w.header = http.Header{}
	}
	return w.header
}

func (w *failingWriter) WriteHeader(status int) { w.status = status }

func (w *failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestHandlerLogsEncodeFailures(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := NewHandler(NewRegistry(nil), WithHandlerLogger(log))

	w := &failingWriter{}
	h.Routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusOK, w.status)
	assert.Contains(t, logs.String(), "failed to encode response")
	assert.Contains(t, logs.String(), "connection reset")
	assert.Contains(t, logs.String(), "path=/stats")
}
