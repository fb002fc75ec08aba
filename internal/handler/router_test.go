package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobiledjay/backend/internal/metrics"
	middlewarePkg "github.com/mobiledjay/backend/internal/middleware"
	"github.com/mobiledjay/backend/internal/model/catalogue"
	"github.com/mobiledjay/backend/internal/model/djay"
	"github.com/mobiledjay/backend/internal/service/coordination"
	"github.com/mobiledjay/backend/internal/service/rotation"
	"github.com/mobiledjay/backend/internal/service/visibility"
)

type fakeDeliverer struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeDeliverer) Deliver(_ context.Context, _, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return "", nil
}

func setupRouter(limiter *middlewarePkg.RateLimiter) (http.Handler, *coordination.Store, *fakeDeliverer) {
	store := coordination.NewStore()
	deliverer := &fakeDeliverer{}
	router := NewRouter(Dependencies{
		Store:     store,
		Songs:     catalogue.NewMemoryStore(catalogue.SeedSongs(), catalogue.SongFields),
		Karaoke:   catalogue.NewMemoryStore(catalogue.SeedKaraoke(), catalogue.KaraokeFields),
		Deliverer: deliverer,
		Limiter:   limiter,
		Metrics:   metrics.Handler(metrics.NewRegistry(store)),
	})
	return router, store, deliverer
}

func call(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestKaraokeRequestToReplyFlow(t *testing.T) {
	r, store, deliverer := setupRouter(nil)
	ctx := context.Background()

	resp := call(r, http.MethodPost, "/api/requests/karaoke", map[string]any{"customerName": "Sam", "karaokeId": 6})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.Equal(t, []string{`Karaoke Request from Sam: "Wonderwall" by Oasis (Easy)`}, deliverer.texts)

	var dashboard visibility.DashboardView
	require.NoError(t, json.Unmarshal(call(r, http.MethodGet, "/api/dj/dashboard-data", nil).Body.Bytes(), &dashboard))
	require.Len(t, dashboard.Requests, 1)
	assert.Equal(t, djay.KindKaraoke, dashboard.Requests[0].Kind)

	resp = call(r, http.MethodPost, "/api/dj/reply", map[string]any{
		"customerName": "Sam",
		"replyMessage": "Coming up next!",
		"originalType": "karaoke",
		"originalId":   "1",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var replies []djay.Reply
	require.NoError(t, json.Unmarshal(call(r, http.MethodGet, "/api/customer/replies/sam", nil).Body.Bytes(), &replies))
	require.Len(t, replies, 1)
	assert.Equal(t, "Coming up next!", replies[0].Body)

	feed := visibility.DisplayFeed(ctx, store, false)
	require.Len(t, feed, 1)
	assert.True(t, feed[0].IsReply)
	assert.Equal(t, 7*time.Second, rotation.TimingFor(time.Second).DwellFor(feed[0]))
}

func TestSubmissionsAreRateLimited(t *testing.T) {
	limiter := middlewarePkg.NewRateLimiter(0.001, 1)
	defer limiter.Stop()
	r, _, _ := setupRouter(limiter)

	body := map[string]any{"customerName": "Ana", "message": "hi"}
	assert.Equal(t, http.StatusCreated, call(r, http.MethodPost, "/api/messages", body).Code)

	resp := call(r, http.MethodPost, "/api/messages", body)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))

	// Reads are never throttled.
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/dj/replies", nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r, store, _ := setupRouter(nil)
	_, _ = store.CreateMessage(context.Background(), "Ana", "hi", false)

	assert.JSONEq(t, `{"status":"ok"}`, call(r, http.MethodGet, "/healthz", nil).Body.String())

	resp := call(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, strings.Contains(resp.Body.String(), "djay_messages_pending_public 1"))
}

func TestSearchThroughRouter(t *testing.T) {
	r, _, _ := setupRouter(nil)

	var entries []catalogue.Entry
	require.NoError(t, json.Unmarshal(call(r, http.MethodGet, "/api/search/songs?q=sh", nil).Body.Bytes(), &entries))
	assert.Empty(t, entries)

	require.NoError(t, json.Unmarshal(call(r, http.MethodGet, "/api/search/songs?q=Sha", nil).Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Shape of You", entries[0].Title)
}
