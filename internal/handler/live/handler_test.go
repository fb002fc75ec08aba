package live

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobiledjay/backend/internal/model/djay"
	"github.com/mobiledjay/backend/internal/service/coordination"
	"github.com/mobiledjay/backend/internal/service/rotation"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func setupServer(t *testing.T) (*httptest.Server, *coordination.Store) {
	t.Helper()
	store := coordination.NewStore()
	handler := New(store, Config{
		DisplayInterval:   20 * time.Millisecond,
		DashboardInterval: 20 * time.Millisecond,
		BellInterval:      20 * time.Millisecond,
		Timing:            rotation.TimingFor(20 * time.Millisecond),
	})

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// next returns the next frame of the given type, skipping others.
func next(t *testing.T, conn *websocket.Conn, msgType string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == msgType {
			return f
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
}

func TestDisplayRotatesPublicMessages(t *testing.T) {
	srv, store := setupServer(t)
	ctx := context.Background()
	_, _ = store.CreateMessage(ctx, "Ana", "private note", true)
	first, _ := store.CreateMessage(ctx, "Ben", "hello room", false)
	_, reply, _ := store.CreateReply(ctx, "Sam", "Coming up next!", "karaoke", "1")

	conn := dial(t, srv, "/ws/display")
	next(t, conn, "waiting")

	var shown struct {
		Message djay.Message `json:"message"`
		Heading string       `json:"heading"`
		DwellMs int64        `json:"dwellMs"`
	}
	require.NoError(t, json.Unmarshal(next(t, conn, "show").Data, &shown))
	assert.Equal(t, first.ID, shown.Message.ID)
	assert.Equal(t, "Ben", shown.Heading)
	assert.EqualValues(t, 100, shown.DwellMs)

	next(t, conn, "hide")
	require.NoError(t, json.Unmarshal(next(t, conn, "show").Data, &shown))
	assert.Equal(t, reply.ID, shown.Message.ID)
	assert.Equal(t, "DJ Reply to Sam", shown.Heading)
	assert.EqualValues(t, 140, shown.DwellMs)

	next(t, conn, "hide")
	next(t, conn, "waiting")

	require.Eventually(t, func() bool {
		return store.Counts().PendingPublicMessage == 0
	}, time.Second, 10*time.Millisecond)
}

func TestDisplaySkip(t *testing.T) {
	srv, store := setupServer(t)
	_, _ = store.CreateMessage(context.Background(), "Ana", "one", false)

	conn := dial(t, srv, "/ws/display")
	next(t, conn, "show")
	send(t, conn, `{"type":"skip"}`)
	next(t, conn, "hide")
}

func TestDashboardPushesOnChangeAndRefresh(t *testing.T) {
	srv, store := setupServer(t)

	conn := dial(t, srv, "/ws/dashboard")
	next(t, conn, "dashboard")

	_, err := store.CreateRequest(context.Background(), djay.KindKaraoke, "Sam", djay.SongRef{ID: 6, Title: "Wonderwall", Artist: "Oasis", Difficulty: "Easy"}, "")
	require.NoError(t, err)

	var view struct {
		Requests []djay.Request `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(next(t, conn, "dashboard").Data, &view))
	require.Len(t, view.Requests, 1)
	assert.Equal(t, djay.KindKaraoke, view.Requests[0].Kind)

	send(t, conn, `{"type":"refresh"}`)
	next(t, conn, "dashboard")
}

func TestBellCountsRepliesAndFollowsView(t *testing.T) {
	srv, store := setupServer(t)
	ctx := context.Background()

	conn := dial(t, srv, "/ws/bell/Sam")

	var bell struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(next(t, conn, "bell").Data, &bell))
	assert.Equal(t, 0, bell.Count)

	_, _, _ = store.CreateReply(ctx, "sam", "Coming up next!", "karaoke", "1")
	require.NoError(t, json.Unmarshal(next(t, conn, "bell").Data, &bell))
	assert.Equal(t, 1, bell.Count)

	send(t, conn, `{"type":"view","data":{"view":"task"}}`)
	_, _, _ = store.CreateReply(ctx, "Sam", "Second", "", "")
	send(t, conn, `{"type":"view","data":{"view":"menu"}}`)
	require.NoError(t, json.Unmarshal(next(t, conn, "bell").Data, &bell))
	assert.Equal(t, 2, bell.Count)
}

func TestUnknownControlFrame(t *testing.T) {
	srv, _ := setupServer(t)

	conn := dial(t, srv, "/ws/dashboard")
	send(t, conn, `{"type":"dance"}`)

	var errData struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(next(t, conn, "error").Data, &errData))
	assert.Contains(t, errData.Message, "dance")
}
