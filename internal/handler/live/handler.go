// Package live upgrades the display, dashboard and bell polling channels to
// websockets. The server runs the poll loop for each connection and pushes
// only what changed.
package live

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mobiledjay/backend/internal/metrics"
	"github.com/mobiledjay/backend/internal/model/djay"
	"github.com/mobiledjay/backend/internal/service/coordination"
	"github.com/mobiledjay/backend/internal/service/polling"
	"github.com/mobiledjay/backend/internal/service/rotation"
	"github.com/mobiledjay/backend/internal/service/visibility"
)

// Config sets the poll interval of each channel and the display timing.
type Config struct {
	DisplayInterval   time.Duration
	DashboardInterval time.Duration
	BellInterval      time.Duration
	Timing            rotation.Timing
	// Clock drives display rotation timers; nil uses the real clock.
	Clock rotation.Clock
}

// Handler 实时推送通道的WebSocket处理器
type Handler struct {
	store    *coordination.Store
	cfg      Config
	now      func() time.Time
	upgrader websocket.Upgrader
}

// New 创建实时通道处理器，未设置的间隔使用默认值。
func New(store *coordination.Store, cfg Config) *Handler {
	if cfg.DisplayInterval <= 0 {
		cfg.DisplayInterval = 3 * time.Second
	}
	if cfg.DashboardInterval <= 0 {
		cfg.DashboardInterval = 30 * time.Second
	}
	if cfg.BellInterval <= 0 {
		cfg.BellInterval = 30 * time.Second
	}
	if cfg.Timing == (rotation.Timing{}) {
		cfg.Timing = rotation.TimingFor(time.Second)
	}

	return &Handler{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/display", h.handleDisplay)
	r.Get("/ws/dashboard", h.handleDashboard)
	r.Get("/ws/bell/{customerName}", h.handleBell)
}

// handleDisplay 为展示屏轮播待播放的公开留言。
func (h *Handler) handleDisplay(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "display", func(ctx context.Context, p *peer) (*session, func()) {
		player := rotation.NewPlayer(h.cfg.Timing, h.cfg.Clock, h.store, displaySink{peer: p})
		poller := polling.New("display", h.cfg.DisplayInterval, func(ctx context.Context) error {
			player.Enqueue(visibility.DisplayFeed(ctx, h.store, false))
			return nil
		})

		player.Start()
		poller.Start(ctx)

		s := &session{
			peer:   p,
			poller: poller,
			extra: func(_ context.Context, msg inboundMessage) bool {
				if msg.Type != "skip" {
					return false
				}
				player.Skip()
				return true
			},
		}
		return s, func() {
			poller.Stop()
			player.Close()
		}
	})
}

// handleDashboard 仅在数据变化或手动刷新时推送 DJ 面板快照。
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "dashboard", func(ctx context.Context, p *peer) (*session, func()) {
		var (
			force    atomic.Bool
			pushed   bool
			revision uint64
		)
		// Fetches are serialized by the poller, so pushed and revision need no lock.
		poller := polling.New("dashboard", h.cfg.DashboardInterval, func(ctx context.Context) error {
			current := h.store.Revision()
			if pushed && current == revision && !force.Swap(false) {
				return nil
			}
			pushed, revision = true, current
			p.send("dashboard", visibility.Dashboard(ctx, h.store, h.now()))
			return nil
		})
		poller.Start(ctx)

		s := &session{
			peer:   p,
			poller: poller,
			wake:   func() { force.Store(true) },
		}
		return s, poller.Stop
	})
}

type viewData struct {
	View string `json:"view"`
}

// handleBell 顾客停留在主菜单时推送回复数量，进入子页面后停止轮询。
func (h *Handler) handleBell(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "customerName")
	if name == "" {
		http.Error(w, "customerName is required", http.StatusBadRequest)
		return
	}

	h.serve(w, r, "bell", func(ctx context.Context, p *peer) (*session, func()) {
		last := -1
		poller := polling.New("bell", h.cfg.BellInterval, func(ctx context.Context) error {
			count := visibility.BellCount(ctx, h.store, name)
			if count == last {
				return nil
			}
			last = count
			p.send("bell", map[string]any{"customerName": name, "count": count})
			return nil
		})
		poller.Start(ctx)

		s := &session{
			peer:   p,
			poller: poller,
			extra: func(ctx context.Context, msg inboundMessage) bool {
				if msg.Type != "view" {
					return false
				}
				var v viewData
				if err := json.Unmarshal(msg.Data, &v); err != nil {
					p.sendError("invalid view payload")
					return true
				}
				if v.View == "menu" {
					poller.Start(ctx)
				} else {
					poller.Stop()
				}
				return true
			},
		}
		return s, poller.Stop
	})
}

// serve upgrades the connection, lets setup start the channel, then blocks
// in the read loop until the client leaves.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, channel string, setup func(ctx context.Context, p *peer) (*session, func())) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[live] %s upgrade failed: %v", channel, err)
		return
	}
	defer conn.Close()

	gauge := metrics.LiveConnections.WithLabelValues(channel)
	gauge.Inc()
	defer gauge.Dec()
	log.Printf("[live] %s connected from %s", channel, r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	p := &peer{channel: channel, ws: conn}
	s, teardown := setup(ctx, p)
	defer teardown()

	go pingLoop(ctx, p)
	readLoop(ctx, s)
	log.Printf("[live] %s disconnected from %s", channel, r.RemoteAddr)
}

// displaySink turns rotation decisions into frames.
type displaySink struct {
	peer *peer
}

func (s displaySink) Show(msg djay.Message, heading string, dwell time.Duration) {
	s.peer.send("show", map[string]any{
		"message": msg,
		"heading": heading,
		"dwellMs": dwell.Milliseconds(),
	})
}

func (s displaySink) Hide(msg djay.Message) {
	s.peer.send("hide", map[string]int64{"id": msg.ID})
}

func (s displaySink) Waiting() {
	s.peer.send("waiting", nil)
}
