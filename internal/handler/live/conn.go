package live

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mobiledjay/backend/internal/service/polling"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type visibilityData struct {
	Hidden bool `json:"hidden"`
}

// peer serializes writes; gorilla connections allow one writer at a time.
type peer struct {
	channel string
	ws      *websocket.Conn
	mu      sync.Mutex
}

func (p *peer) send(msgType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
	msg := outgoingMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := p.ws.WriteJSON(msg); err != nil {
		log.Printf("[live] %s write %s failed: %v", p.channel, msgType, err)
	}
}

func (p *peer) sendError(message string) {
	p.send("error", map[string]string{"message": message})
}

func (p *peer) ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// session is one live connection: a peer, the poller feeding it and the
// channel-specific control frames it understands.
type session struct {
	peer   *peer
	poller *polling.Poller
	// wake runs before a manual refresh or a resume.
	wake func()
	// extra handles channel-specific frames; it reports false for unknown types.
	extra func(ctx context.Context, msg inboundMessage) bool
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.ping(); err != nil {
				return
			}
		}
	}
}

// readLoop 处理客户端控制帧，直到连接关闭。
func readLoop(ctx context.Context, s *session) {
	ws := s.peer.ws
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[live] %s read error: %v", s.peer.channel, err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case "visibility":
			var v visibilityData
			if err := json.Unmarshal(msg.Data, &v); err != nil {
				s.peer.sendError("invalid visibility payload")
				continue
			}
			if v.Hidden {
				s.poller.Pause()
				continue
			}
			if s.wake != nil {
				s.wake()
			}
			s.poller.Resume()
		case "refresh":
			if s.wake != nil {
				s.wake()
			}
			s.poller.Refresh(ctx)
		default:
			if s.extra == nil || !s.extra(ctx, msg) {
				s.peer.sendError("unsupported message type: " + msg.Type)
			}
		}
	}
}
