package coordination

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/mobiledjay/backend/internal/model/djay"
)

var (
	ErrCustomerNameRequired = errors.New("customer name is required")
	ErrBodyRequired         = errors.New("message body is required")
	ErrInvalidKind          = errors.New("request kind must be song or karaoke")
)

// MessageFilter selects messages for a listing. A nil filter selects all.
type MessageFilter func(djay.Message) bool

// ReplyFilter selects replies for a listing. A nil filter selects all.
type ReplyFilter func(djay.Reply) bool

// Counts summarizes collection sizes for metrics.
type Counts struct {
	Requests             int
	Messages             int
	PendingPublicMessage int
	Replies              int
}

// Store is the process-lifetime, in-memory source of truth for requests,
// messages and replies. Every operation holds the lock for its full
// duration, so no caller observes a partially applied mutation.
type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	requests []djay.Request
	messages []djay.Message
	replies  []djay.Reply

	nextRequestID int64
	nextMessageID int64
	nextReplyID   int64
	revision      uint64
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore bootstraps an empty store. It is constructed once at process start
// and handed to every consumer.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:      func() time.Time { return time.Now().UTC() },
		requests: make([]djay.Request, 0, 32),
		messages: make([]djay.Message, 0, 32),
		replies:  make([]djay.Reply, 0, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest records a pending song or karaoke request. Resolving the
// song reference against a catalogue is the caller's job.
func (s *Store) CreateRequest(_ context.Context, kind djay.RequestKind, customerName string, song djay.SongRef, note string) (djay.Request, error) {
	if !kind.Valid() {
		return djay.Request{}, ErrInvalidKind
	}
	if strings.TrimSpace(customerName) == "" {
		return djay.Request{}, ErrCustomerNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRequestID++
	request := djay.Request{
		ID:           s.nextRequestID,
		Kind:         kind,
		CustomerName: customerName,
		Song:         song,
		Note:         note,
		CreatedAt:    s.now(),
		Status:       djay.StatusPending,
	}
	s.requests = append(s.requests, request)
	s.revision++
	return request, nil
}

// DeleteRequest removes a request and reports whether it existed.
func (s *Store) DeleteRequest(_ context.Context, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, item := range s.requests {
		if item.ID == id {
			s.requests = append(s.requests[:i], s.requests[i+1:]...)
			s.revision++
			return true
		}
	}
	return false
}

// CreateMessage records a patron's free-text message.
func (s *Store) CreateMessage(_ context.Context, customerName, body string, private bool) (djay.Message, error) {
	if strings.TrimSpace(customerName) == "" {
		return djay.Message{}, ErrCustomerNameRequired
	}
	if strings.TrimSpace(body) == "" {
		return djay.Message{}, ErrBodyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendMessageLocked(customerName, body, private, false, s.now()), nil
}

// CreateReplyMessage records the display projection of an operator reply
// on its own. CreateReply writes the same message under its own lock.
func (s *Store) CreateReplyMessage(_ context.Context, customerName, body string) djay.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendMessageLocked(customerName, body, false, true, s.now())
}

func (s *Store) appendMessageLocked(customerName, body string, private, isReply bool, at time.Time) djay.Message {
	s.nextMessageID++
	message := djay.Message{
		ID:           s.nextMessageID,
		CustomerName: customerName,
		Body:         body,
		CreatedAt:    at,
		Private:      private,
		IsReply:      isReply,
	}
	s.messages = append(s.messages, message)
	s.revision++
	return message
}

// MarkMessageDisplayed flips a message to displayed. It reports false when
// the id is unknown or the message was already displayed.
func (s *Store) MarkMessageDisplayed(_ context.Context, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID != id {
			continue
		}
		if s.messages[i].Displayed {
			return false
		}
		s.messages[i].Displayed = true
		s.revision++
		return true
	}
	return false
}

// CreateReply records an operator reply and its display message in one step.
func (s *Store) CreateReply(_ context.Context, customerName, body, originalKind, originalID string) (djay.Reply, djay.Message, error) {
	if strings.TrimSpace(customerName) == "" {
		return djay.Reply{}, djay.Message{}, ErrCustomerNameRequired
	}
	if strings.TrimSpace(body) == "" {
		return djay.Reply{}, djay.Message{}, ErrBodyRequired
	}
	if originalKind == "" {
		originalKind = djay.OriginalRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()
	s.nextReplyID++
	reply := djay.Reply{
		ID:           s.nextReplyID,
		CustomerName: customerName,
		Body:         body,
		OriginalKind: originalKind,
		OriginalID:   originalID,
		CreatedAt:    at,
	}
	s.replies = append(s.replies, reply)
	message := s.appendMessageLocked(customerName, body, false, true, at)
	return reply, message, nil
}

// ListRequests returns a copy of all requests in creation order.
func (s *Store) ListRequests(_ context.Context) []djay.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]djay.Request, len(s.requests))
	copy(copied, s.requests)
	return copied
}

// ListMessages returns a copy of the messages selected by filter, oldest first.
func (s *Store) ListMessages(_ context.Context, filter MessageFilter) []djay.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	selected := make([]djay.Message, 0, len(s.messages))
	for _, item := range s.messages {
		if filter == nil || filter(item) {
			selected = append(selected, item)
		}
	}
	return selected
}

// ListReplies returns a copy of the replies selected by filter, oldest first.
func (s *Store) ListReplies(_ context.Context, filter ReplyFilter) []djay.Reply {
	s.mu.RLock()
	defer s.mu.RUnlock()

	selected := make([]djay.Reply, 0, len(s.replies))
	for _, item := range s.replies {
		if filter == nil || filter(item) {
			selected = append(selected, item)
		}
	}
	return selected
}

// RepliesForCustomer returns replies whose customer name equals name,
// ignoring case.
func (s *Store) RepliesForCustomer(ctx context.Context, name string) []djay.Reply {
	return s.ListReplies(ctx, func(r djay.Reply) bool {
		return strings.EqualFold(r.CustomerName, name)
	})
}

// Revision increases on every mutation; pollers compare it to skip
// unchanged snapshots.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Counts reports collection sizes.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := Counts{
		Requests: len(s.requests),
		Messages: len(s.messages),
		Replies:  len(s.replies),
	}
	for _, m := range s.messages {
		if !m.Displayed && !m.Private {
			c.PendingPublicMessage++
		}
	}
	return c
}
