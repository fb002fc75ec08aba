// Package visibility derives what each client surface may see from the
// coordination store without mutating it.
package visibility

import (
	"context"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mobiledjay/backend/internal/model/djay"
	"github.com/mobiledjay/backend/internal/service/coordination"
)

// Source is the read side of the coordination store.
type Source interface {
	ListRequests(ctx context.Context) []djay.Request
	ListMessages(ctx context.Context, filter coordination.MessageFilter) []djay.Message
	ListReplies(ctx context.Context, filter coordination.ReplyFilter) []djay.Reply
}

// Pending selects messages not yet shown, private or not.
func Pending(m djay.Message) bool {
	return !m.Displayed
}

// PublicPending selects the messages the public display may still show.
func PublicPending(m djay.Message) bool {
	return !m.Displayed && !m.Private
}

// ForCustomer selects replies addressed to name, ignoring case.
func ForCustomer(name string) coordination.ReplyFilter {
	return func(r djay.Reply) bool {
		return strings.EqualFold(r.CustomerName, name)
	}
}

// DashboardRequest is a request as the operator sees it.
type DashboardRequest struct {
	djay.Request
	Age string `json:"age"`
}

// DashboardMessage is a message as the operator sees it.
type DashboardMessage struct {
	djay.Message
	Age string `json:"age"`
}

// DashboardView is everything on the operator dashboard.
type DashboardView struct {
	Requests []DashboardRequest `json:"requests"`
	Messages []DashboardMessage `json:"messages"`
}

// Dashboard returns all requests and all messages, private ones included.
func Dashboard(ctx context.Context, src Source, now time.Time) DashboardView {
	requests := src.ListRequests(ctx)
	messages := src.ListMessages(ctx, nil)

	view := DashboardView{
		Requests: make([]DashboardRequest, 0, len(requests)),
		Messages: make([]DashboardMessage, 0, len(messages)),
	}
	for _, r := range requests {
		view.Requests = append(view.Requests, DashboardRequest{Request: r, Age: age(r.CreatedAt, now)})
	}
	for _, m := range messages {
		view.Messages = append(view.Messages, DashboardMessage{Message: m, Age: age(m.CreatedAt, now)})
	}
	return view
}

// DisplayFeed returns pending messages oldest first. Private messages are
// only included when includePrivate is set, which the public display never does.
func DisplayFeed(ctx context.Context, src Source, includePrivate bool) []djay.Message {
	if includePrivate {
		return src.ListMessages(ctx, Pending)
	}
	return src.ListMessages(ctx, PublicPending)
}

// PatronReplies returns the replies a patron may read.
func PatronReplies(ctx context.Context, src Source, name string) []djay.Reply {
	return src.ListReplies(ctx, ForCustomer(name))
}

// BellCount is the total number of replies for a patron. It is not an
// unread count; repeated calls return the same value until a new reply lands.
func BellCount(ctx context.Context, src Source, name string) int {
	return len(PatronReplies(ctx, src, name))
}

func age(then, now time.Time) string {
	if then.After(now) {
		return "just now"
	}
	return humanize.RelTime(then, now, "ago", "from now")
}
