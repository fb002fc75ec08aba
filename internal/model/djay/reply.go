package djay

import "time"

// OriginalRequest is the default originalType of a reply.
const OriginalRequest = "request"

// Reply records what the DJ said to a patron. Each reply is projected onto
// the display as a separate Message; the two share name, body and timestamp
// but nothing links them by id.
type Reply struct {
	ID           int64     `json:"id"`
	CustomerName string    `json:"customerName"`
	Body         string    `json:"replyMessage"`
	OriginalKind string    `json:"originalType"`
	OriginalID   string    `json:"originalId,omitempty"`
	CreatedAt    time.Time `json:"timestamp"`
}
