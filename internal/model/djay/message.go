package djay

import "time"

// Message is free text bound for the DJ and, unless private, the public display.
// Messages synthesized from operator replies carry IsReply.
type Message struct {
	ID           int64     `json:"id"`
	CustomerName string    `json:"customerName"`
	Body         string    `json:"message"`
	CreatedAt    time.Time `json:"timestamp"`
	Displayed    bool      `json:"displayed"`
	Private      bool      `json:"private"`
	IsReply      bool      `json:"isReply"`
}

// Heading is the attribution line shown under the message on the display.
func (m Message) Heading() string {
	if m.IsReply {
		return "DJ Reply to " + m.CustomerName
	}
	return m.CustomerName
}
