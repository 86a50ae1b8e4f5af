package controller

import "context"

// Action types sent by the browser.
const (
	ActionConnect = "connect"
	ActionSubmit  = "submit"
	ActionLike    = "like"
)

// Event types pushed to the browser.
const (
	EventState     = "state"
	EventConnected = "connected"
	EventMessage   = "message"
	EventPosts     = "posts"
	EventLikes     = "likes"
)

// Element states.
const (
	StateBusy = "busy"
	StateIdle = "idle"
)

// Action is a user interaction forwarded by the page.
type Action struct {
	Action  string `json:"action"`
	Content string `json:"content,omitempty"`

	// ID and Author identify the post for likes. The page sends the data
	// attributes of the like button verbatim.
	ID     string `json:"id,omitempty"`
	Author string `json:"author,omitempty"`
}

// Event is a UI update for the page.
type Event struct {
	Type    string `json:"type"`
	Element string `json:"element,omitempty"`
	State   string `json:"state,omitempty"`
	Account string `json:"account,omitempty"`
	Display string `json:"display,omitempty"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
	ID      string `json:"id,omitempty"`
	Likes   uint64 `json:"likes,omitempty"`
}

// Sink delivers events to the page.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// ChanSink queues events on a channel drained by the connection writer.
type ChanSink chan Event

func (s ChanSink) Send(ctx context.Context, ev Event) error {
	select {
	case s <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
