package conversation

import "strings"

// EventKind classifies an inbound message.
type EventKind string

const (
	KindText   EventKind = "text"
	KindButton EventKind = "button"
	KindList   EventKind = "list"
	KindImage  EventKind = "image"
)

// Event is one normalized inbound message from the channel gateway.
type Event struct {
	SenderID string
	Kind     EventKind
	Text     string
	ButtonID string
	ListID   string
	ImageRef string // normalized media ref for image events
}

// Input returns the text used for matching. Button and list ids are
// preferred over any label echoed in Text, because the channel may send
// either depending on the client version.
func (e Event) Input() string {
	switch {
	case e.ButtonID != "":
		return strings.TrimSpace(e.ButtonID)
	case e.ListID != "":
		return strings.TrimSpace(e.ListID)
	default:
		return strings.TrimSpace(e.Text)
	}
}
