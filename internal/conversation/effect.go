package conversation

import "github.com/helpline1930/helpline/internal/flow"

// Effect is one outbound action requested by a transition. The engine
// only describes effects; executing them (and deciding what to do when
// delivery fails) is the dispatcher's job.
type Effect interface {
	isEffect()
}

// TextEffect sends a plain text message.
type TextEffect struct {
	To   string
	Body string
}

// ButtonsEffect sends an interactive button message (at most 3 options).
type ButtonsEffect struct {
	To      string
	Body    string
	Options []flow.Option
}

// ListEffect sends an interactive list message.
type ListEffect struct {
	To          string
	Body        string
	ButtonLabel string
	Sections    []ListSection
}

// ListSection groups list rows under a title.
type ListSection struct {
	Title string
	Rows  []flow.Option
}

// RenderReportEffect asks for the report artifact of a finalized record.
// Renderer failures must never block the user-facing confirmation.
type RenderReportEffect struct {
	RecordID uint
}

// NotifyEffect announces a finalized record to the ops channel.
type NotifyEffect struct {
	RecordID  uint
	Reference string
	Category  string
}

func (TextEffect) isEffect()         {}
func (ButtonsEffect) isEffect()      {}
func (ListEffect) isEffect()         {}
func (RenderReportEffect) isEffect() {}
func (NotifyEffect) isEffect()       {}
