// Package notify posts ops notifications for submitted requests to a
// Slack channel.
package notify

import (
	"fmt"
	"log"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/helpline1930/helpline/internal/models"
)

// poster abstracts the Slack API method we use, enabling test mocks.
type poster interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier announces finalized records to the ops channel. Without a
// token or channel it is disabled: Submitted logs and returns nil, so
// the conversation path never depends on Slack being configured.
type Notifier struct {
	client    poster
	channelID string
}

// Opts holds parameters for creating a Notifier.
type Opts struct {
	Token     string // xoxb-... bot token, empty disables posting
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client poster
}

// New creates a Notifier.
func New(opts Opts) *Notifier {
	n := &Notifier{channelID: opts.ChannelID}
	if opts.Client != nil {
		n.client = opts.Client
	} else if opts.Token != "" {
		n.client = slackapi.New(opts.Token)
	}
	return n
}

// Enabled reports whether notifications will actually be posted.
func (n *Notifier) Enabled() bool {
	return n.client != nil && n.channelID != ""
}

// Submitted announces a newly submitted record.
func (n *Notifier) Submitted(rec *models.Complaint, reference, category string) error {
	if rec == nil {
		return fmt.Errorf("notify: record is required")
	}
	if !n.Enabled() {
		log.Printf("notify: disabled, skipping announce for %s", reference)
		return nil
	}

	att := slackapi.Attachment{
		Title:    "New submission: " + reference,
		Color:    "#36a64f",
		Fallback: reference,
		Fields: []slackapi.AttachmentField{
			{Title: "Reference", Value: reference, Short: true},
			{Title: "Category", Value: category, Short: true},
			{Title: "District", Value: orDash(rec.District), Short: true},
			{Title: "Filed", Value: rec.CreatedAt.Format(time.RFC3339), Short: true},
		},
	}
	_, _, err := n.client.PostMessage(n.channelID,
		slackapi.MsgOptionText("New submission "+reference, false),
		slackapi.MsgOptionAttachments(att),
	)
	if err != nil {
		return fmt.Errorf("notify: post message: %w", err)
	}
	return nil
}

// SweepFailure reports a report-render failure picked up by the sweep.
func (n *Notifier) SweepFailure(recordID uint, cause error) error {
	if !n.Enabled() {
		return nil
	}
	_, _, err := n.client.PostMessage(n.channelID,
		slackapi.MsgOptionText(fmt.Sprintf("Report render failed for record %d: %v", recordID, cause), false))
	if err != nil {
		return fmt.Errorf("notify: post message: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
