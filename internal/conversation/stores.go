package conversation

import (
	"context"

	"github.com/helpline1930/helpline/internal/flow"
	"github.com/helpline1930/helpline/internal/models"
)

// SnapshotStore persists conversation snapshots keyed by sender id.
// Get creates an idle snapshot lazily on first contact.
type SnapshotStore interface {
	Get(senderID string) (Snapshot, error)
	Put(snap Snapshot) error
}

// RecordStore is the record lifecycle as seen by the state machine. The
// production implementation is gorm-backed; tests supply an in-memory one.
type RecordStore interface {
	// Create allocates a fresh draft record and returns its id.
	Create(senderID, complaintType, mainCategory string) (uint, error)
	Get(id uint) (*models.Complaint, error)
	SetCategory(id uint, category string) error
	SetFraudType(id uint, label string) error
	SetSubType(id uint, label string) error
	SetAccountNumber(id uint, account string) error
	SetField(id uint, field flow.FieldID, value string) error
	// AppendDocument adds a normalized media ref, preserving upload order.
	AppendDocument(id uint, ref string) error
	// Finalize assigns the reference number and flips status to submitted
	// in one step. It errors if the record is already submitted.
	Finalize(id uint) (string, error)
	LatestByReference(ref string) (*models.Complaint, error)
	LatestByPhone(phone string) (*models.Complaint, error)
}

// Intent is a classifier category mapped to a flow entry point.
type Intent string

const (
	IntentFinancial Intent = "new_complaint_financial"
	IntentSocial    Intent = "new_complaint_social"
	IntentStatus    Intent = "status_check"
	IntentUnfreeze  Intent = "account_unfreeze"
	IntentOther     Intent = "other_query"
	IntentUnknown   Intent = "unknown"
)

// Classifier guesses what a free-text message is asking for. Only used
// as a fallback router from the idle state.
type Classifier interface {
	DetectIntent(ctx context.Context, text string) (Intent, float64, error)
}

// Responder produces conversational answers for free-form queries and
// clarifications when a selection misses its catalog.
type Responder interface {
	AnswerQuery(ctx context.Context, text string) (string, error)
	ClarifySelection(ctx context.Context, text, prompt string) (string, error)
}
