package conversation

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/helpline1930/helpline/internal/models"
)

// GormSnapshotStore persists snapshots in the conversation_snapshots
// table, one row per sender, upserted in place.
type GormSnapshotStore struct {
	db *gorm.DB
}

// NewGormSnapshotStore creates a GormSnapshotStore.
func NewGormSnapshotStore(db *gorm.DB) (*GormSnapshotStore, error) {
	if db == nil {
		return nil, fmt.Errorf("conversation: snapshot store: db is required")
	}
	return &GormSnapshotStore{db: db}, nil
}

// Get loads the snapshot for a sender, creating an idle one lazily on
// first contact. Corrupt stored state or scratch degrades to idle/empty
// rather than erroring.
func (s *GormSnapshotStore) Get(senderID string) (Snapshot, error) {
	var row models.ConversationSnapshot
	err := s.db.Where("wa_id = ?", senderID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		snap := NewSnapshot(senderID)
		if err := s.Put(snap); err != nil {
			return Snapshot{}, err
		}
		return snap, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("conversation: load snapshot %s: %w", senderID, err)
	}

	scratch := map[string]string{}
	if row.Scratch != "" {
		if err := json.Unmarshal([]byte(row.Scratch), &scratch); err != nil {
			scratch = map[string]string{}
		}
	}
	return Snapshot{
		SenderID: senderID,
		State:    ParseState(row.State),
		Scratch:  scratch,
	}, nil
}

// Put upserts the snapshot row for its sender.
func (s *GormSnapshotStore) Put(snap Snapshot) error {
	scratch, err := json.Marshal(snap.Scratch)
	if err != nil {
		return fmt.Errorf("conversation: encode scratch for %s: %w", snap.SenderID, err)
	}
	row := models.ConversationSnapshot{
		WaID:    snap.SenderID,
		State:   snap.State.String(),
		Scratch: string(scratch),
	}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wa_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "scratch", "updated_at"}),
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("conversation: save snapshot %s: %w", snap.SenderID, result.Error)
	}
	return nil
}
