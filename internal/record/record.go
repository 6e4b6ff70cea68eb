// Package record implements the record lifecycle over GORM: draft
// creation, field assignment, document accumulation and the guarded
// finalization step that assigns the reference number.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/helpline1930/helpline/internal/flow"
	"github.com/helpline1930/helpline/internal/models"
)

// ErrAlreadySubmitted is returned by Finalize when the record has a
// reference number already. Callers treat it as a no-op guard, not a
// failure to surface to the user.
var ErrAlreadySubmitted = errors.New("record: already submitted")

// ErrNotFound is returned when a record id does not resolve.
var ErrNotFound = errors.New("record: not found")

// Store is the gorm-backed record lifecycle.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("record: db is required")
	}
	return &Store{db: db}, nil
}

// Create allocates a new draft record for a sender and returns its id.
// Called at flow entry; a draft abandoned by switching flows is left
// behind deliberately (no garbage collection).
func (s *Store) Create(senderID, complaintType, mainCategory string) (uint, error) {
	c := models.Complaint{
		WaID:          senderID,
		ComplaintType: complaintType,
		MainCategory:  mainCategory,
		Status:        "draft",
		Documents:     "[]",
	}
	if err := s.db.Create(&c).Error; err != nil {
		return 0, fmt.Errorf("record: create: %w", err)
	}
	return c.ID, nil
}

// Get loads a record by id.
func (s *Store) Get(id uint) (*models.Complaint, error) {
	var c models.Complaint
	if err := s.db.First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("record: get %d: %w", id, err)
	}
	return &c, nil
}

// SetCategory stores the main category chosen during the flow.
func (s *Store) SetCategory(id uint, category string) error {
	return s.updateColumn(id, "main_category", category)
}

// SetFraudType stores the fraud type or platform label.
func (s *Store) SetFraudType(id uint, label string) error {
	return s.updateColumn(id, "fraud_type", label)
}

// SetSubType stores the platform-specific issue label.
func (s *Store) SetSubType(id uint, label string) error {
	return s.updateColumn(id, "sub_type", label)
}

// SetAccountNumber stores the bank account for unfreeze requests.
func (s *Store) SetAccountNumber(id uint, account string) error {
	return s.updateColumn(id, "account_number", account)
}

// SetField writes a validated answer under its canonical field id.
// Overwrite semantics, no history kept. The canonical ids double as the
// column names, and only ids from the closed schema set are accepted.
// Phone numbers are stored in their bare 10-digit form so later lookups
// by phone are independent of how the sender typed them.
func (s *Store) SetField(id uint, field flow.FieldID, value string) error {
	if !flow.Known(field) {
		return fmt.Errorf("record: set field %d: unknown field id %q", id, field)
	}
	if field == flow.FieldPhoneNumber {
		value = canonicalPhone(value)
	}
	return s.updateColumn(id, string(field), value)
}

// canonicalPhone strips the spacing, hyphens and country code the phone
// validator tolerates, leaving the bare 10 digits.
func canonicalPhone(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.TrimPrefix(s, "+")
	if len(s) == 12 && strings.HasPrefix(s, "91") {
		s = s[2:]
	}
	return s
}

// safeColumn guards updateColumn against anything but plain identifiers.
var safeColumn = regexp.MustCompile(`^[a-z_]+$`)

func (s *Store) updateColumn(id uint, column, value string) error {
	if !safeColumn.MatchString(column) {
		return fmt.Errorf("record: bad column %q", column)
	}
	result := s.db.Model(&models.Complaint{}).Where("id = ?", id).Update(column, value)
	if result.Error != nil {
		return fmt.Errorf("record: update %s on %d: %w", column, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendDocument appends a normalized media ref to the record's document
// list. Order is display/report order and is preserved.
func (s *Store) AppendDocument(id uint, ref string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var c models.Complaint
		if err := tx.First(&c, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("record: append document %d: %w", id, err)
		}
		docs := DecodeDocuments(c.Documents)
		docs = append(docs, ref)
		encoded, err := json.Marshal(docs)
		if err != nil {
			return fmt.Errorf("record: encode documents %d: %w", id, err)
		}
		if err := tx.Model(&c).Update("documents", string(encoded)).Error; err != nil {
			return fmt.Errorf("record: append document %d: %w", id, err)
		}
		return nil
	})
}

// Finalize assigns the reference number and flips the record to submitted
// in one transaction. Once submitted the record is immutable to the
// conversation layer, so a second Finalize fails with ErrAlreadySubmitted.
func (s *Store) Finalize(id uint) (string, error) {
	var ref string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var c models.Complaint
		if err := tx.First(&c, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("record: finalize %d: %w", id, err)
		}
		if c.Status == "submitted" {
			return ErrAlreadySubmitted
		}
		created := c.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		ref = FormatReference(c.ID, created)
		updates := map[string]interface{}{
			"reference_number": ref,
			"status":           "submitted",
		}
		if err := tx.Model(&c).Updates(updates).Error; err != nil {
			return fmt.Errorf("record: finalize %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

// LatestByReference finds the record carrying a reference number.
func (s *Store) LatestByReference(ref string) (*models.Complaint, error) {
	var c models.Complaint
	err := s.db.Where("reference_number = ?", NormalizeReference(ref)).
		Order("id DESC").First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("record: by reference %q: %w", ref, err)
	}
	return &c, nil
}

// LatestByPhone finds the most recent record whose stored phone number
// ends with the given 10 digits (stored values may carry a country code).
func (s *Store) LatestByPhone(phone string) (*models.Complaint, error) {
	var c models.Complaint
	err := s.db.Where("phone_number LIKE ? AND phone_number != ''", "%"+phone).
		Order("id DESC").First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("record: by phone: %w", err)
	}
	return &c, nil
}

// ListSubmitted returns all submitted records, oldest first. Used by the
// artifact sweep to find reports that still need rendering.
func (s *Store) ListSubmitted() ([]models.Complaint, error) {
	var recs []models.Complaint
	if err := s.db.Where("status = ?", "submitted").Order("id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("record: list submitted: %w", err)
	}
	return recs, nil
}

// List returns the most recent records up to limit, newest first.
func (s *Store) List(limit int) ([]models.Complaint, error) {
	if limit <= 0 {
		limit = 100
	}
	var recs []models.Complaint
	if err := s.db.Order("id DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("record: list: %w", err)
	}
	return recs, nil
}

// DecodeDocuments parses the stored JSON document list. Bad data decodes
// to an empty list rather than erroring, matching the tolerant reads
// everywhere else in the snapshot/record layer.
func DecodeDocuments(encoded string) []string {
	if encoded == "" {
		return nil
	}
	var docs []string
	if err := json.Unmarshal([]byte(encoded), &docs); err != nil {
		return nil
	}
	return docs
}
