package models

import "time"

// Complaint is the record being filled in during a conversation. It stays
// in draft status while the flow collects answers and becomes submitted,
// with a reference number, in a single finalization step.
type Complaint struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	WaID            string `gorm:"size:32;index"`
	ReferenceNumber string `gorm:"size:32;uniqueIndex"`
	Status          string `gorm:"size:16;default:draft;index"`

	// Classification chosen during the flow.
	ComplaintType string `gorm:"size:4"`  // A=new complaint, B=status, C=unfreeze
	MainCategory  string `gorm:"size:32"` // financial, social, account_unfreeze, ...
	FraudType     string `gorm:"size:64"` // financial type or platform-specific subtype label
	SubType       string `gorm:"size:64"`

	// Personal information.
	Name                     string `gorm:"size:128"`
	FatherSpouseGuardianName string `gorm:"size:128"`
	DateOfBirth              string `gorm:"size:16"`
	PhoneNumber              string `gorm:"size:16;index"`
	EmailID                  string `gorm:"size:128"`
	Gender                   string `gorm:"size:16"`

	// Address information.
	Village       string `gorm:"size:128"`
	PostOffice    string `gorm:"size:128"`
	PoliceStation string `gorm:"size:128"`
	District      string `gorm:"size:64"`
	PinCode       string `gorm:"size:8"`

	// Documents is a JSON array of normalized media refs, in upload order.
	Documents             string `gorm:"type:text;default:'[]'"`
	AccountNumber         string `gorm:"size:32"` // account unfreeze (type C)
	AcknowledgementNumber string `gorm:"size:32"` // status check (type B)

	CreatedAt time.Time
	UpdatedAt time.Time
}
