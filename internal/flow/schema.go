package flow

import (
	"fmt"
	"strings"

	"github.com/helpline1930/helpline/internal/validate"
)

// Field is one step of a collection schema: what to ask, how to check the
// answer, and what to say when the check fails. A nil Valid accepts any
// non-empty input.
type Field struct {
	ID       FieldID
	Prompt   string
	Valid    func(string) bool
	Reprompt string
}

// Schema is an ordered list of fields collected one at a time.
type Schema []Field

// NewSchema builds a Schema, rejecting unknown field ids.
func NewSchema(fields ...Field) (Schema, error) {
	for i, f := range fields {
		if !Known(f.ID) {
			return nil, fmt.Errorf("flow: schema field %d: unknown field id %q", i, f.ID)
		}
	}
	return Schema(fields), nil
}

// Accepts reports whether text is a valid answer for the field at index i.
func (s Schema) Accepts(i int, text string) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	f := s[i]
	if f.Valid != nil {
		return f.Valid(text)
	}
	return strings.TrimSpace(text) != ""
}

// mustSchema panics on a bad schema definition. Only used for the static
// package-level schemas below, where a failure is a programming error.
func mustSchema(fields ...Field) Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// PersonalInfo is the full 11-field schema used by new-complaint flows:
// six personal fields followed by the five address fields.
var PersonalInfo = mustSchema(
	Field{ID: FieldName, Prompt: "Your Full Name"},
	Field{ID: FieldGuardianName, Prompt: "Father/Spouse/Guardian Name"},
	Field{ID: FieldDateOfBirth, Prompt: "Date of Birth (DD/MM/YYYY)",
		Valid: validate.DateOfBirth, Reprompt: "Invalid date format. Please enter date in DD/MM/YYYY format:"},
	Field{ID: FieldPhoneNumber, Prompt: "Phone Number",
		Valid: validate.Phone, Reprompt: "Invalid phone number. Please enter a valid 10-digit Indian phone number:"},
	Field{ID: FieldEmailID, Prompt: "Email ID",
		Valid: validate.Email, Reprompt: "Invalid email address. Please enter a valid email:"},
	Field{ID: FieldGender, Prompt: "Gender"},
	Field{ID: FieldVillage, Prompt: "Village/Town"},
	Field{ID: FieldPostOffice, Prompt: "Post Office"},
	Field{ID: FieldPoliceStation, Prompt: "Police Station"},
	Field{ID: FieldDistrict, Prompt: "District"},
	Field{ID: FieldPinCode, Prompt: "PIN Code",
		Valid: validate.PinCode, Reprompt: "Invalid PIN code. Please enter a valid 6-digit PIN code:"},
)

// UnfreezeInfo is the restricted schema for account-unfreeze requests:
// identity only, no address block.
var UnfreezeInfo = mustSchema(
	PersonalInfo[0], PersonalInfo[1], PersonalInfo[2],
	PersonalInfo[3], PersonalInfo[4], PersonalInfo[5],
)

// VerifyInfo is the subset used to confirm identity before disclosing an
// existing complaint's status.
var VerifyInfo = mustSchema(
	PersonalInfo[0], PersonalInfo[2], PersonalInfo[3],
)
