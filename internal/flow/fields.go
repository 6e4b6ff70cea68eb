// Package flow holds the static conversation data: selection catalogs and
// the field schemas used for answer collection. Everything here is
// read-only after process start.
package flow

// FieldID is the closed set of canonical answer fields. The schema
// constructor rejects ids outside this set, so a typo is caught at
// startup rather than per message.
type FieldID string

const (
	FieldName          FieldID = "name"
	FieldGuardianName  FieldID = "father_spouse_guardian_name"
	FieldDateOfBirth   FieldID = "date_of_birth"
	FieldPhoneNumber   FieldID = "phone_number"
	FieldEmailID       FieldID = "email_id"
	FieldGender        FieldID = "gender"
	FieldVillage       FieldID = "village"
	FieldPostOffice    FieldID = "post_office"
	FieldPoliceStation FieldID = "police_station"
	FieldDistrict      FieldID = "district"
	FieldPinCode       FieldID = "pin_code"
)

// knownFields is the authoritative set of valid field ids.
var knownFields = map[FieldID]bool{
	FieldName:          true,
	FieldGuardianName:  true,
	FieldDateOfBirth:   true,
	FieldPhoneNumber:   true,
	FieldEmailID:       true,
	FieldGender:        true,
	FieldVillage:       true,
	FieldPostOffice:    true,
	FieldPoliceStation: true,
	FieldDistrict:      true,
	FieldPinCode:       true,
}

// Known reports whether id is a valid canonical field id.
func Known(id FieldID) bool {
	return knownFields[id]
}
