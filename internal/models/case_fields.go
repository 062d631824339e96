package models

// CaseField enumerates the editable fields of a case. The source system
// updated arbitrary attribute names from strings; here each editable field is
// an explicit variant so that an invalid field name cannot be constructed.
type CaseField string

const (
	CaseFieldSubjectName CaseField = "subject_name"
	CaseFieldRelation    CaseField = "relation"
	CaseFieldSex         CaseField = "sex"
	CaseFieldAge         CaseField = "age"
	CaseFieldHairColor   CaseField = "hair_color"
	CaseFieldEyeColor    CaseField = "eye_color"
	CaseFieldHeightCm    CaseField = "height_cm"
	CaseFieldWeightKg    CaseField = "weight_kg"
	CaseFieldFeatures    CaseField = "features"
	CaseFieldReason      CaseField = "reason"
)

// EditableCaseFields lists the fields offered in the listing flow, in menu
// order.
var EditableCaseFields = []CaseField{
	CaseFieldSubjectName,
	CaseFieldRelation,
	CaseFieldSex,
	CaseFieldAge,
	CaseFieldHairColor,
	CaseFieldEyeColor,
	CaseFieldHeightCm,
	CaseFieldWeightKg,
	CaseFieldFeatures,
	CaseFieldReason,
}

// CaseFieldUpdate is a single-field update of a case. Exactly one of Text or
// Number is meaningful, depending on the field.
type CaseFieldUpdate struct {
	Field  CaseField
	Text   string
	Number int
}

// IsNumeric reports whether the field carries a numeric value.
func (f CaseField) IsNumeric() bool {
	switch f {
	case CaseFieldAge, CaseFieldHeightCm, CaseFieldWeightKg:
		return true
	default:
		return false
	}
}

// SetSubjectName builds an update for the subject's name.
func SetSubjectName(v string) CaseFieldUpdate {
	return CaseFieldUpdate{Field: CaseFieldSubjectName, Text: v}
}

// SetRelation builds an update for the reporter's relation to the subject.
func SetRelation(v string) CaseFieldUpdate {
	return CaseFieldUpdate{Field: CaseFieldRelation, Text: v}
}

// SetSex builds an update for the subject's sex.
func SetSex(v string) CaseFieldUpdate {
	return CaseFieldUpdate{Field: CaseFieldSex, Text: v}
}

// SetAge builds an update for the subject's age.
func SetAge(v int) CaseFieldUpdate {
	return CaseFieldUpdate{Field: CaseFieldAge, Number: v}
}

// SetHairColor builds an update for the subject's hair color.
func SetHairColor(v string) CaseFieldUpdate {
	return CaseFieldUpdate{Field: CaseFieldHairColor, Text: v}
}

// SetEyeColor builds an update for the subject's eye color.
func SetEyeColor(v string) CaseFieldUpdate {
	return CaseFieldUpdate{Field: CaseFieldEyeColor, Text: v}
}

// SetHeightCm builds an update for the subject's height in centimeters.
func SetHeightCm(v int) CaseFieldUpdate {
	return CaseFieldUpdate{Field: CaseFieldHeightCm, Number: v}
}

// SetWeightKg builds an update for the subject's weight in kilograms.
func SetWeightKg(v int) CaseFieldUpdate {
	return CaseFieldUpdate{Field: CaseFieldWeightKg, Number: v}
}

// SetFeatures builds an update for the subject's distinctive features.
func SetFeatures(v string) CaseFieldUpdate {
	return CaseFieldUpdate{Field: CaseFieldFeatures, Text: v}
}

// SetReason builds an update for the reason the case was opened.
func SetReason(v string) CaseFieldUpdate {
	return CaseFieldUpdate{Field: CaseFieldReason, Text: v}
}
