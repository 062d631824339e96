package store

import (
	"database/sql"
	"fmt"

	"github.com/reunite-bot/reunite/internal/models"
)

// caseColumns is the canonical column list shared by both SQL backends.
const caseColumns = `id, owner_id, status, reporter_name, mobile_number, subject_name, relation,
photo_url, last_seen_city, last_seen_country, sex, age, hair_color, eye_color,
height_cm, weight_kg, features, reason, reward_amount, reward_currency,
escrow_tx_id, created_at, updated_at, advertised_at`

// caseUpsertSet is the ON CONFLICT update list shared by both SQL backends.
// created_at and escrow_tx_id are absent so the original creation time and
// any recorded transaction survive a draft re-save.
const caseUpsertSet = `owner_id = excluded.owner_id, status = excluded.status,
reporter_name = excluded.reporter_name, mobile_number = excluded.mobile_number,
subject_name = excluded.subject_name, relation = excluded.relation,
photo_url = excluded.photo_url, last_seen_city = excluded.last_seen_city,
last_seen_country = excluded.last_seen_country, sex = excluded.sex,
age = excluded.age, hair_color = excluded.hair_color, eye_color = excluded.eye_color,
height_cm = excluded.height_cm, weight_kg = excluded.weight_kg,
features = excluded.features, reason = excluded.reason,
reward_amount = excluded.reward_amount, reward_currency = excluded.reward_currency,
updated_at = excluded.updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanCase scans one case row in caseColumns order.
func scanCase(row rowScanner) (models.Case, error) {
	var c models.Case
	var status string
	var advertisedAt sql.NullTime
	err := row.Scan(
		&c.ID, &c.OwnerID, &status, &c.ReporterName, &c.MobileNumber, &c.SubjectName, &c.Relation,
		&c.PhotoURL, &c.LastSeenCity, &c.LastSeenCountry, &c.Sex, &c.Age, &c.HairColor, &c.EyeColor,
		&c.HeightCm, &c.WeightKg, &c.Features, &c.Reason, &c.RewardAmount, &c.RewardCurrency,
		&c.EscrowTxID, &c.CreatedAt, &c.UpdatedAt, &advertisedAt,
	)
	if err != nil {
		return c, err
	}
	c.Status = models.CaseStatus(status)
	if advertisedAt.Valid {
		t := advertisedAt.Time
		c.AdvertisedAt = &t
	}
	return c, nil
}

// caseInsertValues returns the values for an insert in caseColumns order.
func caseInsertValues(c models.Case) []interface{} {
	var advertisedAt interface{}
	if c.AdvertisedAt != nil {
		advertisedAt = *c.AdvertisedAt
	}
	return []interface{}{
		c.ID, c.OwnerID, string(c.Status), c.ReporterName, c.MobileNumber, c.SubjectName, c.Relation,
		c.PhotoURL, c.LastSeenCity, c.LastSeenCountry, c.Sex, c.Age, c.HairColor, c.EyeColor,
		c.HeightCm, c.WeightKg, c.Features, c.Reason, c.RewardAmount, c.RewardCurrency,
		c.EscrowTxID, c.CreatedAt, c.UpdatedAt, advertisedAt,
	}
}

// caseFieldColumn maps an enumerated case field to its column name and value.
// The field enum makes any other value unrepresentable; the default arm only
// guards against a future variant missing its mapping.
func caseFieldColumn(upd models.CaseFieldUpdate) (string, interface{}, error) {
	switch upd.Field {
	case models.CaseFieldSubjectName:
		return "subject_name", upd.Text, nil
	case models.CaseFieldRelation:
		return "relation", upd.Text, nil
	case models.CaseFieldSex:
		return "sex", upd.Text, nil
	case models.CaseFieldAge:
		return "age", upd.Number, nil
	case models.CaseFieldHairColor:
		return "hair_color", upd.Text, nil
	case models.CaseFieldEyeColor:
		return "eye_color", upd.Text, nil
	case models.CaseFieldHeightCm:
		return "height_cm", upd.Number, nil
	case models.CaseFieldWeightKg:
		return "weight_kg", upd.Number, nil
	case models.CaseFieldFeatures:
		return "features", upd.Text, nil
	case models.CaseFieldReason:
		return "reason", upd.Text, nil
	default:
		return "", nil, fmt.Errorf("unmapped case field %q", upd.Field)
	}
}
