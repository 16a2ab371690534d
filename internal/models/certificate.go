package models

import "time"

// Placeholder values the legacy forms submitted when parents were unknown.
const (
	PlaceholderFatherName = "Non spécifié"
	PlaceholderMotherName = "Non spécifiée"
	MaxParentNameLength   = 150
	MaxBirthPlaceLength   = 150
	MaxDocumentCopies     = 10
)

// Certificate is a school attendance certificate request.
type Certificate struct {
	Lifecycle
	FatherName string     `db:"father_name" json:"nom_pere"`
	MotherName string     `db:"mother_name" json:"nom_mere"`
	BirthDate  *time.Time `db:"birth_date" json:"date_naissance,omitempty"`
	BirthPlace *string    `db:"birth_place" json:"lieu_naissance,omitempty"`
	Quantity   int        `db:"quantity" json:"quantite"`
}

// Kind implements RequestRecord.
func (c Certificate) Kind() RequestKind { return KindCertificate }

// Summary implements RequestRecord.
func (c Certificate) Summary() map[string]interface{} {
	details := map[string]interface{}{
		"nom_pere": c.FatherName,
		"nom_mere": c.MotherName,
		"quantite": c.Quantity,
	}
	if c.BirthDate != nil {
		details["date_naissance"] = c.BirthDate.Format("02/01/2006")
	}
	if c.BirthPlace != nil {
		details["lieu_naissance"] = *c.BirthPlace
	}
	return details
}
