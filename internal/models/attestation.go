package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AttestationType enumerates the attestation subtypes.
type AttestationType string

const (
	AttestationSuccess     AttestationType = "reussite"
	AttestationEnrollment  AttestationType = "inscription"
	AttestationLanguage    AttestationType = "langue"
	AttestationDuration    AttestationType = "duree"
	AttestationEndOfL3     AttestationType = "fin_l3"
	AttestationEndOfMaster AttestationType = "fin_m2"
)

var attestationLabels = map[AttestationType]string{
	AttestationSuccess:     "Attestation de Réussite",
	AttestationEnrollment:  "Inscription",
	AttestationLanguage:    "Langue Française d’Apprentissage",
	AttestationDuration:    "Durée de Formation",
	AttestationEndOfL3:     "Fin d’Études L3",
	AttestationEndOfMaster: "Fin d’Études M2",
}

// ParseAttestationType validates a raw subtype code.
func ParseAttestationType(raw string) (AttestationType, bool) {
	value := AttestationType(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := attestationLabels[value]
	return value, ok
}

// Label returns the display value.
func (t AttestationType) Label() string {
	if label, ok := attestationLabels[t]; ok {
		return label
	}
	return string(t)
}

// RequiresAcademicYear reports whether the subtype certifies the end of a cycle.
func (t AttestationType) RequiresAcademicYear() bool {
	return t == AttestationEndOfL3 || t == AttestationEndOfMaster
}

// ForbidsAcademicYear reports whether an academic year must not be supplied.
func (t AttestationType) ForbidsAcademicYear() bool {
	return t == AttestationLanguage
}

// DefaultAttestationUnitPrice applies when configuration does not override it.
var DefaultAttestationUnitPrice = decimal.NewFromInt(3000)

// Attestation is a request for one of the attestation subtypes.
type Attestation struct {
	Lifecycle
	Type         AttestationType `db:"attestation_type" json:"type_attestation"`
	AcademicYear *string         `db:"academic_year" json:"annee_scolaire,omitempty"`
	Quantity     int             `db:"quantity" json:"quantite"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"prix"`
	TotalPaid    decimal.Decimal `db:"total_paid" json:"total_paye"`
}

// Kind implements RequestRecord.
func (a Attestation) Kind() RequestKind { return KindAttestation }

// Recompute derives TotalPaid from UnitPrice and Quantity. Call before every save.
func (a *Attestation) Recompute() {
	a.TotalPaid = a.UnitPrice.Mul(decimal.NewFromInt(int64(a.Quantity))).Round(2)
}

// Summary implements RequestRecord.
func (a Attestation) Summary() map[string]interface{} {
	details := map[string]interface{}{
		"type":             a.Type.Label(),
		"type_attestation": string(a.Type),
		"quantite":         a.Quantity,
		"prix":             a.UnitPrice.InexactFloat64(),
		"total_paye":       a.TotalPaid.InexactFloat64(),
	}
	if a.AcademicYear != nil {
		details["annee_scolaire"] = *a.AcademicYear
	} else {
		details["annee_scolaire"] = nil
	}
	return details
}
