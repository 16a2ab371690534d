package dto

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// YearInput accepts a year as a number, a numeric string or an object whose first key is the year.
type YearInput struct {
	Value   string
	Invalid bool
	Empty   bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (y *YearInput) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch v := tok.(type) {
	case json.Number:
		y.Value = v.String()
	case string:
		y.Value = strings.TrimSpace(v)
	case json.Delim:
		if v != '{' {
			y.Invalid = true
			return nil
		}
		key, err := dec.Token()
		if err != nil {
			return err
		}
		if s, ok := key.(string); ok {
			y.Value = strings.TrimSpace(s)
		} else {
			y.Empty = true
		}
	default:
		y.Invalid = true
	}
	return nil
}

// FlexibleInt accepts 3 or "3".
type FlexibleInt struct {
	Value   int
	Set     bool
	Invalid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleInt) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	f.Set = true
	n, err := strconv.Atoi(strings.TrimSpace(strings.Trim(raw, `"`)))
	if err != nil {
		f.Invalid = true
		return nil
	}
	f.Value = n
	return nil
}

// LevelInput is one requested level line.
type LevelInput struct {
	Level    string      `json:"niveau"`
	Quantity FlexibleInt `json:"quantite"`
}

// CreateTranscriptRequest is the student payload for a transcript request.
type CreateTranscriptRequest struct {
	Levels []LevelInput `json:"demandes"`
	Years  []YearInput  `json:"annee_universitaire"`
}

// CreateCertificateRequest is the student payload for a school certificate.
type CreateCertificateRequest struct {
	FatherName string  `json:"nom_pere" validate:"required,max=150"`
	MotherName string  `json:"nom_mere" validate:"required,max=150"`
	BirthDate  *string `json:"date_naissance"`
	BirthPlace *string `json:"lieu_naissance" validate:"omitempty,max=150"`
	Quantity   *int    `json:"quantite" validate:"omitempty,min=1,max=10"`
}

// CreateAttestationRequest is the student payload for an attestation.
type CreateAttestationRequest struct {
	Type         string  `json:"type_attestation" validate:"required"`
	AcademicYear *string `json:"annee_scolaire"`
	Quantity     *int    `json:"quantite" validate:"omitempty,min=1,max=10"`
}

// ChangeStatusRequest is the staff payload for a status transition.
type ChangeStatusRequest struct {
	Kind      string `json:"type_demande" validate:"required"`
	ID        int64  `json:"id" validate:"required,gt=0"`
	NewStatus string `json:"nouveau_statut" validate:"required"`
	Reason    string `json:"motif"`
}

// ChangeStatusResult echoes the applied transition.
type ChangeStatusResult struct {
	Kind           string `json:"type"`
	ID             int64  `json:"id"`
	Number         string `json:"numero"`
	PreviousStatus string `json:"ancien_statut"`
	NewStatus      string `json:"nouveau_statut"`
	NewStatusCode  string `json:"nouveau_statut_code"`
	EmailSent      bool   `json:"email_envoye"`
}

// UnifiedQuery carries raw dashboard query parameters.
type UnifiedQuery struct {
	Status   string
	Type     string
	DateFrom string
	DateTo   string
	Page     int
	PageSize int
}
