package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/scolarite-api/internal/dto"
	"github.com/noah-isme/scolarite-api/internal/models"
	appErrors "github.com/noah-isme/scolarite-api/pkg/errors"
)

var academicYearPattern = regexp.MustCompile(`^(\d{4})[-/](\d{4})$`)

var birthDateLayouts = []string{"02/01/2006", "2006-01-02"}

type fieldErrors map[string]string

func (f fieldErrors) add(field, format string, args ...interface{}) {
	if _, exists := f[field]; !exists {
		f[field] = fmt.Sprintf(format, args...)
	}
}

func (f fieldErrors) err(message string) error {
	if len(f) == 0 {
		return nil
	}
	return appErrors.WithFields(message, f)
}

// validatePayload runs the struct tags of payload and reports violations under their JSON names.
func validatePayload(v *validator.Validate, payload interface{}, message string) error {
	err := v.Struct(payload)
	if err == nil {
		return nil
	}
	var violations validator.ValidationErrors
	if !errors.As(err, &violations) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	typ := reflect.TypeOf(payload)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	fields := fieldErrors{}
	for _, fe := range violations {
		fields.add(jsonFieldName(typ, fe.StructField()), "%s", describeViolation(fe))
	}
	return fields.err(message)
}

func jsonFieldName(typ reflect.Type, name string) string {
	field, ok := typ.FieldByName(name)
	if !ok {
		return name
	}
	tag := strings.Split(field.Tag.Get("json"), ",")[0]
	if tag == "" || tag == "-" {
		return name
	}
	return tag
}

func describeViolation(fe validator.FieldError) string {
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s%s", fe.Param(), unit)
	case "min":
		return fmt.Sprintf("must be at least %s%s", fe.Param(), unit)
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}

func validTranscriptLevel(level string) bool {
	for _, allowed := range models.TranscriptLevels {
		if level == allowed {
			return true
		}
	}
	return false
}

// normaliseTranscript upper-cases levels and returns the sorted, deduplicated year list.
func normaliseTranscript(req dto.CreateTranscriptRequest) (models.LevelQuantities, []int64, error) {
	fields := fieldErrors{}

	levels := make(models.LevelQuantities, 0, len(req.Levels))
	total := 0
	if len(req.Levels) == 0 {
		fields.add("demandes", "at least one level is required")
	}
	for i, item := range req.Levels {
		level := strings.ToUpper(strings.TrimSpace(item.Level))
		if !validTranscriptLevel(level) {
			fields.add(fmt.Sprintf("demandes[%d].niveau", i), "level must be one of %s", strings.Join(models.TranscriptLevels, ", "))
		}
		switch {
		case !item.Quantity.Set:
			fields.add(fmt.Sprintf("demandes[%d].quantite", i), "quantity is required")
		case item.Quantity.Invalid:
			fields.add(fmt.Sprintf("demandes[%d].quantite", i), "quantity must be an integer")
		case item.Quantity.Value < 1 || item.Quantity.Value > models.MaxCopiesPerLevel:
			fields.add(fmt.Sprintf("demandes[%d].quantite", i), "quantity must be between 1 and %d", models.MaxCopiesPerLevel)
		default:
			total += item.Quantity.Value
		}
		levels = append(levels, models.LevelQuantity{Level: level, Quantity: item.Quantity.Value})
	}
	if total > models.MaxTranscriptCopiesTotal {
		fields.add("demandes", "at most %d copies may be requested at once", models.MaxTranscriptCopiesTotal)
	}

	years := normaliseYears(req.Years, fields)

	if err := fields.err("invalid transcript request"); err != nil {
		return nil, nil, err
	}
	return levels, years, nil
}

func normaliseYears(inputs []dto.YearInput, fields fieldErrors) []int64 {
	if len(inputs) == 0 {
		fields.add("annee_universitaire", "at least one academic year is required")
		return nil
	}
	seen := make(map[int64]struct{}, len(inputs))
	years := make([]int64, 0, len(inputs))
	for i, input := range inputs {
		field := fmt.Sprintf("annee_universitaire[%d]", i)
		if input.Invalid || input.Empty || input.Value == "" {
			fields.add(field, "invalid academic year")
			continue
		}
		year, err := strconv.ParseInt(input.Value, 10, 64)
		if err != nil || len(input.Value) != 4 {
			fields.add(field, "academic year must be a 4-digit number")
			continue
		}
		if year < models.MinYear || year > models.MaxYear {
			fields.add(field, "academic year must be between %d and %d", models.MinYear, models.MaxYear)
			continue
		}
		if _, dup := seen[year]; dup {
			continue
		}
		seen[year] = struct{}{}
		years = append(years, year)
	}
	sort.Slice(years, func(i, j int) bool { return years[i] < years[j] })
	return years
}

// normaliseCertificate validates parent names, birth details and quantity.
func normaliseCertificate(req dto.CreateCertificateRequest, now time.Time) (*models.Certificate, error) {
	fields := fieldErrors{}
	certificate := &models.Certificate{
		FatherName: strings.TrimSpace(req.FatherName),
		MotherName: strings.TrimSpace(req.MotherName),
		Quantity:   1,
	}

	switch {
	case certificate.FatherName == "":
		fields.add("nom_pere", "father's name is required")
	case strings.EqualFold(certificate.FatherName, models.PlaceholderFatherName):
		fields.add("nom_pere", "father's name must be provided")
	case len([]rune(certificate.FatherName)) > models.MaxParentNameLength:
		fields.add("nom_pere", "father's name must be at most %d characters", models.MaxParentNameLength)
	}
	switch {
	case certificate.MotherName == "":
		fields.add("nom_mere", "mother's name is required")
	case strings.EqualFold(certificate.MotherName, models.PlaceholderMotherName):
		fields.add("nom_mere", "mother's name must be provided")
	case len([]rune(certificate.MotherName)) > models.MaxParentNameLength:
		fields.add("nom_mere", "mother's name must be at most %d characters", models.MaxParentNameLength)
	}

	if req.BirthDate != nil && strings.TrimSpace(*req.BirthDate) != "" {
		birth, ok := parseBirthDate(strings.TrimSpace(*req.BirthDate), now.Location())
		switch {
		case !ok:
			fields.add("date_naissance", "birth date must use DD/MM/YYYY or YYYY-MM-DD")
		case birth.After(now):
			fields.add("date_naissance", "birth date cannot be in the future")
		default:
			certificate.BirthDate = &birth
		}
	}

	if req.BirthPlace != nil {
		place := strings.TrimSpace(*req.BirthPlace)
		if len([]rune(place)) > models.MaxBirthPlaceLength {
			fields.add("lieu_naissance", "birth place must be at most %d characters", models.MaxBirthPlaceLength)
		} else if place != "" {
			certificate.BirthPlace = &place
		}
	}

	if req.Quantity != nil {
		certificate.Quantity = *req.Quantity
	}
	if certificate.Quantity < 1 || certificate.Quantity > models.MaxDocumentCopies {
		fields.add("quantite", "quantity must be between 1 and %d", models.MaxDocumentCopies)
	}

	if err := fields.err("invalid certificate request"); err != nil {
		return nil, err
	}
	return certificate, nil
}

func parseBirthDate(raw string, loc *time.Location) (time.Time, bool) {
	for _, layout := range birthDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normaliseAttestation validates the subtype, academic year and quantity.
func normaliseAttestation(req dto.CreateAttestationRequest) (*models.Attestation, error) {
	fields := fieldErrors{}
	attestation := &models.Attestation{Quantity: 1}

	kind, ok := models.ParseAttestationType(req.Type)
	if !ok {
		fields.add("type_attestation", "unknown attestation type %q", req.Type)
	}
	attestation.Type = kind

	year := ""
	if req.AcademicYear != nil {
		year = strings.TrimSpace(*req.AcademicYear)
	}
	switch {
	case ok && year == "" && kind.RequiresAcademicYear():
		fields.add("annee_scolaire", "academic year is required for %s", kind.Label())
	case ok && year != "" && kind.ForbidsAcademicYear():
		fields.add("annee_scolaire", "academic year is not allowed for %s", kind.Label())
	case year != "":
		if msg := checkAcademicYearRange(year); msg != "" {
			fields.add("annee_scolaire", "%s", msg)
		} else {
			attestation.AcademicYear = &year
		}
	}

	if req.Quantity != nil {
		attestation.Quantity = *req.Quantity
	}
	if attestation.Quantity < 1 || attestation.Quantity > models.MaxDocumentCopies {
		fields.add("quantite", "quantity must be between 1 and %d", models.MaxDocumentCopies)
	}

	if err := fields.err("invalid attestation request"); err != nil {
		return nil, err
	}
	return attestation, nil
}

func checkAcademicYearRange(value string) string {
	match := academicYearPattern.FindStringSubmatch(value)
	if match == nil {
		return "academic year must look like YYYY-YYYY"
	}
	start, _ := strconv.Atoi(match[1])
	end, _ := strconv.Atoi(match[2])
	if end != start+1 {
		return "academic year must span two consecutive years"
	}
	if start < models.MinYear || end > models.MaxYear {
		return fmt.Sprintf("academic year must be between %d and %d", models.MinYear, models.MaxYear)
	}
	return ""
}
