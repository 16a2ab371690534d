package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Transcript levels accepted on a request.
const (
	LevelL1 = "L1"
	LevelL2 = "L2"
	LevelL3 = "L3"
	LevelM1 = "M1"
	LevelM2 = "M2"
)

// TranscriptLevels lists accepted levels in curriculum order.
var TranscriptLevels = []string{LevelL1, LevelL2, LevelL3, LevelM1, LevelM2}

const (
	MinYear                  = 2000
	MaxYear                  = 2100
	MaxCopiesPerLevel        = 10
	MaxTranscriptCopiesTotal = 50
)

// LevelQuantity is one line of a transcript request.
type LevelQuantity struct {
	Level    string `json:"niveau"`
	Quantity int    `json:"quantite"`
}

// LevelQuantities is persisted as JSONB.
type LevelQuantities []LevelQuantity

// Value implements driver.Valuer.
func (l LevelQuantities) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *LevelQuantities) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = LevelQuantities{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported type for LevelQuantities")
	}
	var out LevelQuantities
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan level quantities: %w", err)
	}
	*l = out
	return nil
}

// Transcript is a request for grade transcripts across levels and years.
type Transcript struct {
	Lifecycle
	Levels        LevelQuantities `db:"levels" json:"demandes"`
	AcademicYears pq.Int64Array   `db:"academic_years" json:"annee_universitaire"`
}

// Kind implements RequestRecord.
func (t Transcript) Kind() RequestKind { return KindTranscript }

// TotalCopies sums quantities across levels.
func (t Transcript) TotalCopies() int {
	total := 0
	for _, item := range t.Levels {
		total += item.Quantity
	}
	return total
}

// LevelBreakdown renders levels as "2×L1 | 1×M1".
func (t Transcript) LevelBreakdown() string {
	if len(t.Levels) == 0 {
		return "-"
	}
	parts := make([]string, len(t.Levels))
	for i, item := range t.Levels {
		parts[i] = fmt.Sprintf("%d×%s", item.Quantity, item.Level)
	}
	return strings.Join(parts, " | ")
}

// YearsDisplay shows at most three years followed by the remainder count.
func (t Transcript) YearsDisplay() string {
	if len(t.AcademicYears) == 0 {
		return "-"
	}
	shown := t.AcademicYears
	if len(shown) > 3 {
		shown = shown[:3]
	}
	parts := make([]string, len(shown))
	for i, year := range shown {
		parts[i] = fmt.Sprintf("%d", year)
	}
	out := strings.Join(parts, ", ")
	if extra := len(t.AcademicYears) - 3; extra > 0 {
		out = fmt.Sprintf("%s... (+%d)", out, extra)
	}
	return out
}

// Summary implements RequestRecord.
func (t Transcript) Summary() map[string]interface{} {
	years := make([]int64, len(t.AcademicYears))
	copy(years, t.AcademicYears)
	return map[string]interface{}{
		"annee_universitaire": years,
		"annees_display":      t.YearsDisplay(),
		"niveaux":             t.LevelBreakdown(),
		"total_exemplaires":   t.TotalCopies(),
	}
}
