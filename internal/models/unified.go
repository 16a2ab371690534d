package models

import (
	"sort"
	"strings"
	"time"
)

// StudentSummary is the owner block shown next to a request.
type StudentSummary struct {
	StudentID    string `json:"-"`
	UserID       string `json:"-"`
	Registration string `json:"immatricule"`
	FullName     string `json:"nom_complet"`
	Email        string `json:"email"`
	Contact      string `json:"contact,omitempty"`
}

// UnifiedRecord is the common projection of any request kind.
type UnifiedRecord struct {
	ID           int64                  `json:"id"`
	Kind         RequestKind            `json:"type_demande"`
	KindLabel    string                 `json:"type_libelle"`
	Number       string                 `json:"numero"`
	Student      StudentSummary         `json:"etudiant"`
	Details      map[string]interface{} `json:"details"`
	Status       RequestStatus          `json:"statut"`
	StatusLabel  string                 `json:"statut_display"`
	RequestedAt  *time.Time             `json:"date_demande"`
	ProcessedAt  *time.Time             `json:"date_traitement"`
	RejectReason *string                `json:"motif_rejet,omitempty"`
}

// Project maps a record and its owner into the unified shape.
func Project(record RequestRecord, owner StudentSummary) UnifiedRecord {
	env := record.Envelope()
	var requestedAt *time.Time
	if !env.RequestedAt.IsZero() {
		ts := env.RequestedAt
		requestedAt = &ts
	}
	return UnifiedRecord{
		ID:           env.ID,
		Kind:         record.Kind(),
		KindLabel:    record.Kind().Label(),
		Number:       record.Number(),
		Student:      owner,
		Details:      record.Summary(),
		Status:       record.CurrentStatus(),
		StatusLabel:  record.CurrentStatus().Label(),
		RequestedAt:  requestedAt,
		ProcessedAt:  env.ProcessedAt,
		RejectReason: env.RejectionReason,
	}
}

// SortUnified orders records newest first. When any record lacks a request
// timestamp the whole list is ordered by id instead, with undated records last.
func SortUnified(records []UnifiedRecord) {
	missing := false
	for _, r := range records {
		if r.RequestedAt == nil || r.RequestedAt.IsZero() {
			missing = true
			break
		}
	}
	if missing {
		sort.SliceStable(records, func(i, j int) bool {
			di, dj := records[i].RequestedAt != nil, records[j].RequestedAt != nil
			if di != dj {
				return di
			}
			return records[i].ID > records[j].ID
		})
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		ti, tj := *records[i].RequestedAt, *records[j].RequestedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return records[i].ID > records[j].ID
	})
}

// KindCounts holds one counter per request kind.
type KindCounts struct {
	Transcripts  int `json:"releves"`
	Certificates int `json:"certificats"`
	Attestations int `json:"attestations"`
}

// Add increments the counter for kind.
func (k *KindCounts) Add(kind RequestKind, n int) {
	switch kind {
	case KindTranscript:
		k.Transcripts += n
	case KindCertificate:
		k.Certificates += n
	case KindAttestation:
		k.Attestations += n
	}
}

// Total sums all kinds.
func (k KindCounts) Total() int {
	return k.Transcripts + k.Certificates + k.Attestations
}

// StatusCounts always carries every status key.
type StatusCounts map[RequestStatus]int

// NewStatusCounts returns zeroed counters for every status.
func NewStatusCounts() StatusCounts {
	counts := make(StatusCounts, len(AllStatuses))
	for _, s := range AllStatuses {
		counts[s] = 0
	}
	return counts
}

// UnifiedStats summarises a filtered unified listing.
type UnifiedStats struct {
	Total    int          `json:"total"`
	ByKind   KindCounts   `json:"par_type"`
	ByStatus StatusCounts `json:"par_statut"`
}

// SummariseUnified computes stats over records.
func SummariseUnified(records []UnifiedRecord) UnifiedStats {
	stats := UnifiedStats{ByStatus: NewStatusCounts()}
	for _, r := range records {
		stats.Total++
		stats.ByKind.Add(r.Kind, 1)
		stats.ByStatus[r.Status]++
	}
	return stats
}

// UnifiedFilter is the validated form of the dashboard query.
type UnifiedFilter struct {
	Status   *RequestStatus
	Kind     *RequestKind
	DateFrom *time.Time
	DateTo   *time.Time // inclusive day
	Page     int
	PageSize int
}

// Applied echoes the active filters back to clients.
func (f UnifiedFilter) Applied() map[string]string {
	out := map[string]string{}
	if f.Status != nil {
		out["statut"] = string(*f.Status)
	}
	if f.Kind != nil {
		out["type"] = string(*f.Kind)
	}
	if f.DateFrom != nil {
		out["date_debut"] = f.DateFrom.Format("2006-01-02")
	}
	if f.DateTo != nil {
		out["date_fin"] = f.DateTo.Format("2006-01-02")
	}
	return out
}

// UnifiedListing is the dashboard payload.
type UnifiedListing struct {
	Stats          UnifiedStats      `json:"stats"`
	Records        []UnifiedRecord   `json:"demandes"`
	AppliedFilters map[string]string `json:"filtres_appliques"`
	Pagination     *Pagination       `json:"-"`
}

// SearchResult lists every request whose public number matched.
type SearchResult struct {
	Query   string          `json:"numero"`
	Results []UnifiedRecord `json:"resultats"`
	Total   int             `json:"total"`
}

// NormaliseNumber trims a public number query.
func NormaliseNumber(raw string) string {
	return strings.TrimSpace(raw)
}

// RequestDetail is a single request with its status trail.
type RequestDetail struct {
	UnifiedRecord
	History []StatusHistory `json:"historique"`
}
