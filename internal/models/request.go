package models

import (
	"fmt"
	"strings"
	"time"
)

// RequestStatus is the lifecycle status shared by every request kind.
type RequestStatus string

const (
	StatusPending    RequestStatus = "en_attente"
	StatusProcessing RequestStatus = "en_cours"
	StatusReady      RequestStatus = "pret"
	StatusWithdrawn  RequestStatus = "retire"
	StatusRejected   RequestStatus = "rejete"
)

// AllStatuses lists statuses in lifecycle order.
var AllStatuses = []RequestStatus{StatusPending, StatusProcessing, StatusReady, StatusWithdrawn, StatusRejected}

var statusLabels = map[RequestStatus]string{
	StatusPending:    "En attente",
	StatusProcessing: "En cours",
	StatusReady:      "Prêt à retirer",
	StatusWithdrawn:  "Retiré",
	StatusRejected:   "Rejeté",
}

var statusAliases = map[string]RequestStatus{
	"pending":    StatusPending,
	"processing": StatusProcessing,
	"ready":      StatusReady,
	"withdrawn":  StatusWithdrawn,
	"rejected":   StatusRejected,
}

// ParseRequestStatus accepts the stored code or its English alias.
func ParseRequestStatus(raw string) (RequestStatus, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := statusLabels[RequestStatus(value)]; ok {
		return RequestStatus(value), true
	}
	status, ok := statusAliases[value]
	return status, ok
}

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the display value.
func (s RequestStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Terminal reports whether no further transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s == StatusWithdrawn || s == StatusRejected
}

// marksProcessed reports whether entering s stamps processed_at.
func (s RequestStatus) marksProcessed() bool {
	return s == StatusReady || s == StatusWithdrawn || s == StatusRejected
}

var allowedTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:    {StatusProcessing, StatusReady, StatusRejected},
	StatusProcessing: {StatusReady, StatusRejected},
	StatusReady:      {StatusWithdrawn, StatusRejected},
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to RequestStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RequestKind identifies one of the three request tables.
type RequestKind string

const (
	KindTranscript  RequestKind = "releve"
	KindCertificate RequestKind = "certificat"
	KindAttestation RequestKind = "attestation"
)

// AllKinds lists kinds in dashboard order.
var AllKinds = []RequestKind{KindTranscript, KindCertificate, KindAttestation}

var kindAliases = map[string]RequestKind{
	"transcript":  KindTranscript,
	"certificate": KindCertificate,
}

var kindPrefixes = map[RequestKind]string{
	KindTranscript:  "R",
	KindCertificate: "CERT",
	KindAttestation: "A",
}

var kindLabels = map[RequestKind]string{
	KindTranscript:  "relevé de notes",
	KindCertificate: "certificat de scolarité",
	KindAttestation: "attestation",
}

// ParseRequestKind accepts the stored code or its English alias.
func ParseRequestKind(raw string) (RequestKind, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := kindPrefixes[RequestKind(value)]; ok {
		return RequestKind(value), true
	}
	kind, ok := kindAliases[value]
	return kind, ok
}

// Prefix returns the public number prefix.
func (k RequestKind) Prefix() string {
	return kindPrefixes[k]
}

// Label returns the human readable document name.
func (k RequestKind) Label() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return string(k)
}

// FormatPublicNumber renders the public number for sequence n.
func FormatPublicNumber(kind RequestKind, n int64) string {
	return fmt.Sprintf("%s-%04d", kind.Prefix(), n)
}

// Lifecycle holds the fields every request kind shares.
type Lifecycle struct {
	ID              int64         `db:"id" json:"id"`
	PublicNumber    string        `db:"public_number" json:"numero"`
	StudentID       string        `db:"student_id" json:"etudiant_id"`
	Status          RequestStatus `db:"status" json:"statut"`
	RequestedAt     time.Time     `db:"requested_at" json:"date_demande"`
	ProcessedAt     *time.Time    `db:"processed_at" json:"date_traitement,omitempty"`
	RejectionReason *string       `db:"rejection_reason" json:"motif_rejet,omitempty"`
}

// Number returns the public number.
func (l Lifecycle) Number() string { return l.PublicNumber }

// CurrentStatus returns the stored status.
func (l Lifecycle) CurrentStatus() RequestStatus { return l.Status }

// Envelope returns the shared lifecycle fields.
func (l Lifecycle) Envelope() Lifecycle { return l }

// TransitionError describes why Apply refused a status change.
type TransitionError struct {
	From     RequestStatus
	To       RequestStatus
	Conflict bool
	Reason   string
}

func (e *TransitionError) Error() string {
	return e.Reason
}

// Apply computes the lifecycle after moving to next. The receiver is not modified.
func (l Lifecycle) Apply(next RequestStatus, reason string, now time.Time) (Lifecycle, error) {
	if !next.Valid() {
		return l, &TransitionError{From: l.Status, To: next, Reason: fmt.Sprintf("invalid status %q", next)}
	}
	reason = strings.TrimSpace(reason)
	if next == StatusRejected && reason == "" {
		return l, &TransitionError{From: l.Status, To: next, Reason: "reason required"}
	}
	if l.Status.Terminal() {
		return l, &TransitionError{From: l.Status, To: next, Conflict: true, Reason: fmt.Sprintf("request %s is already %s", l.PublicNumber, l.Status.Label())}
	}
	if l.Status == next {
		return l, &TransitionError{From: l.Status, To: next, Conflict: true, Reason: fmt.Sprintf("request %s is already in status %s", l.PublicNumber, next.Label())}
	}
	if !CanTransition(l.Status, next) {
		return l, &TransitionError{From: l.Status, To: next, Conflict: true, Reason: fmt.Sprintf("cannot move request %s from %s to %s", l.PublicNumber, l.Status.Label(), next.Label())}
	}

	updated := l
	updated.Status = next
	if updated.ProcessedAt == nil && next.marksProcessed() {
		ts := now
		updated.ProcessedAt = &ts
	}
	if next == StatusRejected {
		updated.RejectionReason = &reason
	}
	return updated, nil
}

// RequestRecord is implemented by every request kind so heterogeneous records can be projected uniformly.
type RequestRecord interface {
	Kind() RequestKind
	Number() string
	CurrentStatus() RequestStatus
	Envelope() Lifecycle
	Summary() map[string]interface{}
}

// RequestFilter narrows per-table listing queries.
type RequestFilter struct {
	Status    *RequestStatus
	StudentID string
	From      *time.Time
	To        *time.Time // exclusive
}

// StatusHistory is one audit row written for each applied transition.
type StatusHistory struct {
	ID         string        `db:"id" json:"id"`
	Kind       RequestKind   `db:"request_kind" json:"type_demande"`
	RequestID  int64         `db:"request_id" json:"demande_id"`
	FromStatus RequestStatus `db:"from_status" json:"ancien_statut"`
	ToStatus   RequestStatus `db:"to_status" json:"nouveau_statut"`
	Reason     *string       `db:"reason" json:"motif,omitempty"`
	ActorID    *string       `db:"actor_id" json:"acteur_id,omitempty"`
	ChangedAt  time.Time     `db:"changed_at" json:"date_changement"`
}

// StatusChange is a staff request to move a record to Next.
type StatusChange struct {
	Next    RequestStatus
	Reason  string
	ActorID string
	At      time.Time
}
