package models

import "time"

// RequestSummary is the part of a request a notification talks about.
type RequestSummary struct {
	Kind        RequestKind
	Number      string
	RequestedAt time.Time
	Quantity    int
}

// StatusEvent describes an applied transition.
type StatusEvent struct {
	Previous RequestStatus
	Current  RequestStatus
	Reason   string
	At       time.Time
}

// SummariseRequest extracts the notification fields from any request kind.
func SummariseRequest(record RequestRecord) RequestSummary {
	env := record.Envelope()
	summary := RequestSummary{Kind: record.Kind(), Number: record.Number(), RequestedAt: env.RequestedAt}
	switch r := record.(type) {
	case Transcript:
		summary.Quantity = r.TotalCopies()
	case Certificate:
		summary.Quantity = r.Quantity
	case Attestation:
		summary.Quantity = r.Quantity
	}
	return summary
}
