package repository

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scolarite-api/internal/models"
)

var requestTables = map[models.RequestKind]string{
	models.KindTranscript:  "transcript_requests",
	models.KindCertificate: "certificate_requests",
	models.KindAttestation: "attestation_requests",
}

// TableFor returns the table backing kind.
func TableFor(kind models.RequestKind) (string, error) {
	table, ok := requestTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown request kind %q", kind)
	}
	return table, nil
}

// SequenceGenerator reserves the next id and public number for a kind.
type SequenceGenerator struct{}

// NewSequenceGenerator constructs a SequenceGenerator.
func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{}
}

// Next locks the kind for the remainder of tx and returns MAX(id)+1 with its public number.
// Concurrent creators of the same kind block on the lock until tx ends.
func (g *SequenceGenerator) Next(ctx context.Context, tx *sqlx.Tx, kind models.RequestKind) (int64, string, error) {
	table, err := TableFor(kind)
	if err != nil {
		return 0, "", err
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, SequenceLockKey(kind)); err != nil {
		return 0, "", fmt.Errorf("lock %s sequence: %w", kind, err)
	}
	var last int64
	if err := tx.GetContext(ctx, &last, fmt.Sprintf(`SELECT COALESCE(MAX(id), 0) FROM %s`, table)); err != nil {
		return 0, "", fmt.Errorf("read %s sequence: %w", kind, err)
	}
	next := last + 1
	return next, models.FormatPublicNumber(kind, next), nil
}

// SequenceLockKey derives the advisory lock key for kind.
func SequenceLockKey(kind models.RequestKind) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("scolarite:sequence:" + string(kind)))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}
