package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/scolarite-api/internal/models"
)

// ErrDuplicateNumber is returned when the unique public number index rejects an insert.
var ErrDuplicateNumber = errors.New("duplicate public number")

const lifecycleColumns = "id, public_number, student_id, status, requested_at, processed_at, rejection_reason"

// lifecycleTable implements the queries every request table shares.
type lifecycleTable struct {
	db      *sqlx.DB
	kind    models.RequestKind
	table   string
	columns string
}

func newLifecycleTable(db *sqlx.DB, kind models.RequestKind, extraColumns string) lifecycleTable {
	table := requestTables[kind]
	return lifecycleTable{db: db, kind: kind, table: table, columns: lifecycleColumns + ", " + extraColumns}
}

// Kind returns the request kind stored in the table.
func (t lifecycleTable) Kind() models.RequestKind {
	return t.kind
}

func (t lifecycleTable) listQuery(filter models.RequestFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("requested_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("requested_at < $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", t.columns, t.table)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY requested_at DESC, id DESC"
	return query, args
}

func (t lifecycleTable) byIDQuery() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", t.columns, t.table)
}

func (t lifecycleTable) byNumberQuery() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE UPPER(public_number) = UPPER($1) ORDER BY id", t.columns, t.table)
}

// Transition applies change under a row lock and records the history row in the same transaction.
func (t lifecycleTable) Transition(ctx context.Context, id int64, change models.StatusChange) (before, after models.Lifecycle, err error) {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return before, after, fmt.Errorf("begin %s transition: %w", t.kind, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	lockQuery := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 FOR UPDATE", lifecycleColumns, t.table)
	if err = tx.GetContext(ctx, &before, lockQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return before, after, sql.ErrNoRows
		}
		return before, after, fmt.Errorf("lock %s %d: %w", t.kind, id, err)
	}

	after, err = before.Apply(change.Next, change.Reason, change.At)
	if err != nil {
		return before, after, err
	}

	update := fmt.Sprintf("UPDATE %s SET status = $2, processed_at = $3, rejection_reason = $4 WHERE id = $1 AND status = $5", t.table)
	res, err := tx.ExecContext(ctx, update, id, after.Status, after.ProcessedAt, after.RejectionReason, before.Status)
	if err != nil {
		return before, after, fmt.Errorf("update %s status: %w", t.kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return before, after, fmt.Errorf("update %s status rows: %w", t.kind, err)
	}
	if affected == 0 {
		return before, after, sql.ErrNoRows
	}

	entry := models.StatusHistory{
		ID:         uuid.NewString(),
		Kind:       t.kind,
		RequestID:  id,
		FromStatus: before.Status,
		ToStatus:   after.Status,
		ChangedAt:  change.At,
	}
	if reason := strings.TrimSpace(change.Reason); reason != "" {
		entry.Reason = &reason
	}
	if change.ActorID != "" {
		actor := change.ActorID
		entry.ActorID = &actor
	}
	const history = `INSERT INTO request_status_history (id, request_kind, request_id, from_status, to_status, reason, actor_id, changed_at)
        VALUES (:id, :request_kind, :request_id, :from_status, :to_status, :reason, :actor_id, :changed_at)`
	if _, err = tx.NamedExecContext(ctx, history, entry); err != nil {
		return before, after, fmt.Errorf("insert %s status history: %w", t.kind, err)
	}

	if err = tx.Commit(); err != nil {
		return before, after, fmt.Errorf("commit %s transition: %w", t.kind, err)
	}
	return before, after, nil
}

// History lists recorded transitions for a request, oldest first.
func (t lifecycleTable) History(ctx context.Context, id int64) ([]models.StatusHistory, error) {
	const query = `SELECT id, request_kind, request_id, from_status, to_status, reason, actor_id, changed_at FROM request_status_history WHERE request_kind = $1 AND request_id = $2 ORDER BY changed_at ASC`
	var entries []models.StatusHistory
	if err := t.db.SelectContext(ctx, &entries, query, t.kind, id); err != nil {
		return nil, fmt.Errorf("list %s status history: %w", t.kind, err)
	}
	return entries, nil
}

// CountByStatus groups the table by status.
func (t lifecycleTable) CountByStatus(ctx context.Context) (models.StatusCounts, error) {
	query := fmt.Sprintf("SELECT status, COUNT(*) AS total FROM %s GROUP BY status", t.table)
	var rows []struct {
		Status models.RequestStatus `db:"status"`
		Total  int                  `db:"total"`
	}
	if err := t.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count %s by status: %w", t.kind, err)
	}
	counts := models.NewStatusCounts()
	for _, row := range rows {
		counts[row.Status] += row.Total
	}
	return counts, nil
}

// CountRequestedBetween counts rows with from <= requested_at < to.
func (t lifecycleTable) CountRequestedBetween(ctx context.Context, from, to time.Time) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE requested_at >= $1 AND requested_at < $2", t.table)
	var total int
	if err := t.db.GetContext(ctx, &total, query, from, to); err != nil {
		return 0, fmt.Errorf("count %s between: %w", t.kind, err)
	}
	return total, nil
}

// insert reserves the next number and runs the insert inside one transaction.
func (t lifecycleTable) insert(ctx context.Context, seq *SequenceGenerator, assign func(id int64, number string) interface{}, query string) (err error) {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create %s: %w", t.kind, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	id, number, err := seq.Next(ctx, tx, t.kind)
	if err != nil {
		return err
	}
	if _, err = tx.NamedExecContext(ctx, query, assign(id, number)); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create %s %s: %w", t.kind, number, ErrDuplicateNumber)
		}
		return fmt.Errorf("create %s: %w", t.kind, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create %s: %w", t.kind, err)
	}
	return nil
}

func selectRecords[T models.RequestRecord](ctx context.Context, db *sqlx.DB, query string, args ...interface{}) ([]models.RequestRecord, error) {
	var rows []T
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]models.RequestRecord, len(rows))
	for i := range rows {
		out[i] = rows[i]
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
