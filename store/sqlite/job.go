package sqlitestore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/QuyenFunc/vietcmc/store"
)

func (d *DB) InsertJob(ctx context.Context, j *store.Job) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: InsertJob take conn: %w", err)
	}
	defer d.pool.Put(conn)

	if j.Status == "" {
		j.Status = store.JobQueued
	}
	j.CreatedAt = time.Now()
	metadata := j.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO job (job_id, tenant_id, client_supplied_comment_id, payload_text, job_type, metadata, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				j.JobID, j.TenantID, j.ClientSuppliedCommentID, j.PayloadText,
				string(j.JobType), string(metadata), string(j.Status), timeFormat(j.CreatedAt),
			},
		})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") || sqlite.ErrCode(err) == sqlite.CONSTRAINT_UNIQUE {
			return store.ErrConflict
		}
		return fmt.Errorf("sqlitestore: InsertJob: %w", err)
	}
	return nil
}

func (d *DB) MarkProcessing(ctx context.Context, jobID string) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: MarkProcessing take conn: %w", err)
	}
	defer d.pool.Put(conn)

	// status IN (queued, processing) rather than status = queued: a stream
	// redelivery (broker claimed-idle requeue) hands the same job back to a
	// new consumer after the original already marked it processing, and
	// that re-entry must succeed rather than get nacked into a permanent
	// stuck-in-processing state.
	err = sqlitex.Execute(conn,
		`UPDATE job SET status = ?, started_at = ? WHERE job_id = ? AND status IN (?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{string(store.JobProcessing), timeFormat(time.Now()), jobID, string(store.JobQueued), string(store.JobProcessing)},
		})
	if err != nil {
		return fmt.Errorf("sqlitestore: MarkProcessing: %w", err)
	}
	if conn.Changes() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *DB) MarkCompleted(ctx context.Context, jobID string, result *store.JobResult) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: MarkCompleted take conn: %w", err)
	}
	defer d.pool.Put(conn)

	labels, err := json.Marshal(result.Labels)
	if err != nil {
		return fmt.Errorf("sqlitestore: MarkCompleted marshal labels: %w", err)
	}

	err = sqlitex.Execute(conn,
		`UPDATE job SET status = ?, moderation_action = ?, sentiment = ?, confidence = ?, reasoning = ?,
		 labels = ?, severity = ?, processing_duration_ms = ?, completed_at = ?
		 WHERE job_id = ? AND status = ?`,
		&sqlitex.ExecOptions{
			Args: []any{
				string(store.JobCompleted), string(result.ModerationAction), string(result.Sentiment),
				result.Confidence, result.Reasoning, string(labels), result.Severity,
				result.ProcessingDurationMs, timeFormat(time.Now()), jobID, string(store.JobProcessing),
			},
		})
	if err != nil {
		return fmt.Errorf("sqlitestore: MarkCompleted: %w", err)
	}
	if conn.Changes() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: MarkFailed take conn: %w", err)
	}
	defer d.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE job SET status = ?, reasoning = ?, completed_at = ? WHERE job_id = ? AND status IN (?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				string(store.JobFailed), reason, timeFormat(time.Now()), jobID,
				string(store.JobQueued), string(store.JobProcessing),
			},
		})
	if err != nil {
		return fmt.Errorf("sqlitestore: MarkFailed: %w", err)
	}
	if conn.Changes() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const jobColumns = `job_id, tenant_id, client_supplied_comment_id, payload_text, job_type, metadata, status,
	moderation_action, sentiment, confidence, reasoning, labels, severity, processing_duration_ms,
	created_at, started_at, completed_at`

func scanJob(stmt *sqlite.Stmt) (*store.Job, error) {
	j := &store.Job{
		JobID:                   stmt.GetText("job_id"),
		TenantID:                stmt.GetInt64("tenant_id"),
		ClientSuppliedCommentID: stmt.GetText("client_supplied_comment_id"),
		PayloadText:             stmt.GetText("payload_text"),
		JobType:                 store.JobType(stmt.GetText("job_type")),
		Metadata:                []byte(stmt.GetText("metadata")),
		Status:                  store.JobStatus(stmt.GetText("status")),
		ModerationAction:        store.ModerationAction(stmt.GetText("moderation_action")),
		Sentiment:               store.Sentiment(stmt.GetText("sentiment")),
		Confidence:              stmt.GetFloat("confidence"),
		Reasoning:               stmt.GetText("reasoning"),
		Severity:                int(stmt.GetInt64("severity")),
		ProcessingDurationMs:    stmt.GetInt64("processing_duration_ms"),
	}

	var labels []string
	if raw := stmt.GetText("labels"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &labels); err != nil {
			return nil, fmt.Errorf("unmarshal labels: %w", err)
		}
	}
	j.Labels = labels

	var err error
	j.CreatedAt, err = timeParse(stmt.GetText("created_at"))
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	j.StartedAt, err = timeParse(stmt.GetText("started_at"))
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	j.CompletedAt, err = timeParse(stmt.GetText("completed_at"))
	if err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	return j, nil
}

func (d *DB) GetJob(ctx context.Context, jobID string, tenantID int64) (*store.Job, error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: GetJob take conn: %w", err)
	}
	defer d.pool.Put(conn)

	var job *store.Job
	var scanErr error
	err = sqlitex.Execute(conn,
		fmt.Sprintf(`SELECT %s FROM job WHERE job_id = ? AND tenant_id = ? LIMIT 1`, jobColumns),
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				job, scanErr = scanJob(stmt)
				return scanErr
			},
			Args: []any{jobID, tenantID},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: GetJob: %w", err)
	}
	if job == nil {
		return nil, store.ErrNotFound
	}
	return job, nil
}

func (d *DB) ListJobsByTenant(ctx context.Context, tenantID int64, limit int) ([]*store.Job, error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: ListJobsByTenant take conn: %w", err)
	}
	defer d.pool.Put(conn)

	if limit <= 0 {
		limit = 100
	}

	var jobs []*store.Job
	var scanErr error
	err = sqlitex.Execute(conn,
		fmt.Sprintf(`SELECT %s FROM job WHERE tenant_id = ? ORDER BY created_at DESC LIMIT ?`, jobColumns),
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				job, err := scanJob(stmt)
				if err != nil {
					scanErr = err
					return err
				}
				jobs = append(jobs, job)
				return nil
			},
			Args: []any{tenantID, limit},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: ListJobsByTenant: %w", err)
	}
	if scanErr != nil {
		return nil, scanErr
	}
	return jobs, nil
}
