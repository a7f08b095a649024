package sqlitestore

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/QuyenFunc/vietcmc/store"
)

func (d *DB) InsertWebhookAttempt(ctx context.Context, a *store.WebhookAttempt) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: InsertWebhookAttempt take conn: %w", err)
	}
	defer d.pool.Put(conn)

	headers := a.RequestHeaders
	if len(headers) == 0 {
		headers = []byte("{}")
	}

	var statusCode any
	if a.ResponseStatusCode != 0 {
		statusCode = a.ResponseStatusCode
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO webhook_attempt (attempt_id, job_id, tenant_id, webhook_url, request_payload, request_headers,
		 response_status_code, response_body_snippet, response_time_ms, attempt_number, status, error_message, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				a.AttemptID, a.JobID, a.TenantID, a.WebhookURL, string(a.RequestPayload), string(headers),
				statusCode, a.ResponseBodySnippet, a.ResponseTimeMs, a.AttemptNumber,
				string(a.Status), a.ErrorMessage, timeFormat(a.SentAt),
			},
		})
	if err != nil {
		return fmt.Errorf("sqlitestore: InsertWebhookAttempt: %w", err)
	}
	return nil
}

const webhookAttemptColumns = `attempt_id, job_id, tenant_id, webhook_url, request_payload, request_headers,
	response_status_code, response_body_snippet, response_time_ms, attempt_number, status, error_message, sent_at`

func scanWebhookAttempt(stmt *sqlite.Stmt) (*store.WebhookAttempt, error) {
	a := &store.WebhookAttempt{
		AttemptID:           stmt.GetText("attempt_id"),
		JobID:               stmt.GetText("job_id"),
		TenantID:            stmt.GetInt64("tenant_id"),
		WebhookURL:          stmt.GetText("webhook_url"),
		RequestPayload:      []byte(stmt.GetText("request_payload")),
		RequestHeaders:      []byte(stmt.GetText("request_headers")),
		ResponseStatusCode:  int(stmt.GetInt64("response_status_code")),
		ResponseBodySnippet: stmt.GetText("response_body_snippet"),
		ResponseTimeMs:      stmt.GetInt64("response_time_ms"),
		AttemptNumber:       int(stmt.GetInt64("attempt_number")),
		Status:              store.WebhookAttemptStatus(stmt.GetText("status")),
		ErrorMessage:        stmt.GetText("error_message"),
	}
	var err error
	a.SentAt, err = timeParse(stmt.GetText("sent_at"))
	if err != nil {
		return nil, fmt.Errorf("parse sent_at: %w", err)
	}
	return a, nil
}

func (d *DB) ListWebhookAttempts(ctx context.Context, jobID string) ([]*store.WebhookAttempt, error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: ListWebhookAttempts take conn: %w", err)
	}
	defer d.pool.Put(conn)

	var attempts []*store.WebhookAttempt
	var scanErr error
	err = sqlitex.Execute(conn,
		fmt.Sprintf(`SELECT %s FROM webhook_attempt WHERE job_id = ? ORDER BY attempt_number ASC`, webhookAttemptColumns),
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				a, err := scanWebhookAttempt(stmt)
				if err != nil {
					scanErr = err
					return err
				}
				attempts = append(attempts, a)
				return nil
			},
			Args: []any{jobID},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: ListWebhookAttempts: %w", err)
	}
	if scanErr != nil {
		return nil, scanErr
	}
	return attempts, nil
}
