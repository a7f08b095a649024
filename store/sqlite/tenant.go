package sqlitestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/QuyenFunc/vietcmc/store"
)

func isUniqueConstraint(err error) bool {
	return sqlite.ErrCode(err) == sqlite.CONSTRAINT_UNIQUE || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (d *DB) CreateTenant(ctx context.Context, t *store.Tenant) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: CreateTenant take conn: %w", err)
	}
	defer d.pool.Put(conn)

	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = store.TenantActive
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO tenant (app_id, email, organization_name, password_hash, api_key, hmac_secret, webhook_url, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				t.AppID, t.Email, t.OrganizationName, t.PasswordHash,
				t.APIKey, t.HMACSecret, t.WebhookURL, string(t.Status),
				timeFormat(t.CreatedAt), timeFormat(t.UpdatedAt),
			},
		})
	if err != nil {
		if isUniqueConstraint(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("sqlitestore: CreateTenant insert: %w", err)
	}

	t.TenantID = conn.LastInsertRowID()
	return nil
}

const tenantColumns = `id, app_id, email, organization_name, password_hash, api_key, hmac_secret, webhook_url, status, created_at, updated_at, last_used_at`

func scanTenant(stmt *sqlite.Stmt) (*store.Tenant, error) {
	t := &store.Tenant{
		TenantID:         stmt.GetInt64("id"),
		AppID:            stmt.GetText("app_id"),
		Email:            stmt.GetText("email"),
		OrganizationName: stmt.GetText("organization_name"),
		PasswordHash:     stmt.GetText("password_hash"),
		APIKey:           stmt.GetText("api_key"),
		HMACSecret:       stmt.GetText("hmac_secret"),
		WebhookURL:       stmt.GetText("webhook_url"),
		Status:           store.TenantStatus(stmt.GetText("status")),
	}

	var err error
	t.CreatedAt, err = timeParse(stmt.GetText("created_at"))
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	t.UpdatedAt, err = timeParse(stmt.GetText("updated_at"))
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	t.LastUsedAt, err = timeParse(stmt.GetText("last_used_at"))
	if err != nil {
		return nil, fmt.Errorf("parse last_used_at: %w", err)
	}
	return t, nil
}

func (d *DB) getTenantBy(ctx context.Context, column string, arg any) (*store.Tenant, error) {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: getTenantBy take conn: %w", err)
	}
	defer d.pool.Put(conn)

	var tenant *store.Tenant
	var scanErr error
	err = sqlitex.Execute(conn,
		fmt.Sprintf(`SELECT %s FROM tenant WHERE %s = ? LIMIT 1`, tenantColumns, column),
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				tenant, scanErr = scanTenant(stmt)
				return scanErr
			},
			Args: []any{arg},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: getTenantBy %s: %w", column, err)
	}
	if tenant == nil {
		return nil, store.ErrNotFound
	}
	return tenant, nil
}

func (d *DB) GetTenantByAPIKey(ctx context.Context, apiKey string) (*store.Tenant, error) {
	return d.getTenantBy(ctx, "api_key", apiKey)
}

func (d *DB) GetTenantByAppID(ctx context.Context, appID string) (*store.Tenant, error) {
	return d.getTenantBy(ctx, "app_id", appID)
}

func (d *DB) GetTenantByEmail(ctx context.Context, email string) (*store.Tenant, error) {
	return d.getTenantBy(ctx, "email", email)
}

func (d *DB) GetTenant(ctx context.Context, tenantID int64) (*store.Tenant, error) {
	return d.getTenantBy(ctx, "id", tenantID)
}

func (d *DB) UpdateWebhookURL(ctx context.Context, tenantID int64, webhookURL string) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: UpdateWebhookURL take conn: %w", err)
	}
	defer d.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE tenant SET webhook_url = ?, updated_at = ? WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{webhookURL, timeFormat(time.Now()), tenantID}})
	if err != nil {
		return fmt.Errorf("sqlitestore: UpdateWebhookURL: %w", err)
	}
	if conn.Changes() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *DB) TouchLastUsed(ctx context.Context, tenantID int64) error {
	conn, err := d.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: TouchLastUsed take conn: %w", err)
	}
	defer d.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE tenant SET last_used_at = ? WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{timeFormat(time.Now()), tenantID}})
	if err != nil {
		return fmt.Errorf("sqlitestore: TouchLastUsed: %w", err)
	}
	return nil
}
