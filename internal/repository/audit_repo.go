package repository

import (
	"context"
	"encoding/json"

	"ton_miner/internal/domain"

	"github.com/jackc/pgx/v5"
)

// auditCap bounds the redis and memory trails; postgres keeps everything
const auditCap = 5000

// AuditFilter narrows RecentAudit. Zero values match everything.
type AuditFilter struct {
	UserID   int64
	Category string
	Limit    int
}

func (f AuditFilter) match(e domain.AuditLog) bool {
	return (f.UserID == 0 || e.UserID == f.UserID) && (f.Category == "" || e.Category == f.Category)
}

// AuditLog is the append-only action trail
type AuditLog interface {
	AppendAudit(ctx context.Context, entry domain.AuditLog) error
	// RecentAudit returns newest first
	RecentAudit(ctx context.Context, f AuditFilter) ([]domain.AuditLog, error)
}

func (r *PostgresRepository) AppendAudit(ctx context.Context, entry domain.AuditLog) error {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil || entry.Details == nil {
		detailsJSON = []byte("{}")
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO audit_logs (user_id, action, category, details, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
	`, entry.UserID, entry.Action, entry.Category, string(detailsJSON), entry.CreatedAt)
	return err
}

func (r *PostgresRepository) RecentAudit(ctx context.Context, f AuditFilter) ([]domain.AuditLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, action, category, details::text, created_at
		FROM audit_logs
		WHERE ($1::bigint = 0 OR user_id = $1) AND ($2::text = '' OR category = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, f.UserID, f.Category, clampLimit(f.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAuditLogs(rows)
}

func scanAuditLogs(rows pgx.Rows) ([]domain.AuditLog, error) {
	logs := make([]domain.AuditLog, 0)
	for rows.Next() {
		var (
			entry       domain.AuditLog
			detailsJSON string
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.Category, &detailsJSON, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(detailsJSON), &entry.Details); err != nil {
			entry.Details = make(map[string]any)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func auditKey() string   { return redisPrefix + "audit" }
func auditSeqKey() string { return redisPrefix + "audit_seq" }

// AppendAudit pushes the entry onto a capped list, newest at the head
func (r *RedisRepository) AppendAudit(ctx context.Context, entry domain.AuditLog) error {
	id, err := r.rdb.Incr(ctx, auditSeqKey()).Result()
	if err != nil {
		return err
	}
	entry.ID = id
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, auditKey(), b)
	pipe.LTrim(ctx, auditKey(), 0, auditCap-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisRepository) RecentAudit(ctx context.Context, f AuditFilter) ([]domain.AuditLog, error) {
	limit := clampLimit(f.Limit)
	vals, err := r.rdb.LRange(ctx, auditKey(), 0, auditCap-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.AuditLog, 0)
	for _, v := range vals {
		var entry domain.AuditLog
		if err := json.Unmarshal([]byte(v), &entry); err != nil || !f.match(entry) {
			continue
		}
		out = append(out, entry)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepository) AppendAudit(_ context.Context, entry domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auditSeq++
	entry.ID = r.auditSeq
	r.audit = append(r.audit, entry)
	if len(r.audit) > auditCap {
		r.audit = r.audit[len(r.audit)-auditCap:]
	}
	return nil
}

func (r *MemoryRepository) RecentAudit(_ context.Context, f AuditFilter) ([]domain.AuditLog, error) {
	limit := clampLimit(f.Limit)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.AuditLog, 0)
	for i := len(r.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if f.match(r.audit[i]) {
			out = append(out, r.audit[i])
		}
	}
	return out, nil
}
