package authapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEvent is one security-relevant auth outcome.
type AuditEvent struct {
	Action    string
	UserID    string
	SessionID string
	IP        string
	UserAgent string
	Meta      map[string]any
}

// AuditSink records auth events. Recording is best-effort.
type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent)
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, AuditEvent) {}

// PostgresAudit appends events to audit_log.
type PostgresAudit struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPostgresAudit(pool *pgxpool.Pool, log *slog.Logger) *PostgresAudit {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresAudit{pool: pool, log: log}
}

func (a *PostgresAudit) Record(ctx context.Context, ev AuditEvent) {
	if a == nil || a.pool == nil {
		return
	}
	action := strings.TrimSpace(ev.Action)
	if action == "" {
		return
	}

	var metaVal *string
	if len(ev.Meta) > 0 {
		if b, err := json.Marshal(ev.Meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := a.pool.Exec(ctx, `
		INSERT INTO audit_log (
			user_id, session_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, $3, now(), $4, $5, $6::jsonb)
	`, trimOrNil(ev.UserID), trimOrNil(ev.SessionID), action, trimOrNil(ev.IP), trimOrNil(ev.UserAgent), metaVal)
	if err != nil {
		a.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" || v == "unknown" {
		return nil
	}
	return v
}

func (h *Handler) audit(ctx context.Context, ev AuditEvent) {
	h.auditSink.Record(context.WithoutCancel(ctx), ev)
	h.events.RecordAuthEvent(ev.Action)
}
