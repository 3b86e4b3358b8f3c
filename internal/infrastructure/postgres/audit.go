package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// AuditEvent is a single auth trail entry. UserID and Email may be empty
// (e.g. failed login for an unknown email).
type AuditEvent struct {
	UserID    string
	Email     string
	Action    string
	IP        string
	UserAgent string
	Metadata  map[string]any
}

// AuditRecorder appends auth events to the auth_events table. Writes are best
// effort: failures are logged and never surfaced to the request path.
type AuditRecorder struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

func NewAuditRecorder(pool *pgxpool.Pool, logger *logrus.Logger) *AuditRecorder {
	return &AuditRecorder{pool: pool, logger: logger}
}

func (a *AuditRecorder) Record(ctx context.Context, ev AuditEvent) {
	if a == nil || a.pool == nil {
		return
	}
	md, _ := json.Marshal(ev.Metadata)
	_, err := a.pool.Exec(ctx, `
		INSERT INTO auth_events (user_id, email, action, ip, user_agent, metadata)
		VALUES (NULLIF($1, '')::uuid, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), $6)
	`, ev.UserID, ev.Email, ev.Action, ev.IP, ev.UserAgent, md)
	if err != nil && a.logger != nil {
		a.logger.WithError(err).WithField("action", ev.Action).Warn("audit insert failed")
	}
}
