package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/joyeria/internal/logging"
)

// AuditAction is the kind of operation being audited.
type AuditAction string

const (
	ActionExport AuditAction = "export"
	ActionCreate AuditAction = "create"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
)

// AuditSeverity ranks audit entries for review.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

func auditSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionDelete:
		return SeverityHigh
	case ActionCreate, ActionUpdate, ActionExport:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AuditEntry is one recorded operation.
type AuditEntry struct {
	ID           string         `json:"id"`
	Action       AuditAction    `json:"action"`
	Severity     AuditSeverity  `json:"severity"`
	TableKey     string         `json:"tableKey"`
	RecordID     string         `json:"recordId,omitempty"`
	Format       string         `json:"format,omitempty"`
	RowsAffected int            `json:"rowsAffected,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	Detail       map[string]any `json:"detail,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// AuditLogParams are the caller-supplied parts of an entry. Client
// address and user agent are taken from the context.
type AuditLogParams struct {
	Action       AuditAction
	TableKey     string
	RecordID     string
	Format       string
	RowsAffected int
	Detail       map[string]any
}

// AuditQuery filters Recent.
type AuditQuery struct {
	TableKey string
	Action   AuditAction
	Since    time.Time
	Limit    int
}

// DefaultAuditLimit caps Recent when no limit is given.
const DefaultAuditLimit = 100

// AuditLogger records exports and mutations.
type AuditLogger interface {
	Log(ctx context.Context, p AuditLogParams) (*AuditEntry, error)
	Recent(ctx context.Context, q AuditQuery) ([]AuditEntry, error)
}

func newAuditEntry(ctx context.Context, p AuditLogParams) AuditEntry {
	return AuditEntry{
		ID:           uuid.NewString(),
		Action:       p.Action,
		Severity:     auditSeverity(p.Action),
		TableKey:     p.TableKey,
		RecordID:     p.RecordID,
		Format:       p.Format,
		RowsAffected: p.RowsAffected,
		IPAddress:    GetIPAddressFromContext(ctx),
		UserAgent:    GetUserAgentFromContext(ctx),
		Detail:       p.Detail,
		CreatedAt:    time.Now().UTC(),
	}
}

func logEntry(ctx context.Context, e AuditEntry) {
	logging.FromContext(ctx).Info("audit",
		"audit_id", e.ID,
		"action", e.Action,
		"severity", e.Severity,
		"entity", e.TableKey,
		"record_id", e.RecordID,
		"format", e.Format,
		"rows", e.RowsAffected,
		"ip", e.IPAddress,
	)
}

// ----------------------------------------------------------------------------
// In-memory audit log
// ----------------------------------------------------------------------------

// MemoryAuditLog writes entries to slog and keeps the most recent ones in
// a ring buffer. It is used when no database is configured.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	next    int
	full    bool
}

// NewMemoryAuditLog keeps up to capacity entries.
func NewMemoryAuditLog(capacity int) *MemoryAuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditLimit
	}
	return &MemoryAuditLog{entries: make([]AuditEntry, capacity)}
}

// Log records an entry.
func (m *MemoryAuditLog) Log(ctx context.Context, p AuditLogParams) (*AuditEntry, error) {
	e := newAuditEntry(ctx, p)
	logEntry(ctx, e)

	m.mu.Lock()
	m.entries[m.next] = e
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	m.mu.Unlock()

	return &e, nil
}

// Recent returns matching entries, newest first.
func (m *MemoryAuditLog) Recent(_ context.Context, q AuditQuery) ([]AuditEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultAuditLimit
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.next
	if m.full {
		n = len(m.entries)
	}
	out := make([]AuditEntry, 0, min(n, limit))
	for i := 0; i < n && len(out) < limit; i++ {
		idx := (m.next - 1 - i + len(m.entries)) % len(m.entries)
		e := m.entries[idx]
		if q.TableKey != "" && e.TableKey != q.TableKey {
			continue
		}
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		if !q.Since.IsZero() && e.CreatedAt.Before(q.Since) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// ----------------------------------------------------------------------------
// Postgres audit log
// ----------------------------------------------------------------------------

// DBTX is the subset of pgx used by the audit store.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS table_audit_log (
	id            UUID PRIMARY KEY,
	action        TEXT NOT NULL,
	severity      TEXT NOT NULL,
	table_key     TEXT NOT NULL,
	record_id     TEXT,
	format        TEXT,
	rows_affected INTEGER,
	ip_address    INET,
	user_agent    TEXT,
	detail        JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS table_audit_log_created_idx ON table_audit_log (created_at DESC);
CREATE INDEX IF NOT EXISTS table_audit_log_table_idx ON table_audit_log (table_key, created_at DESC);
`

// PgAuditStore persists entries to Postgres and mirrors them to slog.
type PgAuditStore struct {
	db DBTX
}

// NewPgAuditStore wraps a pool or transaction.
func NewPgAuditStore(db DBTX) *PgAuditStore {
	return &PgAuditStore{db: db}
}

// EnsureSchema creates the audit table when missing.
func (s *PgAuditStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, auditSchema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

// Log inserts an entry.
func (s *PgAuditStore) Log(ctx context.Context, p AuditLogParams) (*AuditEntry, error) {
	e := newAuditEntry(ctx, p)

	var detail []byte
	if e.Detail != nil {
		var err error
		if detail, err = json.Marshal(e.Detail); err != nil {
			detail = nil
		}
	}

	var createdAt pgtype.Timestamptz
	err := s.db.QueryRow(ctx, `
		INSERT INTO table_audit_log
			(id, action, severity, table_key, record_id, format, rows_affected, ip_address, user_agent, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		toPgUUID(e.ID), string(e.Action), string(e.Severity), e.TableKey,
		toPgText(e.RecordID), toPgText(e.Format), toPgInt4(e.RowsAffected),
		parseIP(e.IPAddress), toPgText(e.UserAgent), detail,
	).Scan(&createdAt)
	if err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}
	if createdAt.Valid {
		e.CreatedAt = createdAt.Time
	}

	logEntry(ctx, e)
	return &e, nil
}

// Recent returns matching entries, newest first.
func (s *PgAuditStore) Recent(ctx context.Context, q AuditQuery) ([]AuditEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultAuditLimit
	}

	wb := newWhereBuilder()
	wb.Add("table_key", q.TableKey)
	wb.Add("action", string(q.Action))
	if !q.Since.IsZero() {
		wb.AddSince("created_at", q.Since)
	}
	where, args := wb.Build()

	query := `SELECT id, action, severity, table_key, record_id, format, rows_affected,
		ip_address, user_agent, detail, created_at
		FROM table_audit_log` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", wb.NextArgIndex())
	args = append(args, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0)
	for rows.Next() {
		e, err := scanAuditRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanAuditRow(rows pgx.Rows) (*AuditEntry, error) {
	var (
		id           pgtype.UUID
		action       string
		severity     string
		tableKey     string
		recordID     pgtype.Text
		format       pgtype.Text
		rowsAffected pgtype.Int4
		ipAddress    *netip.Addr
		userAgent    pgtype.Text
		detail       []byte
		createdAt    pgtype.Timestamptz
	)
	if err := rows.Scan(&id, &action, &severity, &tableKey, &recordID, &format,
		&rowsAffected, &ipAddress, &userAgent, &detail, &createdAt); err != nil {
		return nil, fmt.Errorf("scan audit row: %w", err)
	}

	e := &AuditEntry{
		ID:        uuidToString(id),
		Action:    AuditAction(action),
		Severity:  AuditSeverity(severity),
		TableKey:  tableKey,
		RecordID:  recordID.String,
		Format:    format.String,
		UserAgent: userAgent.String,
		CreatedAt: createdAt.Time,
	}
	if rowsAffected.Valid {
		e.RowsAffected = int(rowsAffected.Int32)
	}
	if ipAddress != nil {
		e.IPAddress = ipAddress.String()
	}
	if detail != nil {
		_ = json.Unmarshal(detail, &e.Detail)
	}
	return e, nil
}

// whereBuilder accumulates AND-ed equality conditions with numbered args.
type whereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{argIndex: 1}
}

// Add appends "column = $n"; empty values are skipped.
func (wb *whereBuilder) Add(column, value string) {
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = $%d", column, wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// AddSince appends "column >= $n".
func (wb *whereBuilder) AddSince(column string, t time.Time) {
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s >= $%d", column, wb.argIndex))
	wb.args = append(wb.args, t)
	wb.argIndex++
}

// Build returns the WHERE clause (with leading space) and its args.
func (wb *whereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// NextArgIndex is the placeholder number for the next argument.
func (wb *whereBuilder) NextArgIndex() int { return wb.argIndex }

func toPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func toPgInt4(i int) pgtype.Int4 {
	return pgtype.Int4{Int32: int32(i), Valid: true}
}

func toPgUUID(s string) pgtype.UUID {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func uuidToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// parseIP strips a port and parses the address; nil stores NULL.
func parseIP(s string) *netip.Addr {
	if s == "" {
		return nil
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		slog.Debug("audit: unparseable client address", "ip", s)
		return nil
	}
	return &addr
}
