package access

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cairnhq/cairn/pkg/observability"
)

// SQLMemberships is a MembershipSource over one membership table.
// Table and column names come from the entity family descriptor at
// wiring time; query shapes are identical across families.
type SQLMemberships struct {
	db        *sql.DB
	table     string
	entityCol string
	metrics   *observability.Metrics
}

// NewSQLMemberships creates a membership source for the given table,
// e.g. ("workspace_members", "workspace_id").
func NewSQLMemberships(db *sql.DB, table, entityCol string) *SQLMemberships {
	return &SQLMemberships{db: db, table: table, entityCol: entityCol}
}

// WithMetrics enables query duration and failure accounting.
func (s *SQLMemberships) WithMetrics(m *observability.Metrics) *SQLMemberships {
	s.metrics = m
	return s
}

func (s *SQLMemberships) observe(op string, start time.Time, err error) {
	observeQuery(s.metrics, s.table+"."+op, start, err)
}

// observeQuery records one store query against the shared store metrics.
// The query label is table-qualified, keeping cardinality bounded by the
// schema.
func observeQuery(m *observability.Metrics, query string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.StoreQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
	if err != nil {
		m.StoreErrorsTotal.WithLabelValues(query).Inc()
	}
}

// FindMembership returns the (user, entity) row, or (nil, nil) when no
// row exists.
func (s *SQLMemberships) FindMembership(ctx context.Context, userID, entityID int64) (_ *Membership, err error) {
	defer func(start time.Time) { s.observe("find_membership", start, err) }(time.Now())

	query := fmt.Sprintf(
		`SELECT id, user_id, %s, role, comment, created_at FROM %s WHERE user_id = $1 AND %s = $2`,
		s.entityCol, s.table, s.entityCol,
	)
	m, err := scanMembership(s.db.QueryRowContext(ctx, query, userID, entityID))
	if err == sql.ErrNoRows {
		// Absence is an answer, not a store failure.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find membership in %s: %w", s.table, err)
	}
	return m, nil
}

// FindMemberships fetches the user's rows across all entity ids in one
// query, ordered by entity id for deterministic path selection.
func (s *SQLMemberships) FindMemberships(ctx context.Context, userID int64, entityIDs []int64) (_ []*Membership, err error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	defer func(start time.Time) { s.observe("find_memberships", start, err) }(time.Now())

	placeholders, args := placeholderList(entityIDs, 2)
	args = append([]interface{}{userID}, args...)
	query := fmt.Sprintf(
		`SELECT id, user_id, %s, role, comment, created_at FROM %s WHERE user_id = $1 AND %s IN (%s) ORDER BY %s ASC`,
		s.entityCol, s.table, s.entityCol, placeholders, s.entityCol,
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to batch-fetch memberships from %s: %w", s.table, err)
	}
	defer rows.Close()

	var memberships []*Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership from %s: %w", s.table, err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// ListForEntity returns every membership row of one container, ordered
// by creation time. Used by the member-management surface, not by the
// guards themselves.
func (s *SQLMemberships) ListForEntity(ctx context.Context, entityID int64) (_ []*Membership, err error) {
	defer func(start time.Time) { s.observe("list_for_entity", start, err) }(time.Now())

	query := fmt.Sprintf(
		`SELECT id, user_id, %s, role, comment, created_at FROM %s WHERE %s = $1 ORDER BY created_at ASC, id ASC`,
		s.entityCol, s.table, s.entityCol,
	)
	rows, err := s.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships from %s: %w", s.table, err)
	}
	defer rows.Close()

	var memberships []*Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership from %s: %w", s.table, err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// SQLLinks is a LinkSource over one association table, e.g.
// ("milestone_projects", "milestone_id", "project_id").
type SQLLinks struct {
	db        *sql.DB
	table     string
	childCol  string
	parentCol string
	metrics   *observability.Metrics
}

// NewSQLLinks creates a link source for the given association table.
func NewSQLLinks(db *sql.DB, table, childCol, parentCol string) *SQLLinks {
	return &SQLLinks{db: db, table: table, childCol: childCol, parentCol: parentCol}
}

// WithMetrics enables query duration and failure accounting.
func (l *SQLLinks) WithMetrics(m *observability.Metrics) *SQLLinks {
	l.metrics = m
	return l
}

// ParentIDs returns the ids linked to the child, sorted ascending.
func (l *SQLLinks) ParentIDs(ctx context.Context, childID int64) ([]int64, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s ASC`,
		l.parentCol, l.table, l.childCol, l.parentCol,
	)
	return l.queryIDs(ctx, "parent_ids", query, childID)
}

// BatchParentIDs returns the distinct parent ids linked to any of the
// children in one query, sorted ascending.
func (l *SQLLinks) BatchParentIDs(ctx context.Context, childIDs []int64) ([]int64, error) {
	if len(childIDs) == 0 {
		return nil, nil
	}
	placeholders, args := placeholderList(childIDs, 1)
	query := fmt.Sprintf(
		`SELECT DISTINCT %s FROM %s WHERE %s IN (%s) ORDER BY %s ASC`,
		l.parentCol, l.table, l.childCol, placeholders, l.parentCol,
	)
	return l.queryIDs(ctx, "batch_parent_ids", query, args...)
}

func (l *SQLLinks) queryIDs(ctx context.Context, op, query string, args ...interface{}) (_ []int64, err error) {
	defer func(start time.Time) { observeQuery(l.metrics, l.table+"."+op, start, err) }(time.Now())

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links from %s: %w", l.table, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan link from %s: %w", l.table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// scanMembership reads one membership row from a row scanner.
func scanMembership(scanner interface {
	Scan(dest ...interface{}) error
}) (*Membership, error) {
	var m Membership
	var role string
	var comment sql.NullString

	err := scanner.Scan(&m.ID, &m.UserID, &m.EntityID, &role, &comment, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Role = Role(role)
	if comment.Valid {
		m.Comment = comment.String
	}
	return &m, nil
}

// placeholderList builds "$n, $n+1, ..." for a dynamic IN clause. The
// positional style is shared by postgres and the sqlite driver used in
// tests, which keeps the batch queries portable.
func placeholderList(ids []int64, start int) (string, []interface{}) {
	parts := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("$%d", start+i)
		args[i] = id
	}
	return strings.Join(parts, ", "), args
}
