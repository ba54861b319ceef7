package sqlite

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/starford/lightnote/internal/query"
)

// dbtx is the common surface of *sql.DB and *sql.Tx, letting the entity
// helpers run both standalone and inside transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// nullable adapts an optional reference for binding.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// paginate applies a page window. SQLite has no offset-without-limit
// form, so a bare offset uses the unbounded LIMIT -1 spelling.
func paginate(b sq.SelectBuilder, p query.Page) sq.SelectBuilder {
	switch {
	case p.Limit > 0:
		b = b.Limit(uint64(p.Limit))
		if p.Offset > 0 {
			b = b.Offset(uint64(p.Offset))
		}
	case p.Offset > 0:
		b = b.Suffix("LIMIT -1 OFFSET ?", p.Offset)
	}
	return b
}

// orderClause builds a deterministic ORDER BY: the requested column and
// direction with the primary key as tiebreak.
func orderClause(col string, o query.Order) string {
	dir := "DESC"
	if o == query.Asc {
		dir = "ASC"
	}
	return col + " " + dir + ", id ASC"
}

// scopeCond translates a tri-state reference filter into a condition on
// col; ok is false for the match-any case.
func scopeCond(col string, s query.Scope) (sq.Sqlizer, bool) {
	if s.IsAny() {
		return nil, false
	}
	if s.IsRoot() {
		return sq.Eq{col: nil}, true
	}
	id, _ := s.Value()
	return sq.Eq{col: id}, true
}

// tagsCond matches notes carrying any of the requested tags. Tags are
// stored as a JSON array, so membership goes through json_each.
func tagsCond(tags []string) sq.Sqlizer {
	ph := strings.TrimSuffix(strings.Repeat("?,", len(tags)), ",")
	args := make([]any, len(tags))
	for i, t := range tags {
		args[i] = t
	}
	return sq.Expr(
		"EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value IN ("+ph+"))",
		args...)
}

// searchCond is a case-insensitive substring match over title, content,
// and the tag list joined with spaces. Joining keeps JSON punctuation
// out of the haystack, so a search for `","` cannot match across tag
// boundaries.
func searchCond(text string) sq.Sqlizer {
	return sq.Expr("instr(lower(title || ' ' || content || ' ' || "+
		"coalesce((SELECT group_concat(json_each.value, ' ') FROM json_each(notes.tags)), '')), ?) > 0",
		strings.ToLower(text))
}
