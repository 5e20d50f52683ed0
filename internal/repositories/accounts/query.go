package accounts

import (
	"strconv"
	"strings"

	"github.com/dmitrijs2005/userkit/internal/common"
	"github.com/dmitrijs2005/userkit/internal/models"
)

// searchColumns maps the column names accepted in Query.SearchColumns.
var searchColumns = map[string]string{
	"login":        "a.login",
	"slug":         "a.slug",
	"email":        "a.email",
	"display_name": "a.display_name",
}

type whereBuilder struct {
	clauses []string
	args    []any
}

func (b *whereBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *whereBuilder) list(values []string) string {
	ph := make([]string, len(values))
	for i, v := range values {
		ph[i] = b.arg(v)
	}
	return strings.Join(ph, ", ")
}

func (b *whereBuilder) ids(values []int64) string {
	ph := make([]string, len(values))
	for i, v := range values {
		ph[i] = b.arg(v)
	}
	return strings.Join(ph, ", ")
}

func (b *whereBuilder) add(clause string) {
	b.clauses = append(b.clauses, clause)
}

func (b *whereBuilder) sql() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

// buildWhere translates q into a WHERE clause over accounts aliased as a.
func buildWhere(q models.Query) *whereBuilder {
	b := &whereBuilder{}

	if q.Role != "" {
		b.add("EXISTS (SELECT 1 FROM account_roles r WHERE r.account_id = a.id AND r.role = " + b.arg(q.Role) + ")")
	}
	if len(q.RoleIn) > 0 {
		b.add("EXISTS (SELECT 1 FROM account_roles r WHERE r.account_id = a.id AND r.role IN (" + b.list(q.RoleIn) + "))")
	}
	if len(q.RoleNotIn) > 0 {
		b.add("NOT EXISTS (SELECT 1 FROM account_roles r WHERE r.account_id = a.id AND r.role IN (" + b.list(q.RoleNotIn) + "))")
	}
	if q.Capability != "" {
		// Same rule as models.Account.Can: an explicit grant or denial
		// decides, otherwise holding a role of that name counts.
		p := b.arg(q.Capability)
		b.add("(EXISTS (SELECT 1 FROM account_capability_grants g WHERE g.account_id = a.id AND g.granted AND g.capability = " + p + ")" +
			" OR (NOT EXISTS (SELECT 1 FROM account_capability_grants g WHERE g.account_id = a.id AND g.capability = " + p + ")" +
			" AND EXISTS (SELECT 1 FROM account_roles r WHERE r.account_id = a.id AND r.role = " + p + ")))")
	}
	if q.MetaKey != "" {
		clause := "EXISTS (SELECT 1 FROM account_meta m WHERE m.account_id = a.id AND m.meta_key = " + b.arg(q.MetaKey)
		if q.MetaValue != nil {
			clause += " AND m.meta_value = " + b.arg(*q.MetaValue)
		}
		b.add(clause + ")")
	}
	if !q.RegisteredAfter.IsZero() {
		b.add("a.registered_at >= " + b.arg(q.RegisteredAfter))
	}
	if q.RegisteredWithinDays > 0 {
		b.add("a.registered_at >= now() - make_interval(days => " + b.arg(q.RegisteredWithinDays) + ")")
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		pattern := b.arg(searchPattern(term))
		cols := searchColumnsFor(term, q.SearchColumns)
		parts := make([]string, len(cols))
		for i, col := range cols {
			parts[i] = col + " ILIKE " + pattern
		}
		b.add("(" + strings.Join(parts, " OR ") + ")")
	}
	if len(q.Include) > 0 {
		b.add("a.id IN (" + b.ids(q.Include) + ")")
	}
	if len(q.Exclude) > 0 {
		b.add("a.id NOT IN (" + b.ids(q.Exclude) + ")")
	}

	return b
}

// searchPattern converts a search term into an ILIKE pattern. A leading or
// trailing '*' anchors the other end; without '*' the term may match
// anywhere.
func searchPattern(term string) string {
	leading := strings.HasPrefix(term, "*")
	trailing := strings.HasSuffix(term, "*")
	core := strings.Trim(term, "*")

	core = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(core)

	switch {
	case leading && trailing, !leading && !trailing:
		return "%" + core + "%"
	case leading:
		return "%" + core
	default:
		return core + "%"
	}
}

func searchColumnsFor(term string, requested []string) []string {
	names := requested
	if len(names) == 0 {
		if strings.Contains(term, "@") {
			names = []string{"email"}
		} else {
			names = common.DefaultSearchColumns
		}
	}

	cols := make([]string, 0, len(names))
	for _, name := range names {
		if col, ok := searchColumns[strings.ToLower(name)]; ok {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		cols = append(cols, searchColumns["login"])
	}
	return cols
}
