package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/userkit/internal/common"
)

// Query filters an account listing. Zero values mean "no filter".
type Query struct {
	Role      string
	RoleIn    []string
	RoleNotIn []string

	Capability string

	MetaKey   string
	MetaValue *string

	RegisteredAfter      time.Time
	RegisteredWithinDays int

	Search        string
	SearchColumns []string

	Include []int64
	Exclude []int64

	OrderBy string
	Order   string

	// Number is the page size; 0 lists everything.
	Number int
	// Paged is 1-based and ignored when Offset is set.
	Paged  int
	Offset int
}

// Sortable columns accepted in Query.OrderBy.
var orderColumns = map[string]string{
	"id":           "a.id",
	"login":        "a.login",
	"slug":         "a.slug",
	"email":        "a.email",
	"display_name": "a.display_name",
	"registered":   "a.registered_at",
}

// OrderColumn returns the SQL column for q.OrderBy, defaulting to login.
func (q Query) OrderColumn() string {
	if col, ok := orderColumns[strings.ToLower(q.OrderBy)]; ok {
		return col
	}
	return orderColumns["login"]
}

// Direction returns "DESC" or "ASC".
func (q Query) Direction() string {
	if strings.EqualFold(q.Order, "desc") {
		return "DESC"
	}
	return "ASC"
}

// Limit returns the page size, 0 for unlimited.
func (q Query) Limit() int {
	if q.Number < 0 {
		return 0
	}
	return q.Number
}

// Skip returns the number of rows to skip.
func (q Query) Skip() int {
	if q.Offset > 0 {
		return q.Offset
	}
	if q.Paged > 1 && q.Number > 0 {
		return (q.Paged - 1) * q.Number
	}
	return 0
}

// Merge fills every unset field of q from defaults.
func (q Query) Merge(defaults Query) Query {
	if q.Role == "" {
		q.Role = defaults.Role
	}
	if q.RoleIn == nil {
		q.RoleIn = defaults.RoleIn
	}
	if q.RoleNotIn == nil {
		q.RoleNotIn = defaults.RoleNotIn
	}
	if q.Capability == "" {
		q.Capability = defaults.Capability
	}
	if q.MetaKey == "" {
		q.MetaKey = defaults.MetaKey
		if q.MetaValue == nil {
			q.MetaValue = defaults.MetaValue
		}
	}
	if q.RegisteredAfter.IsZero() {
		q.RegisteredAfter = defaults.RegisteredAfter
	}
	if q.RegisteredWithinDays == 0 {
		q.RegisteredWithinDays = defaults.RegisteredWithinDays
	}
	if q.Search == "" {
		q.Search = defaults.Search
	}
	if q.SearchColumns == nil {
		q.SearchColumns = defaults.SearchColumns
	}
	if q.Include == nil {
		q.Include = defaults.Include
	}
	if q.Exclude == nil {
		q.Exclude = defaults.Exclude
	}
	if q.OrderBy == "" {
		q.OrderBy = defaults.OrderBy
	}
	if q.Order == "" {
		q.Order = defaults.Order
	}
	if q.Number == 0 {
		q.Number = defaults.Number
	}
	if q.Paged == 0 {
		q.Paged = defaults.Paged
	}
	if q.Offset == 0 {
		q.Offset = defaults.Offset
	}
	return q
}

// ParseQuery builds a Query from string options, using the same keys as the
// host listing: role, role__in, role__not_in, capability, meta_key,
// meta_value, registered_after, registered_within_days, search,
// search_columns, include, exclude, orderby, order, number, paged, offset.
// List values are comma separated. Unknown keys are rejected.
func ParseQuery(opts map[string]string) (Query, error) {
	var q Query

	for key, raw := range opts {
		value := strings.TrimSpace(raw)
		var err error

		switch strings.ToLower(key) {
		case "role":
			q.Role = value
		case "role__in":
			q.RoleIn = splitList(value)
		case "role__not_in":
			q.RoleNotIn = splitList(value)
		case "capability":
			q.Capability = value
		case "meta_key":
			q.MetaKey = value
		case "meta_value":
			v := raw
			q.MetaValue = &v
		case "registered_after":
			q.RegisteredAfter, err = parseTime(value)
		case "registered_within_days":
			q.RegisteredWithinDays, err = strconv.Atoi(value)
		case "search":
			q.Search = value
		case "search_columns":
			q.SearchColumns = splitList(value)
		case "include":
			q.Include, err = parseIDs(value)
		case "exclude":
			q.Exclude, err = parseIDs(value)
		case "orderby":
			q.OrderBy = value
		case "order":
			q.Order = value
		case "number":
			q.Number, err = strconv.Atoi(value)
		case "paged":
			q.Paged, err = strconv.Atoi(value)
		case "offset":
			q.Offset, err = strconv.Atoi(value)
		default:
			return Query{}, fmt.Errorf("%w: unknown query option %q", common.ErrorValidation, key)
		}

		if err != nil {
			return Query{}, fmt.Errorf("%w: option %q: %v", common.ErrorValidation, key, err)
		}
	}

	return q, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(s) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
