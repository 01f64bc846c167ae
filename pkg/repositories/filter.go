package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/apperrors"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/database"
)

// Filter builds parameterized WHERE-clause predicates incrementally and
// executes them against the pool. Typed filters (NodeFilter, EdgeFilter, …)
// embed Filter and expose named predicate methods that delegate to Query and
// QueryJSONB.
//
// Callers are responsible for well-formed boolean structure; Filter does not
// validate dangling connectives. After All or Count the internal buffers are
// reset so the filter instance is reusable.
type Filter struct {
	db          *database.DB
	tableName   string
	columns     string
	from        string
	rawQuery    []string
	values      []any
	sortColumns map[string]struct{}
	err         error
}

// ListOptions controls ordering and paging of a filter's result set.
type ListOptions struct {
	Limit    int
	Offset   int
	SortBy   string
	SortDesc bool
}

// NewFilter creates a filter over tableName. The default select is
// SELECT * FROM tableName; typed filters override the column list and FROM
// clause via SetColumns and SetFrom.
func NewFilter(db *database.DB, tableName string) *Filter {
	f := &Filter{
		db:          db,
		tableName:   tableName,
		columns:     "*",
		from:        tableName,
		sortColumns: make(map[string]struct{}),
	}
	f.rawQuery = []string{f.selectPrefix()}
	return f
}

// SetColumns replaces the select column list. The list is restored after
// every reset, so customized filters survive repeated All calls.
func (f *Filter) SetColumns(columns string) {
	f.columns = columns
	f.rawQuery = []string{f.selectPrefix()}
}

// SetFrom replaces the FROM clause, typically to add joins. Count uses the
// same clause so joined predicates stay valid there.
func (f *Filter) SetFrom(from string) {
	f.from = from
	f.rawQuery = []string{f.selectPrefix()}
}

func (f *Filter) selectPrefix() string {
	return fmt.Sprintf("SELECT %s FROM %s", f.columns, f.from)
}

// AllowSort registers column names valid for ListOptions.SortBy. Sort columns
// are interpolated into the ORDER BY clause, so only allow-listed names are
// ever accepted.
func (f *Filter) AllowSort(columns ...string) {
	for _, c := range columns {
		f.sortColumns[c] = struct{}{}
	}
}

// Where appends the WHERE token.
func (f *Filter) Where() *Filter {
	f.rawQuery = append(f.rawQuery, "WHERE")
	return f
}

// And appends the AND connective.
func (f *Filter) And() *Filter {
	f.rawQuery = append(f.rawQuery, "AND")
	return f
}

// Or appends the OR connective.
func (f *Filter) Or() *Filter {
	f.rawQuery = append(f.rawQuery, "OR")
	return f
}

// Query appends a predicate on a plain column. Supported operators: eq, neq,
// like, in. The in operator accepts a slice or a comma-separated string; each
// element is independently parameterized.
func (f *Filter) Query(fieldName string, operator string, value any) *Filter {
	switch operator {
	case "eq":
		f.values = append(f.values, value)
		f.rawQuery = append(f.rawQuery, fmt.Sprintf("%s = $%d", fieldName, len(f.values)))
	case "neq":
		f.values = append(f.values, value)
		f.rawQuery = append(f.rawQuery, fmt.Sprintf("%s <> $%d", fieldName, len(f.values)))
	case "like":
		f.values = append(f.values, value)
		f.rawQuery = append(f.rawQuery, fmt.Sprintf("%s LIKE $%d", fieldName, len(f.values)))
	case "in":
		placeholders := make([]string, 0)
		for _, v := range normalizeInValues(value) {
			f.values = append(f.values, v)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(f.values)))
		}
		if len(placeholders) == 0 {
			f.err = fmt.Errorf("in operator on %s requires at least one value", fieldName)
			return f
		}
		f.rawQuery = append(f.rawQuery, fmt.Sprintf("%s IN (%s)", fieldName, strings.Join(placeholders, ",")))
	default:
		f.err = fmt.Errorf("unsupported filter operator %q", operator)
	}

	return f
}

// QueryJSONB appends a predicate against a JSON object column. key may be a
// dot-separated path (a.b.c navigates -> 'a' -> 'b' then extracts ->> 'c').
// Path segments containing quotes are rejected rather than escaped.
func (f *Filter) QueryJSONB(key string, fieldName string, operator string, value any) *Filter {
	keys := strings.Split(key, ".")
	for _, k := range keys {
		if strings.ContainsAny(k, `'"`) {
			f.err = fmt.Errorf("%w: invalid json path segment %q", apperrors.ErrValidation, k)
			return f
		}
	}

	finalKey := keys[len(keys)-1]
	prefix := fieldName
	for _, k := range keys[:len(keys)-1] {
		prefix += fmt.Sprintf(" -> '%s'", k)
	}
	accessor := fmt.Sprintf("%s ->> '%s'", prefix, finalKey)

	switch operator {
	case "eq":
		f.values = append(f.values, value)
		f.rawQuery = append(f.rawQuery, fmt.Sprintf("%s = $%d", accessor, len(f.values)))
	case "neq":
		f.values = append(f.values, value)
		f.rawQuery = append(f.rawQuery, fmt.Sprintf("%s <> $%d", accessor, len(f.values)))
	case "like":
		f.values = append(f.values, value)
		f.rawQuery = append(f.rawQuery, fmt.Sprintf("%s LIKE $%d", accessor, len(f.values)))
	case "in":
		placeholders := make([]string, 0)
		for _, v := range normalizeInValues(value) {
			f.values = append(f.values, v)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(f.values)))
		}
		if len(placeholders) == 0 {
			f.err = fmt.Errorf("in operator on %s requires at least one value", fieldName)
			return f
		}
		f.rawQuery = append(f.rawQuery, fmt.Sprintf("%s IN (%s)", accessor, strings.Join(placeholders, ",")))
	default:
		f.err = fmt.Errorf("unsupported filter operator %q", operator)
	}

	return f
}

// Count rewrites the select prefix to SELECT COUNT(*), executes, and resets
// the filter for reuse.
func (f *Filter) Count(ctx context.Context) (int64, error) {
	if f.err != nil {
		err := f.err
		f.reset()
		return 0, err
	}

	parts := append([]string{fmt.Sprintf("SELECT COUNT(*) FROM %s", f.from)}, f.rawQuery[1:]...)
	query := strings.Join(parts, " ")
	values := f.values
	f.reset()

	var count int64
	if err := f.db.QueryRow(ctx, query, values...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", f.tableName, err)
	}

	return count, nil
}

// buildList finalizes the query with ORDER BY / OFFSET / LIMIT clauses and
// resets the filter. Offset and limit are parameterized; sortBy must be
// allow-listed since identifiers cannot be bound.
func (f *Filter) buildList(opts ListOptions) (string, []any, error) {
	if f.err != nil {
		err := f.err
		f.reset()
		return "", nil, err
	}

	parts := f.rawQuery
	values := f.values

	if opts.SortBy != "" {
		if _, ok := f.sortColumns[opts.SortBy]; !ok {
			f.reset()
			return "", nil, fmt.Errorf("%w: sort column %q is not allowed", apperrors.ErrValidation, opts.SortBy)
		}
		direction := "ASC"
		if opts.SortDesc {
			direction = "DESC"
		}
		parts = append(parts, fmt.Sprintf(`ORDER BY "%s" %s`, opts.SortBy, direction))
	}

	if opts.Offset > 0 {
		values = append(values, opts.Offset)
		parts = append(parts, fmt.Sprintf("OFFSET $%d", len(values)))
	}

	if opts.Limit > 0 {
		values = append(values, opts.Limit)
		parts = append(parts, fmt.Sprintf("LIMIT $%d", len(values)))
	}

	query := strings.Join(parts, " ")
	f.reset()
	return query, values, nil
}

// reset restores the filter to its select prefix so it can be reused.
func (f *Filter) reset() {
	f.rawQuery = []string{f.selectPrefix()}
	f.values = nil
	f.err = nil
}

// FilterAll executes a finalized filter and collects rows with the provided
// scan function. It lives at package level because Go methods cannot take
// type parameters.
func FilterAll[T any](ctx context.Context, f *Filter, opts ListOptions, scan pgx.RowToFunc[T]) ([]T, error) {
	query, values, err := f.buildList(opts)
	if err != nil {
		return nil, err
	}

	rows, err := f.db.Query(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", f.tableName, err)
	}

	results, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s rows: %w", f.tableName, err)
	}

	return results, nil
}

// normalizeInValues turns the in operator's value into a flat slice. Strings
// are split on commas to support comma-separated lists.
func normalizeInValues(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case string:
		parts := strings.Split(v, ",")
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out
	default:
		return []any{value}
	}
}
