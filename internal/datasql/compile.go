// Package datasql compiles grid query state into parameterized SQLite.
//
// A Compiler is bound to one table and one column set. Filter values map
// to predicates by column filter kind: text columns match with LIKE,
// select columns with equality, multi columns with IN. Results page with
// LIMIT/OFFSET and always carry a stable ORDER BY.
package datasql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hollowdata/gridstate/internal/query"
	"github.com/hollowdata/gridstate/internal/schema"
)

// identPattern matches the identifiers this package is willing to splice
// into SQL text: the bound table name and the column keys. Every value
// goes through a ? placeholder instead.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Compiler turns query snapshots into SELECTs against one table.
//
// Invariant: values are never interpolated into SQL text. Identifiers are
// validated at construction; everything else is parameterized.
type Compiler struct {
	table   string
	columns *schema.Set
}

// NewCompiler binds a compiler to a table and its column set. Errors when
// the table name or any column key is not a plain SQL identifier.
func NewCompiler(table string, columns *schema.Set) (*Compiler, error) {
	if columns == nil {
		return nil, fmt.Errorf("nil column set")
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	for _, key := range columns.Keys() {
		if !identPattern.MatchString(key) {
			return nil, fmt.Errorf("column key %q is not a SQL identifier", key)
		}
	}
	return &Compiler{table: table, columns: columns}, nil
}

// Compile produces the page query for a snapshot: SELECT * with the
// filter as WHERE, the sort as ORDER BY (id ASC tiebreaker always
// appended), and LIMIT/OFFSET from the pagination.
//
// Filters are expected sanitized: sentinel values (null, unset, empty
// text, empty lists) are compile errors here, not silently dropped.
func (c *Compiler) Compile(st query.State) (string, []any, error) {
	where, params, err := c.compileWhere(st.Filter)
	if err != nil {
		return "", nil, err
	}
	orderBy, err := c.compileOrderBy(st.Sort, st.Order)
	if err != nil {
		return "", nil, err
	}
	if st.Page < 1 || st.Limit < 1 {
		return "", nil, fmt.Errorf("invalid pagination: page %d limit %d", st.Page, st.Limit)
	}

	sql := fmt.Sprintf("SELECT * FROM %s%s%s LIMIT ? OFFSET ?", c.table, where, orderBy)
	params = append(params, st.Limit, (st.Page-1)*st.Limit)
	return sql, params, nil
}

// CompileCount produces the matching-row count query for a snapshot: the
// same WHERE clause without ordering or pagination.
func (c *Compiler) CompileCount(st query.State) (string, []any, error) {
	where, params, err := c.compileWhere(st.Filter)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", c.table, where)
	return sql, params, nil
}

// compileWhere builds the WHERE clause from a filter. Keys compile in
// canonical order so the same filter always produces the same SQL.
func (c *Compiler) compileWhere(f query.Filter) (string, []any, error) {
	if len(f) == 0 {
		return "", nil, nil
	}

	var parts []string
	var params []any
	for _, key := range f.SortedKeys() {
		sql, keyParams, err := c.compilePredicate(key, f[key])
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, keyParams...)
	}
	return " WHERE " + strings.Join(parts, " AND "), params, nil
}

// compilePredicate builds one column's predicate.
func (c *Compiler) compilePredicate(key string, v query.Value) (string, []any, error) {
	col, ok := c.columns.Lookup(key)
	if !ok {
		if s := c.columns.Suggest(key); s != "" {
			return "", nil, fmt.Errorf("unknown filter column %q (did you mean %q?)", key, s)
		}
		return "", nil, fmt.Errorf("unknown filter column %q", key)
	}

	switch val := v.(type) {
	case nil:
		return "", nil, fmt.Errorf("column %s: unset filter value", key)
	case query.Null:
		return "", nil, fmt.Errorf("column %s: null filter value", key)
	case query.List:
		return c.compileIn(col, val)
	case query.Text:
		if val == "" {
			return "", nil, fmt.Errorf("column %s: empty text filter", key)
		}
		if col.Filter == schema.FilterText {
			return fmt.Sprintf(`%s LIKE ? ESCAPE '\'`, key), []any{likePattern(string(val))}, nil
		}
		return key + " = ?", []any{string(val)}, nil
	case query.Int:
		return key + " = ?", []any{int64(val)}, nil
	case query.Bool:
		return key + " = ?", []any{bool(val)}, nil
	default:
		return "", nil, fmt.Errorf("column %s: unsupported filter value %T", key, v)
	}
}

// compileIn builds "key IN (?, ...)" from a list value.
func (c *Compiler) compileIn(col schema.Column, l query.List) (string, []any, error) {
	if len(l) == 0 {
		return "", nil, fmt.Errorf("column %s: empty list filter", col.Key)
	}

	params := make([]any, 0, len(l))
	for _, elem := range l {
		switch e := elem.(type) {
		case query.Text:
			params = append(params, string(e))
		case query.Int:
			params = append(params, int64(e))
		case query.Bool:
			params = append(params, bool(e))
		default:
			return "", nil, fmt.Errorf("column %s: list elements must be scalar, got %T", col.Key, elem)
		}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(l)), ", ")
	return fmt.Sprintf("%s IN (%s)", col.Key, placeholders), params, nil
}

// compileOrderBy builds the ORDER BY clause. The id tiebreaker keeps
// pagination stable when the sort column has duplicate values; with no
// sort set it is the whole ordering. An order with no sort column has
// nothing to apply to and is ignored. COLLATE BINARY pins text ordering
// across SQLite builds.
func (c *Compiler) compileOrderBy(sort string, order query.Order) (string, error) {
	if sort == "" {
		return " ORDER BY id ASC", nil
	}
	col, ok := c.columns.Lookup(sort)
	if !ok {
		if s := c.columns.Suggest(sort); s != "" {
			return "", fmt.Errorf("unknown sort column %q (did you mean %q?)", sort, s)
		}
		return "", fmt.Errorf("unknown sort column %q", sort)
	}
	if !col.Sortable {
		return "", fmt.Errorf("column %q is not sortable", sort)
	}

	dir := "ASC"
	if order == query.OrderDesc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s COLLATE BINARY %s, id ASC", sort, dir), nil
}

// likePattern wraps a term for substring matching, escaping the LIKE
// metacharacters in the term itself.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
