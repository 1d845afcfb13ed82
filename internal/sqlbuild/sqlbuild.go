// Package sqlbuild lowers the operation-level filter/projection/aggregation
// grammar (internal/op) into parameterized SQL text. Filter values are
// always bound as placeholders, never interpolated, so a caller-supplied
// value can never change the shape of the query. Field names, aliases and
// group-by columns are written into the SQL text as given (see quoteIdent).
package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/rivermark/ironlake/internal/op"
)

// ErrUnsupportedOperator is returned when a filter's Operator isn't in the
// supported set.
type ErrUnsupportedOperator struct{ Operator string }

func (e *ErrUnsupportedOperator) Error() string {
	return fmt.Sprintf("sqlbuild: unsupported filter operator %q", e.Operator)
}

var operatorSQL = map[string]string{
	"eq":  "=",
	"ne":  "!=",
	"gt":  ">",
	"gte": ">=",
	"lt":  "<",
	"lte": "<=",
	"in":  "IN",
	"like": "LIKE",
}

// Filters renders a flat AND-joined WHERE clause (without the WHERE
// keyword) for the given filters, returning the SQL fragment and the
// ordered parameter values to bind to its placeholders.
func Filters(filters []op.Filter) (string, []interface{}, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	var clauses []string
	var params []interface{}
	for _, f := range filters {
		sym, ok := operatorSQL[f.Operator]
		if !ok {
			return "", nil, &ErrUnsupportedOperator{Operator: f.Operator}
		}
		switch f.Operator {
		case "in":
			values, ok := f.Value.([]interface{})
			if !ok {
				return "", nil, fmt.Errorf("sqlbuild: %q filter requires a list value", f.Field)
			}
			placeholders := make([]string, len(values))
			for i, v := range values {
				placeholders[i] = "?"
				params = append(params, v)
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", quoteIdent(f.Field), strings.Join(placeholders, ", ")))
		default:
			clauses = append(clauses, fmt.Sprintf("%s %s ?", quoteIdent(f.Field), sym))
			params = append(params, f.Value)
		}
	}
	return strings.Join(clauses, " AND "), params, nil
}

// Select renders the SELECT-list for a projection and/or set of
// aggregations. COUNT(*) is emitted when a count aggregation's Field is
// empty.
func Select(projection []op.ProjectionField, aggregations []op.Aggregation) string {
	var cols []string
	for _, p := range projection {
		cols = append(cols, projectionField(p))
	}
	for _, a := range aggregations {
		cols = append(cols, aggregationField(a))
	}
	if len(cols) == 0 {
		return "*"
	}
	return strings.Join(cols, ", ")
}

// projectionField composes a projection's transforms in the same fixed
// order as the original query builder: case, trim, substring, one date
// transform, cast, alias.
func projectionField(p op.ProjectionField) string {
	expr := quoteIdent(p.Field)

	switch {
	case p.Upper:
		expr = fmt.Sprintf("UPPER(%s)", expr)
	case p.Lower:
		expr = fmt.Sprintf("LOWER(%s)", expr)
	}

	if p.Trim {
		expr = fmt.Sprintf("TRIM(%s)", expr)
	}

	if p.SubstringStart != nil && p.SubstringLength != nil {
		expr = fmt.Sprintf("SUBSTRING(%s, %d, %d)", expr, *p.SubstringStart, *p.SubstringLength)
	}

	switch {
	case p.DateTrunc != "":
		expr = fmt.Sprintf("DATE_TRUNC('%s', %s)", p.DateTrunc, expr)
	case p.Extract != "":
		expr = fmt.Sprintf("EXTRACT(%s FROM %s)", p.Extract, expr)
	case p.DateFormat != "":
		expr = fmt.Sprintf("STRFTIME(%s, '%s')", expr, p.DateFormat)
	}

	if p.Cast != "" {
		expr = fmt.Sprintf("CAST(%s AS %s)", expr, p.Cast)
	}

	if p.Alias != "" {
		expr = fmt.Sprintf("%s AS %s", expr, quoteIdent(p.Alias))
	}
	return expr
}

func aggregationField(a op.Aggregation) string {
	var fieldExpr string
	switch {
	case a.Field == "" && strings.EqualFold(a.Function, "count"):
		fieldExpr = "*"
	case a.Distinct:
		fieldExpr = fmt.Sprintf("DISTINCT %s", quoteIdent(a.Field))
	default:
		fieldExpr = quoteIdent(a.Field)
	}
	fn := strings.ToUpper(a.Function)
	var expr string
	switch fn {
	case "PERCENTILE":
		expr = fmt.Sprintf("PERCENTILE_CONT(%s) WITHIN GROUP (ORDER BY %s)", a.Arg, quoteIdent(a.Field))
	default:
		expr = fmt.Sprintf("%s(%s)", fn, fieldExpr)
	}
	alias := a.Alias
	if alias == "" {
		alias = strings.ToLower(a.Function) + "_" + a.Field
		if a.Field == "" {
			alias = strings.ToLower(a.Function)
		}
	}
	return fmt.Sprintf("%s AS %s", expr, quoteIdent(alias))
}

// OrderBy renders an ORDER BY clause (without the keywords) for the given
// sort fields, or "" if none were given.
func OrderBy(sort []op.SortField) string {
	if len(sort) == 0 {
		return ""
	}
	parts := make([]string, 0, len(sort))
	for _, s := range sort {
		dir := "ASC"
		if s.Descending {
			dir = "DESC"
		}
		clause := fmt.Sprintf("%s %s", quoteIdent(s.Field), dir)
		switch {
		case s.NullsFirst:
			clause += " NULLS FIRST"
		case s.NullsLast:
			clause += " NULLS LAST"
		}
		parts = append(parts, clause)
	}
	return strings.Join(parts, ", ")
}

// quoteIdent returns name unchanged. The field names passed to it come
// from the request's filters, projection, aggregations and sort, and are
// not checked against the table's schema here; they land in identifier
// positions only, never in a filter value position.
func quoteIdent(name string) string {
	return name
}
