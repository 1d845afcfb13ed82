package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/rivermark/ironlake/internal/op"
)

// LatestVersionCTE builds the "ranked_records" common table expression that
// every read path (QUERY, EXPORT_CSV, UPDATE's pre-read, HARD_DELETE's
// count) is built on: one row per _record_id, the highest _version wins.
// Only the tenant scope is applied inside the CTE — user filters must be
// applied by the caller in the outer query, after rn = 1 has picked the
// latest version, or a filter that matches an older version but not the
// latest would wrongly resurrect it.
//
// source is the already-resolved scan expression (e.g. a table function
// call or a bare table name) for the underlying engine; tenantID is always
// bound as a parameter, never interpolated.
func LatestVersionCTE(source, tenantID string) (string, []interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "WITH ranked_records AS (\n")
	fmt.Fprintf(&b, "  SELECT *, ROW_NUMBER() OVER (PARTITION BY _record_id ORDER BY _version DESC) AS rn\n")
	fmt.Fprintf(&b, "  FROM %s\n", source)
	fmt.Fprintf(&b, "  WHERE _tenant_id = ?\n")
	fmt.Fprintf(&b, ")\n")

	return b.String(), []interface{}{tenantID}
}

// SelectLatest assembles a full SELECT over the ranked_records CTE built
// by LatestVersionCTE, applying projection/aggregation/group-by/having/
// sort/limit/offset exactly as spec.md's read path describes. User filters
// are applied in the outer query, after rn = 1, so they only ever see the
// latest version of each record.
func SelectLatest(source, tenantID string, req *op.QueryRequest) (string, []interface{}, error) {
	cte, params := LatestVersionCTE(source, tenantID)

	filterSQL, filterParams, err := Filters(req.Filters)
	if err != nil {
		return "", nil, err
	}

	selectList := Select(req.Projection, req.Aggregations)

	var b strings.Builder
	b.WriteString(cte)
	fmt.Fprintf(&b, "SELECT %s FROM ranked_records WHERE rn = 1", selectList)
	if !req.IncludeDeleted {
		b.WriteString(" AND (_deleted IS NULL OR _deleted = FALSE)")
	}
	if filterSQL != "" {
		fmt.Fprintf(&b, " AND (%s)", filterSQL)
		params = append(params, filterParams...)
	}
	if len(req.GroupBy) > 0 {
		fmt.Fprintf(&b, " GROUP BY %s", strings.Join(req.GroupBy, ", "))
	}
	if len(req.Having) > 0 {
		havingSQL, havingParams, err := Filters(req.Having)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&b, " HAVING %s", havingSQL)
		params = append(params, havingParams...)
	}
	if orderBy := OrderBy(req.Sort); orderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", orderBy)
	}
	if req.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", req.Limit)
	}
	if req.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", req.Offset)
	}
	return b.String(), params, nil
}
