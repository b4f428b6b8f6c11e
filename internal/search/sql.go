package search

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/provider-directory/internal/config"
	"github.com/sells-group/provider-directory/internal/entity"
)

// Semantic mode fetches a candidate pool and ranks in process, so the
// caller's limit applies after scoring, not in SQL.
const semanticPoolLimit = 500

var fieldPathPattern = regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)*$`)

type sqlBuilder struct {
	where []string
	args  []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) add(clause string) {
	b.where = append(b.where, clause)
}

// buildSQL renders the query's filter clauses as one parameterized
// SELECT. Values always travel as bind parameters; only validated
// operators reach the SQL text.
func buildSQL(q Query, cfg config.SearchConfig) (string, []any, error) {
	b := &sqlBuilder{}
	orderBy := "rating DESC, total_reviews DESC, id"

	if q.radius != nil {
		lat := b.arg(q.radius.lat)
		lon := b.arg(q.radius.lon)
		dist := haversineSQL(lat, lon)
		b.add("latitude IS NOT NULL")
		b.add(fmt.Sprintf("%s <= %s", dist, b.arg(q.radius.km)))
		orderBy = dist + " ASC, id"
	}
	if q.minRating != nil {
		b.add(fmt.Sprintf("rating >= %s", b.arg(*q.minRating)))
	}
	if q.minReviews != nil {
		b.add(fmt.Sprintf("total_reviews >= %s", b.arg(*q.minReviews)))
	}
	for _, county := range q.counties {
		b.add(fmt.Sprintf("service_area->'counties' @> to_jsonb(%s::text)", b.arg(county)))
	}
	for _, state := range q.states {
		b.add(fmt.Sprintf("service_area->'states' @> to_jsonb(%s::text)", b.arg(state)))
	}
	for _, f := range q.fields {
		clause, err := fieldSQL(b, f)
		if err != nil {
			return "", nil, err
		}
		b.add(clause)
	}
	if q.licensed {
		b.add("license_number <> ''")
	}
	if q.available {
		b.add("coalesce(merged_data #>> '{customer_interaction,availability}', '') <> ''")
	}

	limit := q.limit
	if limit <= 0 {
		limit = cfg.DefaultLimit
	}
	if limit <= 0 {
		limit = 25
	}
	if q.semantic() {
		b.add("embedding IS NOT NULL")
		// Ranking happens in process; SQL order is irrelevant.
		orderBy = "id"
		limit = semanticPoolLimit
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + entity.Columns + " FROM entities")
	if len(b.where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(b.where, " AND "))
	}
	sb.WriteString(" ORDER BY " + orderBy)
	fmt.Fprintf(&sb, " LIMIT %d", limit)
	return sb.String(), b.args, nil
}

// haversineSQL renders the great-circle distance in kilometers between
// the bound point and each row's coordinates.
func haversineSQL(latParam, lonParam string) string {
	return fmt.Sprintf(
		"(2 * 6371 * asin(sqrt(pow(sin(radians(latitude - %[1]s) / 2), 2) + "+
			"cos(radians(%[1]s)) * cos(radians(latitude)) * pow(sin(radians(longitude - %[2]s) / 2), 2))))",
		latParam, lonParam)
}

func fieldSQL(b *sqlBuilder, f fieldClause) (string, error) {
	if !fieldPathPattern.MatchString(f.path) {
		return "", eris.Errorf("search: invalid field path %q", f.path)
	}
	pathArg := b.arg(strings.Split(f.path, "."))

	switch f.op {
	case OpEq, OpNeq:
		cmp := "="
		if f.op == OpNeq {
			cmp = "<>"
		}
		if isNumeric(f.value) {
			return fmt.Sprintf("(merged_data #>> %s)::numeric %s %s", pathArg, cmp, b.arg(f.value)), nil
		}
		return fmt.Sprintf("merged_data #>> %s %s %s", pathArg, cmp, b.arg(fmt.Sprint(f.value))), nil
	case OpGt, OpGte, OpLt, OpLte:
		if !isNumeric(f.value) {
			return "", eris.Errorf("search: operator %q requires a numeric value, got %T", f.op, f.value)
		}
		cmp := map[Op]string{OpGt: ">", OpGte: ">=", OpLt: "<", OpLte: "<="}[f.op]
		return fmt.Sprintf("(merged_data #>> %s)::numeric %s %s", pathArg, cmp, b.arg(f.value)), nil
	case OpContains:
		return fmt.Sprintf("merged_data #>> %s ILIKE '%%' || %s || '%%'", pathArg, b.arg(fmt.Sprint(f.value))), nil
	default:
		return "", eris.Errorf("search: unknown field operator %q", f.op)
	}
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}
