package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"ministry-backend/internal/metadata"
)

// QueryPlan captures the optional list modifiers: filters, sort order and
// pagination. A request without modifiers lists the full row set ordered
// by primary key.
type QueryPlan struct {
	Entity  *metadata.Entity
	Filters []WhereClause
	Sorts   []OrderClause
	Page    int
	PerPage int
}

type WhereClause struct {
	Field    string
	Operator string
	Value    any
}

type OrderClause struct {
	Field string
	Dir   string // ASC or DESC
}

// ParseQueryParams parses list query parameters into a QueryPlan.
// Filters use filter[field]=val or filter[field.op]=val; sort takes a
// comma list with a leading - for descending.
func ParseQueryParams(c *fiber.Ctx, entity *metadata.Entity) (*QueryPlan, error) {
	plan := &QueryPlan{Entity: entity}

	for key, val := range c.Queries() {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		field, op := parseFilterKey(key[7 : len(key)-1])

		if !entity.HasField(field) && field != entity.PrimaryKey.Column {
			return nil, &AppError{
				Code:    "UNKNOWN_FIELD",
				Status:  400,
				Message: fmt.Sprintf("Unknown filter field: %s", field),
			}
		}

		coerced, err := coerceFilterValue(entity, field, val)
		if err != nil {
			return nil, &AppError{
				Code:    "VALIDATION_FAILED",
				Status:  400,
				Message: fmt.Sprintf("Invalid filter value for %s: %v", field, err),
			}
		}

		plan.Filters = append(plan.Filters, WhereClause{Field: field, Operator: op, Value: coerced})
	}

	if sortParam := c.Query("sort"); sortParam != "" {
		for _, part := range strings.Split(sortParam, ",") {
			part = strings.TrimSpace(part)
			dir := "ASC"
			field := part
			if strings.HasPrefix(part, "-") {
				dir = "DESC"
				field = part[1:]
			}
			if !entity.HasField(field) && field != entity.PrimaryKey.Column {
				return nil, &AppError{
					Code:    "UNKNOWN_FIELD",
					Status:  400,
					Message: fmt.Sprintf("Unknown sort field: %s", field),
				}
			}
			plan.Sorts = append(plan.Sorts, OrderClause{Field: field, Dir: dir})
		}
	}

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			plan.Page = v
		}
	}
	if pp := c.Query("per_page"); pp != "" {
		if v, err := strconv.Atoi(pp); err == nil && v > 0 {
			plan.PerPage = v
			if plan.PerPage > 100 {
				plan.PerPage = 100
			}
		}
	}
	if plan.Page > 0 && plan.PerPage == 0 {
		plan.PerPage = 25
	}

	return plan, nil
}

// BuildListSQL builds the parameterized SELECT for a list request.
func BuildListSQL(plan *QueryPlan) (string, []any) {
	pb := &paramBuilder{}
	entity := plan.Entity

	sql := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(entity.ColumnNames(), ", "), entity.Table)

	var where []string
	for _, f := range plan.Filters {
		where = append(where, buildWhereClause(f, pb))
	}
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}

	if len(plan.Sorts) > 0 {
		var orderParts []string
		for _, s := range plan.Sorts {
			orderParts = append(orderParts, fmt.Sprintf("%s %s", s.Field, s.Dir))
		}
		sql += " ORDER BY " + strings.Join(orderParts, ", ")
	} else {
		sql += " ORDER BY " + entity.PrimaryKey.Column
	}

	if plan.PerPage > 0 {
		page := plan.Page
		if page < 1 {
			page = 1
		}
		sql += fmt.Sprintf(" LIMIT %s OFFSET %s",
			pb.Add(plan.PerPage), pb.Add((page-1)*plan.PerPage))
	}

	return sql, pb.params
}

func buildWhereClause(f WhereClause, pb *paramBuilder) string {
	switch f.Operator {
	case "eq", "":
		return fmt.Sprintf("%s = %s", f.Field, pb.Add(f.Value))
	case "neq":
		return fmt.Sprintf("%s != %s", f.Field, pb.Add(f.Value))
	case "gt":
		return fmt.Sprintf("%s > %s", f.Field, pb.Add(f.Value))
	case "gte":
		return fmt.Sprintf("%s >= %s", f.Field, pb.Add(f.Value))
	case "lt":
		return fmt.Sprintf("%s < %s", f.Field, pb.Add(f.Value))
	case "lte":
		return fmt.Sprintf("%s <= %s", f.Field, pb.Add(f.Value))
	case "like":
		return fmt.Sprintf("%s LIKE %s", f.Field, pb.Add(f.Value))
	default:
		return fmt.Sprintf("%s = %s", f.Field, pb.Add(f.Value))
	}
}

// parseFilterKey splits "attendance.gte" into ("attendance", "gte") or
// "city" into ("city", "eq").
func parseFilterKey(key string) (string, string) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return key, "eq"
}

// coerceFilterValue converts query-param strings to the field's Go type.
func coerceFilterValue(entity *metadata.Entity, fieldName, val string) (any, error) {
	if fieldName == entity.PrimaryKey.Column {
		return strconv.ParseInt(val, 10, 64)
	}
	switch entity.GetField(fieldName).Type {
	case metadata.TypeInt:
		return strconv.ParseInt(val, 10, 64)
	case metadata.TypeDecimal:
		return strconv.ParseFloat(val, 64)
	default:
		return val, nil
	}
}
