package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ministry-backend/internal/metadata"
)

// paramBuilder numbers positional placeholders and collects bound values.
// Every statement the engine emits goes through it; field values never
// appear in SQL text.
type paramBuilder struct {
	params []any
	n      int
}

func (p *paramBuilder) Add(v any) string {
	p.n++
	p.params = append(p.params, v)
	return fmt.Sprintf("$%d", p.n)
}

// ValidateWrite checks a request body against the entity descriptor.
// For creates every required field must be present; for updates at least
// one known field must be present. Unknown keys are rejected outright.
func ValidateWrite(entity *metadata.Entity, body map[string]any, isCreate bool) (map[string]any, []ErrorDetail) {
	var errs []ErrorDetail

	fields := make(map[string]any, len(body))
	unknown := make([]string, 0)
	for key, val := range body {
		if key == entity.PrimaryKey.Column {
			unknown = append(unknown, key)
			continue
		}
		if !entity.HasField(key) {
			unknown = append(unknown, key)
			continue
		}
		fields[key] = val
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		errs = append(errs, ErrorDetail{
			Field:   key,
			Rule:    "unknown",
			Message: fmt.Sprintf("Unknown field: %s", key),
		})
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if isCreate {
		for _, name := range entity.RequiredFields() {
			if val, ok := fields[name]; !ok || val == nil || val == "" {
				errs = append(errs, ErrorDetail{
					Field:   name,
					Rule:    "required",
					Message: fmt.Sprintf("Field %s is required", name),
				})
			}
		}
	} else if len(fields) == 0 {
		errs = append(errs, ErrorDetail{
			Rule:    "empty",
			Message: "At least one updatable field is required",
		})
	}
	if len(errs) > 0 {
		return nil, errs
	}

	for name, val := range fields {
		if detail := checkFieldType(entity.GetField(name), val); detail != nil {
			errs = append(errs, *detail)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	return fields, nil
}

func checkFieldType(field *metadata.Field, val any) *ErrorDetail {
	if val == nil {
		return nil
	}
	switch field.Type {
	case metadata.TypeInt:
		switch n := val.(type) {
		case float64:
			if n != float64(int64(n)) {
				return typeError(field.Name, "must be an integer")
			}
		case int, int64:
		case string:
			if _, err := strconv.ParseInt(n, 10, 64); err != nil {
				return typeError(field.Name, "must be an integer")
			}
		default:
			return typeError(field.Name, "must be an integer")
		}
	case metadata.TypeDecimal:
		switch n := val.(type) {
		case float64, int, int64:
		case string:
			if _, err := strconv.ParseFloat(n, 64); err != nil {
				return typeError(field.Name, "must be a number")
			}
		default:
			return typeError(field.Name, "must be a number")
		}
	case metadata.TypeString, metadata.TypeDate, metadata.TypeTimestamp:
		if _, ok := val.(string); !ok {
			return typeError(field.Name, "must be a string")
		}
	}
	return nil
}

func typeError(field, msg string) *ErrorDetail {
	return &ErrorDetail{Field: field, Rule: "type", Message: msg}
}

// BuildInsertSQL builds a parameterized INSERT returning the generated id.
// Field order is the descriptor's, so statements are deterministic.
func BuildInsertSQL(entity *metadata.Entity, fields map[string]any) (string, []any) {
	pb := &paramBuilder{}
	var cols, placeholders []string
	for _, f := range entity.Fields {
		val, ok := fields[f.Name]
		if !ok {
			continue
		}
		cols = append(cols, f.Name)
		placeholders = append(placeholders, pb.Add(val))
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		entity.Table,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		entity.PrimaryKey.Column)
	return sql, pb.params
}

// BuildUpdateSQL builds a parameterized UPDATE for the given id.
func BuildUpdateSQL(entity *metadata.Entity, id int64, fields map[string]any) (string, []any) {
	pb := &paramBuilder{}
	var sets []string
	for _, f := range entity.Fields {
		val, ok := fields[f.Name]
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", f.Name, pb.Add(val)))
	}
	if len(sets) == 0 {
		return "", nil
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		entity.Table,
		strings.Join(sets, ", "),
		entity.PrimaryKey.Column,
		pb.Add(id))
	return sql, pb.params
}

// BuildDeleteSQL builds a parameterized DELETE for the given id.
func BuildDeleteSQL(entity *metadata.Entity, id int64) (string, []any) {
	pb := &paramBuilder{}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		entity.Table, entity.PrimaryKey.Column, pb.Add(id))
	return sql, pb.params
}

// BuildGetSQL builds the single-row SELECT for the given id.
func BuildGetSQL(entity *metadata.Entity, id int64) (string, []any) {
	pb := &paramBuilder{}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		strings.Join(entity.ColumnNames(), ", "),
		entity.Table,
		entity.PrimaryKey.Column,
		pb.Add(id))
	return sql, pb.params
}
