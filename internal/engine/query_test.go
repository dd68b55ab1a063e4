package engine

import (
	"testing"

	"ministry-backend/internal/metadata"
)

func statsEntity() *metadata.Entity {
	return &metadata.Entity{
		Name:       "Stats",
		Table:      "stats",
		PrimaryKey: metadata.PrimaryKey{Column: "stats_id"},
		Fields: []metadata.Field{
			{Name: "church_id", Type: metadata.TypeInt, Required: true},
			{Name: "stats_date", Type: metadata.TypeDate, Required: true},
			{Name: "attendance", Type: metadata.TypeInt},
		},
	}
}

func TestBuildListSQL_Default(t *testing.T) {
	plan := &QueryPlan{Entity: statsEntity()}
	sql, params := BuildListSQL(plan)

	want := "SELECT stats_id, church_id, stats_date, attendance FROM stats ORDER BY stats_id"
	if sql != want {
		t.Fatalf("sql mismatch:\n got:  %s\n want: %s", sql, want)
	}
	if len(params) != 0 {
		t.Fatalf("expected no params, got %v", params)
	}
}

func TestBuildListSQL_FiltersAreBound(t *testing.T) {
	plan := &QueryPlan{
		Entity: statsEntity(),
		Filters: []WhereClause{
			{Field: "church_id", Operator: "eq", Value: int64(3)},
			{Field: "attendance", Operator: "gte", Value: int64(100)},
		},
	}
	sql, params := BuildListSQL(plan)

	want := "SELECT stats_id, church_id, stats_date, attendance FROM stats WHERE church_id = $1 AND attendance >= $2 ORDER BY stats_id"
	if sql != want {
		t.Fatalf("sql mismatch:\n got:  %s\n want: %s", sql, want)
	}
	if len(params) != 2 || params[0] != int64(3) || params[1] != int64(100) {
		t.Fatalf("unexpected params: %v", params)
	}
}

func TestBuildListSQL_SortAndPagination(t *testing.T) {
	plan := &QueryPlan{
		Entity:  statsEntity(),
		Sorts:   []OrderClause{{Field: "stats_date", Dir: "DESC"}},
		Page:    2,
		PerPage: 25,
	}
	sql, params := BuildListSQL(plan)

	want := "SELECT stats_id, church_id, stats_date, attendance FROM stats ORDER BY stats_date DESC LIMIT $1 OFFSET $2"
	if sql != want {
		t.Fatalf("sql mismatch:\n got:  %s\n want: %s", sql, want)
	}
	if params[0] != 25 || params[1] != 25 {
		t.Fatalf("unexpected limit/offset params: %v", params)
	}
}

func TestParseFilterKey(t *testing.T) {
	if f, op := parseFilterKey("attendance.gte"); f != "attendance" || op != "gte" {
		t.Fatalf("got %s/%s", f, op)
	}
	if f, op := parseFilterKey("city"); f != "city" || op != "eq" {
		t.Fatalf("got %s/%s", f, op)
	}
}

func TestCoerceFilterValue(t *testing.T) {
	entity := statsEntity()

	v, err := coerceFilterValue(entity, "church_id", "42")
	if err != nil || v != int64(42) {
		t.Fatalf("got %v, %v", v, err)
	}
	if _, err := coerceFilterValue(entity, "church_id", "abc"); err == nil {
		t.Fatal("expected parse error for non-numeric int filter")
	}
	v, err = coerceFilterValue(entity, "stats_id", "7")
	if err != nil || v != int64(7) {
		t.Fatalf("primary key filter: got %v, %v", v, err)
	}
	v, err = coerceFilterValue(entity, "stats_date", "2026-08-01")
	if err != nil || v != "2026-08-01" {
		t.Fatalf("string passthrough: got %v, %v", v, err)
	}
}
