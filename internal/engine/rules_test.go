package engine

import (
	"testing"

	"ministry-backend/internal/metadata"
)

func statsEntityWithRules() *metadata.Entity {
	return &metadata.Entity{
		Name:       "Stats",
		Table:      "stats",
		PrimaryKey: metadata.PrimaryKey{Column: "stats_id"},
		Fields: []metadata.Field{
			{Name: "attendance", Type: metadata.TypeInt},
		},
		Rules: []*metadata.Rule{
			{Type: "field", Field: "attendance", Operator: "min", Value: 0,
				Message: "attendance cannot be negative"},
		},
	}
}

func TestEvaluateRules_FieldMin(t *testing.T) {
	entity := statsEntityWithRules()

	errs := EvaluateRules(entity, map[string]any{"attendance": float64(-5)}, true)
	if len(errs) != 1 {
		t.Fatalf("expected 1 rule error, got %+v", errs)
	}
	if errs[0].Field != "attendance" || errs[0].Rule != "min" {
		t.Fatalf("unexpected detail: %+v", errs[0])
	}
	if errs[0].Message != "attendance cannot be negative" {
		t.Fatalf("expected the rule's message, got %q", errs[0].Message)
	}

	if errs := EvaluateRules(entity, map[string]any{"attendance": float64(0)}, true); len(errs) != 0 {
		t.Fatalf("boundary value should pass, got %+v", errs)
	}
}

func TestEvaluateRules_AbsentFieldPasses(t *testing.T) {
	// Presence is the job of "required", not of field rules
	if errs := EvaluateRules(statsEntityWithRules(), map[string]any{}, false); len(errs) != 0 {
		t.Fatalf("absent field must not trip a bound rule: %+v", errs)
	}
}

func TestEvaluateRules_Expression(t *testing.T) {
	entity := &metadata.Entity{
		Name:       "Calendar",
		Table:      "calendar_events",
		PrimaryKey: metadata.PrimaryKey{Column: "id"},
		Fields: []metadata.Field{
			{Name: "start_time", Type: metadata.TypeTimestamp, Required: true},
			{Name: "end_time", Type: metadata.TypeTimestamp},
		},
		Rules: []*metadata.Rule{
			{Type: "expression",
				Expression: `record.end_time != nil && record.start_time != nil && record.end_time < record.start_time`,
				Message:    "end_time must not precede start_time"},
		},
	}

	bad := map[string]any{
		"start_time": "2026-09-01T10:00:00Z",
		"end_time":   "2026-09-01T09:00:00Z",
	}
	errs := EvaluateRules(entity, bad, true)
	if len(errs) != 1 || errs[0].Message != "end_time must not precede start_time" {
		t.Fatalf("expected ordering violation, got %+v", errs)
	}

	good := map[string]any{
		"start_time": "2026-09-01T10:00:00Z",
		"end_time":   "2026-09-01T11:00:00Z",
	}
	if errs := EvaluateRules(entity, good, true); len(errs) != 0 {
		t.Fatalf("valid range should pass, got %+v", errs)
	}

	// No end_time at all
	if errs := EvaluateRules(entity, map[string]any{"start_time": "2026-09-01T10:00:00Z"}, true); len(errs) != 0 {
		t.Fatalf("open-ended event should pass, got %+v", errs)
	}

	// Second run hits the cached program
	if entity.Rules[0].Compiled() == nil {
		t.Fatal("expected compiled expression to be cached")
	}
	if errs := EvaluateRules(entity, bad, true); len(errs) != 1 {
		t.Fatalf("cached program should still detect violation, got %+v", errs)
	}
}

func TestEvaluateRules_BadExpressionReported(t *testing.T) {
	entity := &metadata.Entity{
		Name:  "Broken",
		Table: "broken",
		Rules: []*metadata.Rule{
			{Type: "expression", Expression: "record.x ==="},
		},
	}
	errs := EvaluateRules(entity, map[string]any{"x": 1}, true)
	if len(errs) != 1 || errs[0].Rule != "expression" {
		t.Fatalf("expected compile error detail, got %+v", errs)
	}
}
