package engine

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"ministry-backend/internal/metadata"
)

// EvaluateRules runs the entity's declarative rules against the pending
// write. Field rules check numeric bounds; expression rules run an
// expr-lang boolean over {record, action} and fail when it returns true.
func EvaluateRules(entity *metadata.Entity, fields map[string]any, isCreate bool) []ErrorDetail {
	if len(entity.Rules) == 0 {
		return nil
	}

	action := "update"
	if isCreate {
		action = "create"
	}
	env := map[string]any{
		"record": fields,
		"action": action,
	}

	var errs []ErrorDetail
	for _, r := range entity.Rules {
		var detail *ErrorDetail
		switch r.Type {
		case "field":
			detail = evaluateFieldRule(r, fields)
		case "expression":
			detail = evaluateExpressionRule(r, env)
		}
		if detail != nil {
			errs = append(errs, *detail)
		}
	}
	return errs
}

// evaluateFieldRule checks a numeric bound. Absent or non-numeric values
// pass; "required" handles presence.
func evaluateFieldRule(rule *metadata.Rule, record map[string]any) *ErrorDetail {
	val, exists := record[rule.Field]
	if !exists || val == nil {
		return nil
	}
	num, ok := toFloat64(val)
	if !ok {
		return nil
	}

	msg := rule.Message
	if msg == "" {
		msg = fmt.Sprintf("field %s failed %s validation", rule.Field, rule.Operator)
	}

	switch rule.Operator {
	case "min":
		if num < rule.Value {
			return &ErrorDetail{Field: rule.Field, Rule: "min", Message: msg}
		}
	case "max":
		if num > rule.Value {
			return &ErrorDetail{Field: rule.Field, Rule: "max", Message: msg}
		}
	}
	return nil
}

func evaluateExpressionRule(rule *metadata.Rule, env map[string]any) *ErrorDetail {
	prog, ok := rule.Compiled().(*vm.Program)
	if !ok || prog == nil {
		compiled, err := expr.Compile(rule.Expression, expr.AsBool(), expr.AllowUndefinedVariables())
		if err != nil {
			return &ErrorDetail{Rule: "expression", Message: fmt.Sprintf("compile error: %v", err)}
		}
		rule.SetCompiled(compiled)
		prog = compiled
	}

	result, err := expr.Run(prog, env)
	if err != nil {
		return &ErrorDetail{Rule: "expression", Message: fmt.Sprintf("rule evaluation error: %v", err)}
	}

	violated, ok := result.(bool)
	if !ok || !violated {
		return nil
	}

	msg := rule.Message
	if msg == "" {
		msg = "Expression rule violated"
	}
	return &ErrorDetail{Rule: "expression", Message: msg}
}

// toFloat64 converts numeric types to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
