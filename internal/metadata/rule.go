package metadata

import "sync"

// Rule is a declarative validation check evaluated before writes.
// Field rules compare a single numeric field against a bound; expression
// rules run an expr-lang boolean over {record, action} and fail when it
// evaluates to true.
type Rule struct {
	Type       string // "field" or "expression"
	Field      string
	Operator   string // field rules: "min" or "max"
	Value      float64
	Expression string
	Message    string

	// compiled caches the expr program after first use.
	compiledMu sync.Mutex
	compiled   any
}

// Compiled returns the cached compiled program, or nil.
func (r *Rule) Compiled() any {
	r.compiledMu.Lock()
	defer r.compiledMu.Unlock()
	return r.compiled
}

// SetCompiled stores the compiled program for reuse.
func (r *Rule) SetCompiled(p any) {
	r.compiledMu.Lock()
	defer r.compiledMu.Unlock()
	r.compiled = p
}
