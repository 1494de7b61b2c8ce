package view

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/JonMunkholm/editgrid/internal/schema"
	"github.com/JonMunkholm/editgrid/internal/table"
)

// MaxProgramCache is the number of compiled filter programs kept per engine.
const MaxProgramCache = 256

var (
	ErrUnknownColumn   = errors.New("unknown column")
	ErrUnknownOperator = errors.New("unsupported filter operator")
	ErrInvalidValue    = errors.New("invalid filter value")
	ErrNotBoolean      = errors.New("filter expression must return a boolean")
)

// programCache holds compiled CEL programs keyed by expression, evicting in
// insertion order.
type programCache struct {
	env   *cel.Env
	mu    sync.Mutex
	progs map[string]cel.Program
	order []string
}

func newProgramCache() (*programCache, error) {
	env, err := cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL env: %w", err)
	}
	return &programCache{env: env, progs: make(map[string]cel.Program)}, nil
}

func (c *programCache) get(expr string) (cel.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prg, ok := c.progs[expr]; ok {
		return prg, nil
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation error: %w", err)
	}

	if len(c.order) >= MaxProgramCache {
		delete(c.progs, c.order[0])
		c.order = c.order[1:]
	}
	c.progs[expr] = prg
	c.order = append(c.order, expr)
	return prg, nil
}

// predicate is a compiled row filter.
type predicate func(table.Row) (bool, error)

// buildPredicate combines column filters and the free-form expression into a
// single CEL program. It returns nil when there is nothing to filter on.
func (e *Engine) buildPredicate(filters []ColumnFilter, expr string) (predicate, error) {
	var parts []string
	for _, f := range filters {
		p, err := e.filterToExpression(f)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	if expr != "" {
		parts = append(parts, "("+expr+")")
	}
	if len(parts) == 0 {
		return nil, nil
	}

	prg, err := e.programs.get(strings.Join(parts, " && "))
	if err != nil {
		return nil, err
	}

	return func(row table.Row) (bool, error) {
		out, _, err := prg.Eval(map[string]any{"row": map[string]any(row)})
		if err != nil {
			// Missing fields or mismatched types simply do not match.
			return false, nil
		}
		match, ok := out.Value().(bool)
		if !ok {
			return false, fmt.Errorf("%w, got %T", ErrNotBoolean, out.Value())
		}
		return match, nil
	}, nil
}

func (e *Engine) filterToExpression(f ColumnFilter) (string, error) {
	col, ok := e.def.Column(f.Column)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownColumn, f.Column)
	}
	field := fmt.Sprintf("row[%s]", quote(f.Column))
	text := fmt.Sprintf("string(%s)", field)

	switch f.Operator {
	case OpContains:
		return fmt.Sprintf("%s.matches(%s)", text, quote("(?i)"+regexp.QuoteMeta(f.Value))), nil
	case OpStartsWith:
		return fmt.Sprintf("%s.matches(%s)", text, quote("(?i)^"+regexp.QuoteMeta(f.Value))), nil
	case OpEndsWith:
		return fmt.Sprintf("%s.matches(%s)", text, quote("(?i)"+regexp.QuoteMeta(f.Value)+"$")), nil
	case OpEquals:
		switch col.Type {
		case schema.CellNumber:
			n, err := number(f.Value)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("double(%s) == %s", field, n), nil
		case schema.CellBoolean:
			b, ok := schema.ParseBool(f.Value)
			if !ok {
				return "", fmt.Errorf("%w: %q", ErrInvalidValue, f.Value)
			}
			return fmt.Sprintf("%s == %t", field, b), nil
		}
		return fmt.Sprintf("%s.matches(%s)", text, quote("(?i)^"+regexp.QuoteMeta(f.Value)+"$")), nil
	case OpGreaterEq, OpLessEq, OpGreater, OpLess:
		n, err := number(f.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("double(%s) %s %s", field, comparator(f.Operator), n), nil
	case OpIn:
		var items []string
		for _, v := range strings.Split(f.Value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				items = append(items, quote(v))
			}
		}
		if len(items) == 0 {
			return "", fmt.Errorf("%w: empty list", ErrInvalidValue)
		}
		return fmt.Sprintf("%s in [%s]", text, strings.Join(items, ", ")), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownOperator, f.Operator)
	}
}

func comparator(op FilterOperator) string {
	switch op {
	case OpGreaterEq:
		return ">="
	case OpLessEq:
		return "<="
	case OpGreater:
		return ">"
	default:
		return "<"
	}
}

// number renders a filter value as a CEL double literal.
func number(s string) (string, error) {
	v, ok := schema.ParseNumber(s)
	if !ok {
		return "", fmt.Errorf("%w: %q is not a number", ErrInvalidValue, s)
	}
	var f float64
	switch n := v.(type) {
	case int64:
		f = float64(n)
	case float64:
		f = n
	}
	s = strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s, nil
}

// quote renders s as a single-quoted CEL string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
