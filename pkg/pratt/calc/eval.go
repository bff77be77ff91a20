package calc

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/sambeau/pratt/pkg/pratt/ast"
	"github.com/sambeau/pratt/pkg/pratt/token"
)

// Value is the result of evaluation: float64, string, bool or *Builtin.
type Value = any

// Builtin is a function callable from expressions.
type Builtin struct {
	Name  string
	Arity int // -1 for variadic
	Fn    func(args []Value) (Value, error)
}

// EvalError is a runtime failure, positioned at the offending expression.
type EvalError struct {
	Message string
	Span    token.Span
}

func (e *EvalError) Error() string {
	if e.Span.Start.Line > 0 {
		return fmt.Sprintf("line %d, column %d: %s", e.Span.Start.Line, e.Span.Start.Column, e.Message)
	}
	return e.Message
}

func newError(node ast.Expression, format string, args ...any) *EvalError {
	return &EvalError{Message: fmt.Sprintf(format, args...), Span: node.Span()}
}

// Environment holds variable bindings.
type Environment struct {
	store map[string]Value
}

// NewEnvironment returns an environment with the builtin constants and
// functions bound.
func NewEnvironment() *Environment {
	env := &Environment{store: make(map[string]Value)}
	env.Set("pi", math.Pi)
	env.Set("e", math.E)
	env.Set("true", true)
	env.Set("false", false)
	for _, b := range builtins {
		env.Set(b.Name, b)
	}
	return env
}

// Get returns the value bound to name.
func (e *Environment) Get(name string) (Value, bool) {
	v, ok := e.store[name]
	return v, ok
}

// Set binds name.
func (e *Environment) Set(name string, v Value) {
	e.store[name] = v
}

// Names returns every bound name in order, for completion.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.store))
	for n := range e.store {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func unary(name string, fn func(float64) float64) *Builtin {
	return &Builtin{Name: name, Arity: 1, Fn: func(args []Value) (Value, error) {
		x, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("%s expects a number, got %s", name, typeName(args[0]))
		}
		return fn(x), nil
	}}
}

var builtins = []*Builtin{
	unary("sqrt", math.Sqrt),
	unary("abs", math.Abs),
	unary("floor", math.Floor),
	unary("ceil", math.Ceil),
	unary("round", math.Round),
	unary("ln", math.Log),
	unary("sin", math.Sin),
	unary("cos", math.Cos),
	{Name: "len", Arity: 1, Fn: func(args []Value) (Value, error) {
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("len expects a string, got %s", typeName(args[0]))
		}
		return float64(utf8.RuneCountInString(s)), nil
	}},
	{Name: "max", Arity: -1, Fn: func(args []Value) (Value, error) { return fold("max", args, math.Max) }},
	{Name: "min", Arity: -1, Fn: func(args []Value) (Value, error) { return fold("min", args, math.Min) }},
}

func fold(name string, args []Value, fn func(a, b float64) float64) (Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s needs at least one argument", name)
	}
	acc := math.NaN()
	for i, a := range args {
		x, ok := a.(float64)
		if !ok {
			return nil, fmt.Errorf("%s expects numbers, argument %d is %s", name, i+1, typeName(a))
		}
		if i == 0 {
			acc = x
		} else {
			acc = fn(acc, x)
		}
	}
	return acc, nil
}

// Eval evaluates an expression tree.
func Eval(node ast.Expression, env *Environment) (Value, error) {
	switch node := node.(type) {
	case *ast.NumberLiteral:
		return node.Value, nil

	case *ast.StringLiteral:
		return node.Value, nil

	case *ast.Identifier:
		v, ok := env.Get(node.Value)
		if !ok {
			return nil, newError(node, "identifier not found: %s", node.Value)
		}
		return v, nil

	case *ast.PrefixExpression:
		right, err := Eval(node.Right, env)
		if err != nil {
			return nil, err
		}
		return evalPrefix(node, right)

	case *ast.PostfixExpression:
		left, err := Eval(node.Left, env)
		if err != nil {
			return nil, err
		}
		return evalPostfix(node, left)

	case *ast.InfixExpression:
		return evalInfix(node, env)

	case *ast.ConditionalExpression:
		cond, err := Eval(node.Condition, env)
		if err != nil {
			return nil, err
		}
		b, ok := cond.(bool)
		if !ok {
			return nil, newError(node.Condition, "condition must be a boolean, got %s", typeName(cond))
		}
		if b {
			return Eval(node.Consequence, env)
		}
		return Eval(node.Alternative, env)

	case *ast.CallExpression:
		return evalCall(node, env)
	}
	return nil, newError(node, "cannot evaluate %T", node)
}

func evalPrefix(node *ast.PrefixExpression, right Value) (Value, error) {
	switch node.Op {
	case "not":
		b, ok := right.(bool)
		if !ok {
			return nil, newError(node, "operator %s expects a boolean, got %s", node.Operator, typeName(right))
		}
		return !b, nil
	case "neg", "pos":
		x, ok := right.(float64)
		if !ok {
			return nil, newError(node, "operator %s expects a number, got %s", node.Operator, typeName(right))
		}
		if node.Op == "neg" {
			return -x, nil
		}
		return x, nil
	}
	return nil, newError(node, "unknown prefix operation %s", node.Op)
}

func evalPostfix(node *ast.PostfixExpression, left Value) (Value, error) {
	x, ok := left.(float64)
	if !ok {
		return nil, newError(node, "operator %s expects a number, got %s", node.Operator, typeName(left))
	}
	switch node.Op {
	case "fact":
		if x < 0 || x != math.Trunc(x) {
			return nil, newError(node, "factorial of %s is undefined", Format(x, ""))
		}
		if x > 170 {
			return math.Inf(1), nil
		}
		result := 1.0
		for i := 2.0; i <= x; i++ {
			result *= i
		}
		return result, nil
	case "pct":
		return x / 100, nil
	}
	return nil, newError(node, "unknown postfix operation %s", node.Op)
}

func evalInfix(node *ast.InfixExpression, env *Environment) (Value, error) {
	left, err := Eval(node.Left, env)
	if err != nil {
		return nil, err
	}

	// and/or short-circuit
	if node.Op == "and" || node.Op == "or" {
		l, ok := left.(bool)
		if !ok {
			return nil, newError(node.Left, "operator %s expects booleans, got %s", node.Operator, typeName(left))
		}
		if node.Op == "and" && !l || node.Op == "or" && l {
			return l, nil
		}
		right, err := Eval(node.Right, env)
		if err != nil {
			return nil, err
		}
		r, ok := right.(bool)
		if !ok {
			return nil, newError(node.Right, "operator %s expects booleans, got %s", node.Operator, typeName(right))
		}
		return r, nil
	}

	right, err := Eval(node.Right, env)
	if err != nil {
		return nil, err
	}

	switch node.Op {
	case "eq":
		return left == right, nil
	case "ne":
		return left != right, nil
	case "concat":
		return toString(left) + toString(right), nil
	}

	switch l := left.(type) {
	case float64:
		r, ok := right.(float64)
		if !ok {
			break
		}
		return evalNumberInfix(node, l, r)
	case string:
		r, ok := right.(string)
		if !ok {
			break
		}
		switch node.Op {
		case "add":
			return l + r, nil
		case "lt":
			return l < r, nil
		case "le":
			return l <= r, nil
		case "gt":
			return l > r, nil
		case "ge":
			return l >= r, nil
		}
	}
	return nil, newError(node, "type mismatch: %s %s %s", typeName(left), node.Operator, typeName(right))
}

func evalNumberInfix(node *ast.InfixExpression, l, r float64) (Value, error) {
	switch node.Op {
	case "add":
		return l + r, nil
	case "sub":
		return l - r, nil
	case "mul":
		return l * r, nil
	case "div":
		if r == 0 {
			return nil, newError(node, "division by zero")
		}
		return l / r, nil
	case "mod":
		if r == 0 {
			return nil, newError(node, "division by zero")
		}
		return math.Mod(l, r), nil
	case "pow":
		return math.Pow(l, r), nil
	case "lt":
		return l < r, nil
	case "le":
		return l <= r, nil
	case "gt":
		return l > r, nil
	case "ge":
		return l >= r, nil
	}
	return nil, newError(node, "unknown infix operation %s", node.Op)
}

func evalCall(node *ast.CallExpression, env *Environment) (Value, error) {
	fn, err := Eval(node.Function, env)
	if err != nil {
		return nil, err
	}
	b, ok := fn.(*Builtin)
	if !ok {
		return nil, newError(node.Function, "%s is not a function", typeName(fn))
	}
	if b.Arity >= 0 && len(node.Arguments) != b.Arity {
		return nil, newError(node, "%s takes %d argument(s), got %d", b.Name, b.Arity, len(node.Arguments))
	}

	args := make([]Value, 0, len(node.Arguments))
	for _, a := range node.Arguments {
		v, err := Eval(a, env)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	result, err := b.Fn(args)
	if err != nil {
		return nil, newError(node, "%s", err.Error())
	}
	return result, nil
}

func typeName(v Value) string {
	switch v.(type) {
	case float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "boolean"
	case *Builtin:
		return "function"
	}
	return fmt.Sprintf("%T", v)
}

func toString(v Value) string {
	if s, ok := v.(string); ok {
		return s
	}
	return Format(v, "")
}

// Format renders a value for display. Numbers are printed with locale
// grouping when locale is a valid BCP 47 tag.
func Format(v Value, locale string) string {
	switch v := v.(type) {
	case float64:
		if locale != "" {
			if tag, err := language.Parse(locale); err == nil {
				p := message.NewPrinter(tag)
				return p.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(10)))
			}
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case *Builtin:
		return "<builtin " + v.Name + ">"
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
