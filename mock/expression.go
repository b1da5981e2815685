/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mock

import (
	"bytes"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// env resolves the #name and :value placeholders of an expression.
type env struct {
	names  map[string]string
	values map[string]types.AttributeValue
}

func (e env) name(tok string) (string, error) {
	if !strings.HasPrefix(tok, "#") {
		return tok, nil
	}
	n, ok := e.names[tok]
	if !ok {
		return "", fmt.Errorf("undefined expression attribute name %s", tok)
	}
	return n, nil
}

func (e env) value(tok string) (types.AttributeValue, error) {
	v, ok := e.values[tok]
	if !ok {
		return nil, fmt.Errorf("undefined expression attribute value %s", tok)
	}
	return v, nil
}

func tokenize(expr string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	runes := []rune(expr)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			flush()
		case r == '(' || r == ')' || r == ',':
			flush()
			tokens = append(tokens, string(r))
		case r == '=' || r == '+' || r == '-':
			flush()
			tokens = append(tokens, string(r))
		case r == '<' || r == '>':
			flush()
			if i+1 < len(runes) && (runes[i+1] == '=' || (r == '<' && runes[i+1] == '>')) {
				tokens = append(tokens, string(r)+string(runes[i+1]))
				i++
			} else {
				tokens = append(tokens, string(r))
			}
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// condNode is a parsed condition or key condition.
type condNode func(item map[string]types.AttributeValue) (bool, error)

// operand is a parsed name, value or function call yielding an attribute value.
type operand func(item map[string]types.AttributeValue) (types.AttributeValue, bool, error)

type parser struct {
	tokens []string
	pos    int
	env    env
}

func (p *parser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *parser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expect(tok string) error {
	if got := p.next(); !strings.EqualFold(got, tok) {
		return fmt.Errorf("expected %q, got %q", tok, got)
	}
	return nil
}

func isKeyword(tok, kw string) bool { return strings.EqualFold(tok, kw) }

// parseCondition compiles a condition, filter or key condition expression.
func parseCondition(expr string, e env) (condNode, error) {
	p := &parser{tokens: tokenize(expr), env: e}
	node, err := p.or()
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expr, err)
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("invalid expression %q: unexpected %q", expr, p.peek())
	}
	return node, nil
}

func (p *parser) or() (condNode, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for isKeyword(p.peek(), "OR") {
		p.next()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		l := left
		left = func(item map[string]types.AttributeValue) (bool, error) {
			ok, err := l(item)
			if err != nil || ok {
				return ok, err
			}
			return right(item)
		}
	}
	return left, nil
}

func (p *parser) and() (condNode, error) {
	left, err := p.not()
	if err != nil {
		return nil, err
	}
	for isKeyword(p.peek(), "AND") {
		p.next()
		right, err := p.not()
		if err != nil {
			return nil, err
		}
		l := left
		left = func(item map[string]types.AttributeValue) (bool, error) {
			ok, err := l(item)
			if err != nil || !ok {
				return false, err
			}
			return right(item)
		}
	}
	return left, nil
}

func (p *parser) not() (condNode, error) {
	if isKeyword(p.peek(), "NOT") {
		p.next()
		inner, err := p.not()
		if err != nil {
			return nil, err
		}
		return func(item map[string]types.AttributeValue) (bool, error) {
			ok, err := inner(item)
			return !ok, err
		}, nil
	}
	return p.primary()
}

func (p *parser) primary() (condNode, error) {
	tok := p.peek()
	if tok == "(" {
		p.next()
		node, err := p.or()
		if err != nil {
			return nil, err
		}
		return node, p.expect(")")
	}

	switch strings.ToLower(tok) {
	case "attribute_exists", "attribute_not_exists":
		p.next()
		args, err := p.args()
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, fmt.Errorf("%s takes one argument", tok)
		}
		want := strings.EqualFold(tok, "attribute_exists")
		return func(item map[string]types.AttributeValue) (bool, error) {
			_, present, err := args[0](item)
			return present == want, err
		}, nil
	case "begins_with", "contains":
		p.next()
		args, err := p.args()
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, fmt.Errorf("%s takes two arguments", tok)
		}
		begins := strings.EqualFold(tok, "begins_with")
		return func(item map[string]types.AttributeValue) (bool, error) {
			a, ok, err := args[0](item)
			if err != nil || !ok {
				return false, err
			}
			b, ok, err := args[1](item)
			if err != nil || !ok {
				return false, err
			}
			if begins {
				return beginsWith(a, b), nil
			}
			return containsValue(a, b), nil
		}, nil
	}

	left, err := p.operand()
	if err != nil {
		return nil, err
	}

	op := p.next()
	switch {
	case isKeyword(op, "BETWEEN"):
		lower, err := p.operand()
		if err != nil {
			return nil, err
		}
		if err := p.expect("AND"); err != nil {
			return nil, err
		}
		upper, err := p.operand()
		if err != nil {
			return nil, err
		}
		return func(item map[string]types.AttributeValue) (bool, error) {
			v, ok, err := left(item)
			if err != nil || !ok {
				return false, err
			}
			lo, _, err := lower(item)
			if err != nil {
				return false, err
			}
			hi, _, err := upper(item)
			if err != nil {
				return false, err
			}
			c1, ok1 := compareValues(v, lo)
			c2, ok2 := compareValues(v, hi)
			return ok1 && ok2 && c1 >= 0 && c2 <= 0, nil
		}, nil
	case isKeyword(op, "IN"):
		if err := p.expect("("); err != nil {
			return nil, err
		}
		var candidates []operand
		for {
			c, err := p.operand()
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, c)
			if p.peek() != "," {
				break
			}
			p.next()
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return func(item map[string]types.AttributeValue) (bool, error) {
			v, ok, err := left(item)
			if err != nil || !ok {
				return false, err
			}
			for _, c := range candidates {
				cv, _, err := c(item)
				if err != nil {
					return false, err
				}
				if equalValues(v, cv) {
					return true, nil
				}
			}
			return false, nil
		}, nil
	case op == "=", op == "<>", op == "<", op == "<=", op == ">", op == ">=":
		right, err := p.operand()
		if err != nil {
			return nil, err
		}
		return func(item map[string]types.AttributeValue) (bool, error) {
			a, aok, err := left(item)
			if err != nil {
				return false, err
			}
			b, bok, err := right(item)
			if err != nil {
				return false, err
			}
			if !aok || !bok {
				return op == "<>" && aok != bok, nil
			}
			switch op {
			case "=":
				return equalValues(a, b), nil
			case "<>":
				return !equalValues(a, b), nil
			}
			c, ok := compareValues(a, b)
			if !ok {
				return false, nil
			}
			switch op {
			case "<":
				return c < 0, nil
			case "<=":
				return c <= 0, nil
			case ">":
				return c > 0, nil
			default:
				return c >= 0, nil
			}
		}, nil
	}
	return nil, fmt.Errorf("unsupported operator %q", op)
}

func (p *parser) args() ([]operand, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var args []operand
	for p.peek() != ")" {
		a, err := p.operand()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.peek() == "," {
			p.next()
		}
	}
	p.next()
	return args, nil
}

func (p *parser) operand() (operand, error) {
	tok := p.next()
	switch {
	case tok == "":
		return nil, fmt.Errorf("unexpected end of expression")
	case strings.HasPrefix(tok, ":"):
		v, err := p.env.value(tok)
		if err != nil {
			return nil, err
		}
		return func(map[string]types.AttributeValue) (types.AttributeValue, bool, error) {
			return v, true, nil
		}, nil
	case strings.EqualFold(tok, "size"):
		args, err := p.args()
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, fmt.Errorf("size takes one argument")
		}
		return func(item map[string]types.AttributeValue) (types.AttributeValue, bool, error) {
			v, ok, err := args[0](item)
			if err != nil || !ok {
				return nil, false, err
			}
			return &types.AttributeValueMemberN{Value: fmt.Sprint(sizeOf(v))}, true, nil
		}, nil
	case strings.EqualFold(tok, "if_not_exists"):
		args, err := p.args()
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, fmt.Errorf("if_not_exists takes two arguments")
		}
		return func(item map[string]types.AttributeValue) (types.AttributeValue, bool, error) {
			v, ok, err := args[0](item)
			if err != nil || ok {
				return v, ok, err
			}
			return args[1](item)
		}, nil
	default:
		name, err := p.env.name(tok)
		if err != nil {
			return nil, err
		}
		return func(item map[string]types.AttributeValue) (types.AttributeValue, bool, error) {
			v, ok := item[name]
			return v, ok, nil
		}, nil
	}
}

// assignment is one clause of a SET or REMOVE update.
type assignment struct {
	name   string
	value  operand
	remove bool
}

// parseUpdate compiles the SET and REMOVE clauses of an update expression.
func parseUpdate(expr string, e env) ([]assignment, error) {
	p := &parser{tokens: tokenize(expr), env: e}
	var out []assignment

	for p.peek() != "" {
		switch mode := strings.ToUpper(p.next()); mode {
		case "SET":
			for {
				name, err := e.name(p.next())
				if err != nil {
					return nil, err
				}
				if err := p.expect("="); err != nil {
					return nil, err
				}
				value, err := p.arith()
				if err != nil {
					return nil, err
				}
				out = append(out, assignment{name: name, value: value})
				if p.peek() != "," {
					break
				}
				p.next()
			}
		case "REMOVE":
			for {
				name, err := e.name(p.next())
				if err != nil {
					return nil, err
				}
				out = append(out, assignment{name: name, remove: true})
				if p.peek() != "," {
					break
				}
				p.next()
			}
		default:
			return nil, fmt.Errorf("unsupported update clause %q in %q", mode, expr)
		}
	}
	return out, nil
}

// arith parses an operand optionally followed by + or - and a second operand.
func (p *parser) arith() (operand, error) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	op := p.peek()
	if op != "+" && op != "-" {
		return left, nil
	}
	p.next()
	right, err := p.operand()
	if err != nil {
		return nil, err
	}
	return func(item map[string]types.AttributeValue) (types.AttributeValue, bool, error) {
		a, aok, err := left(item)
		if err != nil {
			return nil, false, err
		}
		b, bok, err := right(item)
		if err != nil {
			return nil, false, err
		}
		an, ok1 := a.(*types.AttributeValueMemberN)
		bn, ok2 := b.(*types.AttributeValueMemberN)
		if !aok || !bok || !ok1 || !ok2 {
			return nil, false, fmt.Errorf("arithmetic needs two numbers")
		}
		x, _ := new(big.Float).SetString(an.Value)
		y, _ := new(big.Float).SetString(bn.Value)
		if x == nil || y == nil {
			return nil, false, fmt.Errorf("invalid number")
		}
		if op == "+" {
			x.Add(x, y)
		} else {
			x.Sub(x, y)
		}
		return &types.AttributeValueMemberN{Value: x.Text('f', -1)}, true, nil
	}, nil
}

// compareValues orders two scalar values of the same type.
func compareValues(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bv.Value), true
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		x, _ := new(big.Float).SetString(av.Value)
		y, _ := new(big.Float).SetString(bv.Value)
		if x == nil || y == nil {
			return 0, false
		}
		return x.Cmp(y), true
	case *types.AttributeValueMemberB:
		bv, ok := b.(*types.AttributeValueMemberB)
		if !ok {
			return 0, false
		}
		return bytes.Compare(av.Value, bv.Value), true
	}
	return 0, false
}

func equalValues(a, b types.AttributeValue) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

func beginsWith(a, b types.AttributeValue) bool {
	as, ok1 := a.(*types.AttributeValueMemberS)
	bs, ok2 := b.(*types.AttributeValueMemberS)
	if ok1 && ok2 {
		return strings.HasPrefix(as.Value, bs.Value)
	}
	ab, ok1 := a.(*types.AttributeValueMemberB)
	bb, ok2 := b.(*types.AttributeValueMemberB)
	return ok1 && ok2 && bytes.HasPrefix(ab.Value, bb.Value)
}

func containsValue(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bs, ok := b.(*types.AttributeValueMemberS)
		return ok && strings.Contains(av.Value, bs.Value)
	case *types.AttributeValueMemberSS:
		bs, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return false
		}
		for _, s := range av.Value {
			if s == bs.Value {
				return true
			}
		}
	case *types.AttributeValueMemberL:
		for _, v := range av.Value {
			if equalValues(v, b) {
				return true
			}
		}
	}
	return false
}

func sizeOf(v types.AttributeValue) int {
	switch tv := v.(type) {
	case *types.AttributeValueMemberS:
		return len(tv.Value)
	case *types.AttributeValueMemberB:
		return len(tv.Value)
	case *types.AttributeValueMemberL:
		return len(tv.Value)
	case *types.AttributeValueMemberM:
		return len(tv.Value)
	case *types.AttributeValueMemberSS:
		return len(tv.Value)
	case *types.AttributeValueMemberNS:
		return len(tv.Value)
	}
	return 0
}
