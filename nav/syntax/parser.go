package syntax

import (
	"github.com/weftql/weft/nav"
)

// Parse turns query text into a syntax tree. The query must start with a
// collect slash: /table.filter(...).
func Parse(input string) (Syntax, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, input: input}
	if !p.atSymbol("/") {
		return nil, p.fail("a query must start with /")
	}
	slash := p.advance()
	base, err := p.parseFlow()
	if err != nil {
		return nil, err
	}
	if p.current().kind != tokenEOF {
		return nil, p.fail("unexpected input after the query")
	}
	return &Collect{Base: base, mark: slash.mark.Union(base.Mark())}, nil
}

type parser struct {
	tokens []token
	input  string
	pos    int
}

func (p *parser) current() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) atSymbol(text string) bool {
	t := p.current()
	return t.kind == tokenSymbol && t.text == text
}

func (p *parser) expectSymbol(text string) (token, error) {
	if !p.atSymbol(text) {
		return token{}, p.fail("expected " + text)
	}
	return p.advance(), nil
}

func (p *parser) fail(msg string) error {
	return nav.NewError(nav.ErrSyntax.New(msg), p.current().mark)
}

// parseFlow parses a navigation pipeline: atom followed by any number of
// .step, ?predicate, {selection} and ^kernel postfixes.
func (p *parser) parseFlow() (Syntax, error) {
	node, err := p.parseStep()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.atSymbol("."):
			p.advance()
			step, err := p.parseStep()
			if err != nil {
				return nil, err
			}
			node = &Compose{Left: node, Right: step, mark: node.Mark().Union(step.Mark())}

		case p.atSymbol("?"):
			p.advance()
			pred, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			node = &Filter{Base: node, Predicate: pred, mark: node.Mark().Union(pred.Mark())}

		case p.atSymbol("{"):
			open := p.advance()
			var fields []Syntax
			if !p.atSymbol("}") {
				for {
					f, err := p.parseField()
					if err != nil {
						return nil, err
					}
					fields = append(fields, f)
					if !p.atSymbol(",") {
						break
					}
					p.advance()
				}
			}
			close_, err := p.expectSymbol("}")
			if err != nil {
				return nil, err
			}
			node = &Select{Base: node, Fields: fields, mark: node.Mark().Union(open.mark).Union(close_.mark)}

		case p.atSymbol("^"):
			p.advance()
			var kernels []Syntax
			if p.atSymbol("{") {
				p.advance()
				for {
					k, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					kernels = append(kernels, k)
					if !p.atSymbol(",") {
						break
					}
					p.advance()
				}
				if _, err := p.expectSymbol("}"); err != nil {
					return nil, err
				}
			} else {
				k, err := p.parseChain()
				if err != nil {
					return nil, err
				}
				kernels = append(kernels, k)
			}
			mark := node.Mark()
			for _, k := range kernels {
				mark = mark.Union(k.Mark())
			}
			node = &Quotient{Base: node, Kernels: kernels, mark: mark}

		default:
			return node, nil
		}
	}
}

// parseStep parses one navigation step: an identifier or a call.
func (p *parser) parseStep() (Syntax, error) {
	t := p.current()
	if t.kind != tokenIdent {
		return nil, p.fail("expected a name")
	}
	p.advance()
	if p.atSymbol("(") {
		return p.parseCall(t)
	}
	return &Identifier{Name: t.text, mark: t.mark}, nil
}

func (p *parser) parseCall(name token) (Syntax, error) {
	if _, err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var args []Syntax
	mark := name.mark
	if !p.atSymbol(")") {
		for {
			a, err := p.parseField()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			mark = mark.Union(a.Mark())
			if !p.atSymbol(",") {
				break
			}
			p.advance()
		}
	}
	close_, err := p.expectSymbol(")")
	if err != nil {
		return nil, err
	}
	return &Apply{Name: name.text, Args: args, mark: mark.Union(close_.mark)}, nil
}

// parseField parses a selection field or call argument: an expression with
// an optional trailing sort polarity.
func (p *parser) parseField() (Syntax, error) {
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.atSymbol("+") || p.atSymbol("-") {
		next := p.tokens[p.pos+1]
		if next.kind == tokenEOF ||
			(next.kind == tokenSymbol && (next.text == "," || next.text == ")" || next.text == "}")) {
			t := p.advance()
			return &Polarity{Base: e, Descending: t.text == "-", mark: e.Mark().Union(t.mark)}, nil
		}
	}
	return e, nil
}

// Expression grammar, loosest binding first:
// or | and | not | comparison | additive | multiplicative | unary | chain.

func (p *parser) parseExpr() (Syntax, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Syntax, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atSymbol("|") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Apply{Name: "or", Args: []Syntax{left, right}, mark: left.Mark().Union(right.Mark())}
	}
	return left, nil
}

func (p *parser) parseAnd() (Syntax, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.atSymbol("&") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Apply{Name: "and", Args: []Syntax{left, right}, mark: left.Mark().Union(right.Mark())}
	}
	return left, nil
}

func (p *parser) parseNot() (Syntax, error) {
	if p.atSymbol("!") {
		t := p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Apply{Name: "not", Args: []Syntax{operand}, mark: t.mark.Union(operand.Mark())}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]string{
	"=": "=", "!=": "!=", "==": "==", "!==": "!==",
	"<": "<", "<=": "<=", ">": ">", ">=": ">=",
}

func (p *parser) parseComparison() (Syntax, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	t := p.current()
	if t.kind == tokenSymbol {
		if op, ok := comparisonOps[t.text]; ok {
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &Apply{Name: op, Args: []Syntax{left, right}, mark: left.Mark().Union(right.Mark())}, nil
		}
	}
	return left, nil
}

func (p *parser) parseAdditive() (Syntax, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.atSymbol("+") || p.atSymbol("-") {
		t := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Apply{Name: t.text, Args: []Syntax{left, right}, mark: left.Mark().Union(right.Mark())}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Syntax, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.atSymbol("*") || p.atSymbol("/") {
		t := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Apply{Name: t.text, Args: []Syntax{left, right}, mark: left.Mark().Union(right.Mark())}
	}
	return left, nil
}

func (p *parser) parseUnary() (Syntax, error) {
	if p.atSymbol("-") {
		t := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Apply{Name: "neg", Args: []Syntax{operand}, mark: t.mark.Union(operand.Mark())}, nil
	}
	return p.parseChain()
}

// parseChain parses a primary followed by dotted navigation: a.b.c(x).
func (p *parser) parseChain() (Syntax, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.atSymbol(".") {
		p.advance()
		step, err := p.parseStep()
		if err != nil {
			return nil, err
		}
		node = &Compose{Left: node, Right: step, mark: node.Mark().Union(step.Mark())}
	}
	return node, nil
}

func (p *parser) parsePrimary() (Syntax, error) {
	t := p.current()
	switch t.kind {
	case tokenIdent:
		switch t.text {
		case "true":
			p.advance()
			return &Literal{Text: "true", Kind: TrueLiteral, mark: t.mark}, nil
		case "false":
			p.advance()
			return &Literal{Text: "false", Kind: FalseLiteral, mark: t.mark}, nil
		case "null":
			p.advance()
			return &Literal{Text: "null", Kind: NullLiteral, mark: t.mark}, nil
		}
		return p.parseStep()

	case tokenNumber:
		p.advance()
		kind := IntegerLiteral
		for i := 0; i < len(t.text); i++ {
			if t.text[i] == 'e' || t.text[i] == 'E' {
				kind = FloatLiteral
				break
			}
			if t.text[i] == '.' {
				kind = DecimalLiteral
			}
		}
		return &Literal{Text: t.text, Kind: kind, mark: t.mark}, nil

	case tokenString:
		p.advance()
		return &Literal{Text: t.text, Kind: StringLiteral, mark: t.mark}, nil

	case tokenReference:
		p.advance()
		return &Reference{Name: t.text, mark: t.mark}, nil

	case tokenSymbol:
		if t.text == "(" {
			p.advance()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
		if t.text == "^" {
			// Inside a quotient scope, a bare ^ names the complement.
			p.advance()
			return &Identifier{Name: "^", mark: t.mark}, nil
		}
	}
	return nil, p.fail("expected an expression")
}
