package parser

import (
	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/token"
)

// Expression precedence parsing using a Pratt parser.
//
// Precedence levels (from pkg/core):
//
//	PrecedenceNone       = 0
//	PrecedenceOr         = 1
//	PrecedenceAnd        = 2
//	PrecedenceNot        = 3
//	PrecedenceComparison = 4  (=, <>, <, >, <=, >=, IS, IN, BETWEEN, LIKE, ILIKE)
//	PrecedenceAddition   = 5  (+, -, ||)
//	PrecedenceMultiply   = 6  (*, /, %)
//	PrecedenceUnary      = 7  (-, +)
//	PrecedencePostfix    = 8  (::)

// parseExpression parses an expression using precedence climbing.
func (p *Parser) parseExpression() core.Expr {
	return p.parseExpressionWithPrecedence(core.PrecedenceNone + 1)
}

// parseExpressionWithPrecedence parses a prefix expression followed by every
// infix operator binding at least as tightly as minPrecedence.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) core.Expr {
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}
	return p.parseInfix(left, minPrecedence)
}

// parseInfix continues an expression whose left operand is already parsed.
func (p *Parser) parseInfix(left core.Expr, minPrecedence int) core.Expr {
	for !p.failed() {
		prec := p.infixPrecedence()
		if prec == core.PrecedenceNone || prec < minPrecedence {
			break
		}
		left = p.parseInfixExpr(left, prec)
		if left == nil {
			break
		}
	}
	return left
}

// parsePrefixExpr parses prefix expressions (unary operators and primary expressions).
func (p *Parser) parsePrefixExpr() core.Expr {
	start := p.token.Pos
	switch p.token.Type {
	case token.NOT:
		if p.checkPeek(token.EXISTS) {
			return p.parsePrimary()
		}
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(core.PrecedenceNot)
		return &core.UnaryExpr{NodeInfo: at(start), Op: token.NOT, Expr: expr}

	case token.MINUS, token.PLUS:
		op := p.token.Type
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(core.PrecedenceUnary)
		return &core.UnaryExpr{NodeInfo: at(start), Op: op, Expr: expr}

	default:
		return p.parsePrimary()
	}
}

// infixPrecedence returns the precedence of the current token as an infix
// operator, or PrecedenceNone.
func (p *Parser) infixPrecedence() int {
	switch p.token.Type {
	case token.IS, token.IN, token.BETWEEN, token.LIKE, token.ILIKE:
		return core.PrecedenceComparison
	case token.NOT:
		// NOT IN, NOT BETWEEN, NOT LIKE, NOT ILIKE
		switch p.peek.Type {
		case token.IN, token.BETWEEN, token.LIKE, token.ILIKE:
			return core.PrecedenceComparison
		}
		return core.PrecedenceNone
	case token.DCOLON:
		return core.PrecedencePostfix
	default:
		return core.BinaryPrecedence(p.token.Type)
	}
}

// parseInfixExpr parses an infix expression given the left operand and current precedence.
func (p *Parser) parseInfixExpr(left core.Expr, prec int) core.Expr {
	info := core.NodeInfo{Span: token.Span{Start: left.Pos()}}

	switch p.token.Type {
	case token.NOT:
		p.nextToken()
		return p.parseNegatable(left, info, true)

	case token.IN, token.BETWEEN, token.LIKE, token.ILIKE:
		return p.parseNegatable(left, info, false)

	case token.IS:
		return p.parseIsExpr(left, info)

	case token.DCOLON:
		p.nextToken()
		return &core.CastExpr{NodeInfo: info, Expr: left, TypeName: p.parseTypeName()}
	}

	op := p.token.Type
	p.nextToken()
	right := p.parseExpressionWithPrecedence(prec + 1)
	if right == nil {
		p.addError("expected expression after " + op.String())
		return nil
	}
	return &core.BinaryExpr{NodeInfo: info, Left: left, Op: op, Right: right}
}

// parseNegatable parses IN, BETWEEN, LIKE and ILIKE, optionally negated.
func (p *Parser) parseNegatable(left core.Expr, info core.NodeInfo, not bool) core.Expr {
	switch p.token.Type {
	case token.IN:
		p.nextToken()
		return p.parseInExpr(left, info, not)

	case token.BETWEEN:
		p.nextToken()
		low := p.parseExpressionWithPrecedence(core.PrecedenceAddition)
		p.expect(token.AND)
		high := p.parseExpressionWithPrecedence(core.PrecedenceAddition)
		return &core.BetweenExpr{NodeInfo: info, Expr: left, Not: not, Low: low, High: high}

	case token.LIKE, token.ILIKE:
		op := p.token.Type
		p.nextToken()
		pattern := p.parseExpressionWithPrecedence(core.PrecedenceAddition)
		if p.check(token.IDENT) && p.token.Literal == "escape" {
			p.unsupported("LIKE ... ESCAPE")
		}
		return &core.LikeExpr{NodeInfo: info, Expr: left, Not: not, Pattern: pattern, Op: op}
	}

	p.addError("expected IN, BETWEEN, LIKE or ILIKE after NOT")
	return nil
}

// parseInExpr parses the list or subquery after IN.
func (p *Parser) parseInExpr(left core.Expr, info core.NodeInfo, not bool) core.Expr {
	in := &core.InExpr{NodeInfo: info, Expr: left, Not: not}
	if !p.expect(token.LPAREN) {
		return nil
	}
	if p.check(token.SELECT) || p.check(token.WITH) {
		in.Query = p.parseStatement()
	} else {
		in.Values = p.parseExpressionList()
	}
	p.expect(token.RPAREN)
	return in
}

// parseIsExpr parses IS [NOT] NULL / TRUE / FALSE.
func (p *Parser) parseIsExpr(left core.Expr, info core.NodeInfo) core.Expr {
	p.expect(token.IS)
	not := p.match(token.NOT)

	switch p.token.Type {
	case token.NULL:
		p.nextToken()
		return &core.IsNullExpr{NodeInfo: info, Expr: left, Not: not}
	case token.TRUE, token.FALSE:
		value := p.check(token.TRUE)
		p.nextToken()
		return &core.IsBoolExpr{NodeInfo: info, Expr: left, Not: not, Value: value}
	case token.DISTINCT:
		p.unsupported("IS DISTINCT FROM")
		return nil
	}

	p.addError("expected NULL, TRUE or FALSE after IS")
	return nil
}

func at(pos token.Position) core.NodeInfo {
	return core.NodeInfo{Span: token.Span{Start: pos}}
}
