package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/token"
)

// Primary expressions: literals, column references, function calls, CASE,
// CAST, EXISTS, subqueries and parenthesized expressions.
//
// Grammar:
//
//	primary       → literal | column_ref | func_call | case_expr | cast_expr
//	              | exists_expr | interval | typed_literal | extract
//	              | "(" expr ")" | "(" statement ")"
//	column_ref    → identifier ("." identifier)*
//	func_call     → identifier "(" [DISTINCT] [args | "*"] ")" [FILTER "(" WHERE expr ")"] [OVER window]
//	case_expr     → CASE [expr] (WHEN expr THEN expr)+ [ELSE expr] END
//	cast_expr     → CAST "(" expr AS type ")"
//	interval      → INTERVAL string [unit]
//	typed_literal → (DATE|TIME|TIMESTAMP) string
//	extract       → EXTRACT "(" field FROM expr ")"

// typedLiteralTypes are the type names allowed in front of a string literal.
var typedLiteralTypes = map[string]bool{
	"date":        true,
	"time":        true,
	"timestamp":   true,
	"timestamptz": true,
}

// intervalUnits are the units accepted after INTERVAL 'n'.
var intervalUnits = map[string]bool{
	"year": true, "years": true,
	"month": true, "months": true,
	"week": true, "weeks": true,
	"day": true, "days": true,
	"hour": true, "hours": true,
	"minute": true, "minutes": true,
	"second": true, "seconds": true,
}

// parsePrimary parses primary expressions.
func (p *Parser) parsePrimary() core.Expr {
	start := p.token.Pos

	switch p.token.Type {
	case token.NUMBER:
		lit := &core.Literal{NodeInfo: at(start), Type: core.LiteralNumber, Value: p.token.Literal}
		p.nextToken()
		return lit

	case token.STRING:
		lit := &core.Literal{NodeInfo: at(start), Type: core.LiteralString, Value: p.token.Literal}
		p.nextToken()
		return lit

	case token.TRUE, token.FALSE:
		lit := &core.Literal{NodeInfo: at(start), Type: core.LiteralBool, Value: strings.ToUpper(p.token.Literal)}
		p.nextToken()
		return lit

	case token.NULL:
		p.nextToken()
		return &core.Literal{NodeInfo: at(start), Type: core.LiteralNull, Value: "NULL"}

	case token.INTERVAL:
		return p.parseInterval()

	case token.CASE:
		return p.parseCaseExpr()

	case token.CAST:
		return p.parseCastExpr()

	case token.EXISTS:
		p.nextToken()
		return p.parseExists(start, false)

	case token.NOT:
		if p.checkPeek(token.EXISTS) {
			p.nextToken()
			p.nextToken()
			return p.parseExists(start, true)
		}

	case token.LPAREN:
		return p.parseParenOrSubquery()

	case token.LEFT, token.RIGHT:
		// left(s, n) and right(s, n) are functions outside a join
		if p.checkPeek(token.LPAREN) {
			name := core.Ident{Name: p.token.Literal}
			p.nextToken()
			return p.parseFuncCall(name, start)
		}

	case token.LBRACKET:
		p.unsupported("array literals")
		return nil
	}

	if isIdentLike(p.token) {
		return p.parseIdentExpr()
	}

	if p.check(token.EOF) {
		p.addError("unexpected end of input, expected expression")
	} else {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "expression"))
	}
	return nil
}

// parseIdentExpr parses expressions that start with an identifier: typed
// literals, EXTRACT, function calls and column references.
func (p *Parser) parseIdentExpr() core.Expr {
	start := p.token.Pos

	if p.check(token.IDENT) && !p.token.Quoted {
		switch {
		case typedLiteralTypes[p.token.Literal] && p.checkPeek(token.STRING):
			typeName := strings.ToUpper(p.token.Literal)
			p.nextToken()
			lit := &core.TypedLiteral{NodeInfo: at(start), TypeName: typeName, Value: p.token.Literal}
			p.nextToken()
			return lit
		case p.token.Literal == "extract" && p.checkPeek(token.LPAREN):
			return p.parseExtract()
		}
	}

	chain := []core.Ident{p.ident()}
	for p.check(token.DOT) {
		p.nextToken()
		if p.check(token.STAR) {
			p.unsupported("qualified * outside the select list")
			return nil
		}
		chain = append(chain, p.parseIdent("identifier"))
	}

	if p.check(token.LPAREN) {
		if len(chain) > 1 {
			p.unsupported("qualified function names")
			return nil
		}
		return p.parseFuncCall(chain[0], start)
	}

	return p.columnRefFromChain(chain, start)
}

// columnRefFromChain builds a column reference from a dotted identifier chain.
func (p *Parser) columnRefFromChain(chain []core.Ident, start token.Position) core.Expr {
	if len(chain) > maxNameParts {
		p.addError(fmt.Sprintf(ErrTooManyNameParts, core.JoinIdents(chain), maxNameParts))
		return nil
	}
	return &core.ColumnRef{
		NodeInfo:  at(start),
		Qualifier: chain[:len(chain)-1],
		Column:    chain[len(chain)-1],
	}
}

// parseFuncCall parses the argument list and trailing clauses of a call.
func (p *Parser) parseFuncCall(name core.Ident, start token.Position) core.Expr {
	p.expect(token.LPAREN)
	fn := &core.FuncCall{NodeInfo: at(start), Name: name}

	switch {
	case p.match(token.STAR):
		fn.Star = true
	case p.check(token.RPAREN):
	default:
		if p.match(token.DISTINCT) {
			fn.Distinct = true
		} else {
			p.match(token.ALL)
		}
		fn.Args = p.parseExpressionList()
	}

	if p.check(token.ORDER) {
		p.unsupported("ordered-set aggregate arguments")
		return nil
	}
	p.expect(token.RPAREN)

	if p.check(token.FILTER) && p.checkPeek(token.LPAREN) {
		p.nextToken()
		p.nextToken()
		p.expect(token.WHERE)
		fn.Filter = p.parseExpression()
		p.expect(token.RPAREN)
	}

	if p.match(token.OVER) {
		fn.Window = p.parseWindowSpec()
	}

	return fn
}

// parseCaseExpr parses CASE [operand] WHEN ... THEN ... [ELSE ...] END.
func (p *Parser) parseCaseExpr() core.Expr {
	start := p.token.Pos
	p.expect(token.CASE)
	expr := &core.CaseExpr{NodeInfo: at(start)}

	if !p.check(token.WHEN) {
		expr.Operand = p.parseExpression()
	}

	for p.match(token.WHEN) {
		when := core.WhenClause{Condition: p.parseExpression()}
		p.expect(token.THEN)
		when.Result = p.parseExpression()
		expr.Whens = append(expr.Whens, when)
		if p.failed() {
			return expr
		}
	}
	if len(expr.Whens) == 0 {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), token.WHEN))
		return expr
	}

	if p.match(token.ELSE) {
		expr.Else = p.parseExpression()
	}

	p.expect(token.END)
	return expr
}

// parseCastExpr parses CAST(expr AS type).
func (p *Parser) parseCastExpr() core.Expr {
	start := p.token.Pos
	p.expect(token.CAST)
	p.expect(token.LPAREN)
	expr := p.parseExpression()
	p.expect(token.AS)
	typeName := p.parseTypeName()
	p.expect(token.RPAREN)
	return &core.CastExpr{NodeInfo: at(start), Expr: expr, TypeName: typeName}
}

// parseTypeName parses a data type name. Multi-word names such as
// DOUBLE PRECISION and TIMESTAMP WITH TIME ZONE are joined with spaces.
// The result is upper case.
func (p *Parser) parseTypeName() string {
	if !isIdentLike(p.token) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "type name"))
		return ""
	}

	words := []string{p.token.Literal}
	p.nextToken()
	for p.check(token.IDENT) && !p.token.Quoted && isTypeWord(p.token.Literal) {
		words = append(words, p.token.Literal)
		p.nextToken()
	}

	name := strings.ToUpper(strings.Join(words, " "))

	if p.match(token.LPAREN) {
		var params []string
		for !p.failed() {
			if !p.check(token.NUMBER) {
				p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "type parameter"))
				return name
			}
			params = append(params, p.token.Literal)
			p.nextToken()
			if !p.match(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN)
		name += "(" + strings.Join(params, ",") + ")"
	}

	if p.check(token.WITH) && p.peek.Type == token.IDENT && p.peek.Literal == "time" {
		p.nextToken()
		p.nextToken()
		if p.check(token.IDENT) && p.token.Literal == "zone" {
			p.nextToken()
			name += " WITH TIME ZONE"
		} else {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "ZONE"))
		}
	}

	if p.check(token.LBRACKET) {
		p.unsupported("array types")
	}

	return name
}

// isTypeWord reports words that continue a multi-word type name.
func isTypeWord(w string) bool {
	switch w {
	case "precision", "varying", "unsigned":
		return true
	}
	return false
}

// parseInterval parses INTERVAL 'value' [unit].
func (p *Parser) parseInterval() core.Expr {
	start := p.token.Pos
	p.expect(token.INTERVAL)

	if !p.check(token.STRING) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "interval string"))
		return nil
	}
	expr := &core.IntervalExpr{NodeInfo: at(start), Value: p.token.Literal}
	p.nextToken()

	if p.check(token.IDENT) && !p.token.Quoted && intervalUnits[p.token.Literal] {
		expr.Unit = strings.ToUpper(strings.TrimSuffix(p.token.Literal, "s"))
		p.nextToken()
	}
	return expr
}

// parseExtract parses EXTRACT(field FROM expr).
func (p *Parser) parseExtract() core.Expr {
	start := p.token.Pos
	p.nextToken() // extract
	p.expect(token.LPAREN)

	var field string
	switch {
	case isIdentLike(p.token):
		field = strings.ToUpper(p.token.Literal)
		p.nextToken()
	case p.check(token.STRING):
		field = strings.ToUpper(p.token.Literal)
		p.nextToken()
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "date part"))
		return nil
	}

	p.expect(token.FROM)
	expr := p.parseExpression()
	p.expect(token.RPAREN)
	return &core.ExtractExpr{NodeInfo: at(start), Field: field, Expr: expr}
}

// parseExists parses the subquery after [NOT] EXISTS.
func (p *Parser) parseExists(start token.Position, not bool) core.Expr {
	p.expect(token.LPAREN)
	stmt := p.parseStatement()
	p.expect(token.RPAREN)
	return &core.ExistsExpr{NodeInfo: at(start), Not: not, Select: stmt}
}

// parseParenOrSubquery parses (expr) or (SELECT ...).
func (p *Parser) parseParenOrSubquery() core.Expr {
	start := p.token.Pos
	p.expect(token.LPAREN)

	if p.check(token.SELECT) || p.check(token.WITH) {
		stmt := p.parseStatement()
		p.expect(token.RPAREN)
		return &core.SubqueryExpr{NodeInfo: at(start), Select: stmt}
	}

	expr := p.parseExpression()
	if p.check(token.COMMA) {
		p.unsupported("row constructors")
		return nil
	}
	p.expect(token.RPAREN)
	return &core.ParenExpr{NodeInfo: at(start), Expr: expr}
}
