package parser

import (
	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/token"
)

// Statement parsing: WITH clause, CTEs, SELECT body, SELECT list, ORDER BY.
//
// Grammar:
//
//	statement     → [WITH [RECURSIVE] cte_list] select_body
//	cte_list      → cte ("," cte)*
//	cte           → identifier AS "(" statement ")"
//	select_body   → select_core [(UNION|INTERSECT|EXCEPT) [ALL|DISTINCT] select_body]
//	select_list   → select_item ("," select_item)*
//	select_item   → "*" | qualifier "." "*" | expr [[AS] identifier]
//	order_list    → order_item ("," order_item)*
//	order_item    → expr [ASC|DESC] [NULLS FIRST|LAST]

// parseStatement parses a complete SQL statement.
func (p *Parser) parseStatement() *core.SelectStmt {
	stmt := &core.SelectStmt{}
	stmt.Span.Start = p.token.Pos

	if p.check(token.WITH) {
		stmt.With = p.parseWithClause()
	}
	if p.failed() {
		return stmt
	}

	stmt.Body = p.parseSelectBody()
	stmt.Span.End = p.token.Pos
	return stmt
}

// parseWithClause parses a WITH clause with CTEs.
func (p *Parser) parseWithClause() *core.WithClause {
	p.expect(token.WITH)
	with := &core.WithClause{}

	if p.match(token.RECURSIVE) {
		with.Recursive = true
	}

	for !p.failed() {
		cte := &core.CTE{Name: p.parseIdent("CTE name")}
		if p.check(token.LPAREN) {
			p.unsupported("CTE column lists")
			return with
		}
		p.expect(token.AS)
		p.expect(token.LPAREN)
		cte.Select = p.parseStatement()
		p.expect(token.RPAREN)
		with.CTEs = append(with.CTEs, cte)

		if !p.match(token.COMMA) {
			break
		}
	}

	return with
}

// parseSelectBody parses a select core followed by optional set operations.
func (p *Parser) parseSelectBody() *core.SelectBody {
	body := &core.SelectBody{Left: p.parseSelectCore()}
	if p.failed() {
		return body
	}

	switch p.token.Type {
	case token.UNION:
		body.Op = core.SetOpUnion
	case token.INTERSECT:
		body.Op = core.SetOpIntersect
	case token.EXCEPT:
		body.Op = core.SetOpExcept
	default:
		return body
	}
	p.nextToken()

	if p.match(token.ALL) {
		body.All = true
	} else {
		p.match(token.DISTINCT)
	}

	body.Right = p.parseSelectBody()
	return body
}

// parseSelectCore parses SELECT ... up to the next set operation.
func (p *Parser) parseSelectCore() *core.SelectCore {
	sc := &core.SelectCore{}

	if p.check(token.LPAREN) {
		p.unsupported("parenthesized set operands")
		return sc
	}
	if !p.expect(token.SELECT) {
		return sc
	}

	if p.match(token.DISTINCT) {
		if p.check(token.ON) {
			p.unsupported("DISTINCT ON")
			return sc
		}
		sc.Distinct = true
	} else {
		p.match(token.ALL)
	}

	sc.Columns = p.parseSelectList()

	if p.match(token.FROM) {
		sc.From = p.parseFromClause()
	}

	if p.match(token.WHERE) {
		sc.Where = p.parseExpression()
	}

	if p.check(token.GROUP) {
		p.nextToken()
		p.expect(token.BY)
		sc.GroupBy = p.parseExpressionList()
	}

	if p.match(token.HAVING) {
		sc.Having = p.parseExpression()
	}

	if p.check(token.WINDOW) {
		p.unsupported("named windows")
		return sc
	}

	if p.check(token.ORDER) {
		p.nextToken()
		p.expect(token.BY)
		sc.OrderBy = p.parseOrderByList()
	}

	if p.match(token.LIMIT) {
		sc.Limit = p.parseExpression()
	}

	if p.match(token.OFFSET) {
		sc.Offset = p.parseExpression()
		if p.check(token.ROW) || p.check(token.ROWS) {
			p.nextToken()
		}
	}

	return sc
}

// parseSelectList parses the comma separated select list.
func (p *Parser) parseSelectList() []core.SelectItem {
	var items []core.SelectItem
	for !p.failed() {
		items = append(items, p.parseSelectItem())
		if !p.match(token.COMMA) {
			break
		}
	}
	return items
}

// parseSelectItem parses a single select list entry.
func (p *Parser) parseSelectItem() core.SelectItem {
	if p.match(token.STAR) {
		p.rejectStarModifiers()
		return core.SelectItem{Star: true}
	}

	// qualifier.* is only known once the dotted chain has been read
	if isIdentLike(p.token) && p.checkPeek(token.DOT) {
		start := p.token.Pos
		chain := []core.Ident{p.ident()}
		for p.match(token.DOT) {
			if p.match(token.STAR) {
				p.rejectStarModifiers()
				return core.SelectItem{TableStar: chain}
			}
			chain = append(chain, p.parseIdent("identifier"))
		}
		left := p.columnRefFromChain(chain, start)
		item := core.SelectItem{Expr: p.parseInfix(left, core.PrecedenceNone+1)}
		item.Alias = p.parseAlias()
		return item
	}

	item := core.SelectItem{Expr: p.parseExpression()}
	item.Alias = p.parseAlias()
	return item
}

func (p *Parser) rejectStarModifiers() {
	if p.check(token.EXCEPT) && p.checkPeek(token.LPAREN) {
		p.unsupported("SELECT * EXCEPT")
	}
}

// parseOrderByList parses ORDER BY items.
func (p *Parser) parseOrderByList() []core.OrderByItem {
	var items []core.OrderByItem
	for !p.failed() {
		item := core.OrderByItem{Expr: p.parseExpression()}

		if p.match(token.DESC) {
			item.Desc = true
			item.Explicit = true
		} else if p.match(token.ASC) {
			item.Explicit = true
		}

		if p.match(token.NULLS) {
			first := p.check(token.FIRST)
			if !first && !p.check(token.LAST) {
				p.addError("expected FIRST or LAST after NULLS")
				return items
			}
			p.nextToken()
			item.NullsFirst = &first
		}

		items = append(items, item)
		if !p.match(token.COMMA) {
			break
		}
	}
	return items
}

// parseExpressionList parses a comma-separated list of expressions.
func (p *Parser) parseExpressionList() []core.Expr {
	var exprs []core.Expr
	for !p.failed() {
		exprs = append(exprs, p.parseExpression())
		if !p.match(token.COMMA) {
			break
		}
	}
	return exprs
}
