package parser

import (
	"fmt"

	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/token"
)

// FROM clause parsing: table references and joins.
//
// Grammar:
//
//	from_clause  → table_ref (join)*
//	table_ref    → table_name [[AS] alias] | "(" statement ")" [AS] alias
//	table_name   → identifier ["." identifier ["." identifier]]
//	join         → "," table_ref
//	             | [NATURAL] [INNER|LEFT [OUTER]|RIGHT [OUTER]|FULL [OUTER]|CROSS] JOIN table_ref
//	               [ON expr | USING "(" identifier_list ")"]

// maxTableParts bounds catalog.schema.table references.
const maxTableParts = 3

// parseFromClause parses the FROM clause.
func (p *Parser) parseFromClause() *core.FromClause {
	from := &core.FromClause{Source: p.parseTableRef()}
	for !p.failed() {
		join := p.parseJoin()
		if join == nil {
			break
		}
		from.Joins = append(from.Joins, join)
	}
	return from
}

// parseTableRef parses a named table or a derived table.
func (p *Parser) parseTableRef() core.TableRef {
	start := p.token.Pos

	switch {
	case p.check(token.LATERAL):
		p.unsupported("LATERAL")
		return nil

	case p.check(token.LPAREN):
		p.nextToken()
		if !p.check(token.SELECT) && !p.check(token.WITH) {
			p.unsupported("parenthesized joins")
			return nil
		}
		derived := &core.DerivedTable{NodeInfo: at(start), Select: p.parseStatement()}
		p.expect(token.RPAREN)
		derived.Alias = p.parseAlias()
		if !p.failed() && p.check(token.LPAREN) {
			p.unsupported("derived column lists")
		}
		return derived

	case isIdentLike(p.token):
		table := &core.TableName{NodeInfo: at(start), Parts: []core.Ident{p.ident()}}
		for p.match(token.DOT) {
			table.Parts = append(table.Parts, p.parseIdent("table name"))
		}
		if len(table.Parts) > maxTableParts {
			p.addError(fmt.Sprintf(ErrTooManyNameParts, core.JoinIdents(table.Parts), maxTableParts))
			return table
		}
		if p.check(token.LPAREN) {
			p.unsupported("table functions")
			return table
		}
		table.Alias = p.parseAlias()
		if !p.failed() && p.check(token.LPAREN) {
			p.unsupported("table alias column lists")
		}
		return table
	}

	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "table reference"))
	return nil
}

// parseJoin parses one join, or returns nil when the FROM clause ends.
func (p *Parser) parseJoin() *core.Join {
	if p.match(token.COMMA) {
		return &core.Join{Type: core.JoinComma, Right: p.parseTableRef()}
	}

	join := &core.Join{}
	if p.match(token.NATURAL) {
		join.Natural = true
	}

	switch p.token.Type {
	case token.JOIN:
		join.Type = core.JoinInner
	case token.INNER:
		join.Type = core.JoinInner
		p.nextToken()
	case token.LEFT:
		join.Type = core.JoinLeft
		p.nextToken()
		p.match(token.OUTER)
	case token.RIGHT:
		join.Type = core.JoinRight
		p.nextToken()
		p.match(token.OUTER)
	case token.FULL:
		join.Type = core.JoinFull
		p.nextToken()
		p.match(token.OUTER)
	case token.CROSS:
		join.Type = core.JoinCross
		p.nextToken()
	default:
		if join.Natural {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), token.JOIN))
		}
		return nil
	}

	if !p.expect(token.JOIN) {
		return nil
	}
	join.Right = p.parseTableRef()

	if join.Type == core.JoinCross || join.Natural {
		return join
	}

	switch {
	case p.match(token.ON):
		join.Condition = p.parseExpression()
	case p.match(token.USING):
		p.expect(token.LPAREN)
		for !p.failed() {
			join.Using = append(join.Using, p.parseIdent("column name"))
			if !p.match(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN)
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "ON or USING"))
	}
	return join
}
