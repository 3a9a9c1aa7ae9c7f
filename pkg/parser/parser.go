// Package parser turns SQL text into the pkg/core syntax tree.
//
// # Usage
//
//	stmt, err := parser.Parse("SELECT a, b FROM t")
//	if err != nil {
//	    // handle error
//	}
//
// Unquoted identifiers are folded to lower case while lexing; quoted
// identifiers keep their exact spelling and are marked Quoted. Lookups
// downstream therefore compare names exactly.
//
// # Grammar Overview
//
// The parser implements a recursive descent parser for the query subset of SQL:
//
//	statement     → [WITH cte_list] select_body [";"]
//	select_body   → select_core [(UNION|INTERSECT|EXCEPT) [ALL|DISTINCT] select_body]
//	select_core   → SELECT [DISTINCT|ALL] select_list [FROM from_clause]
//	                [WHERE expr] [GROUP BY expr_list] [HAVING expr]
//	                [ORDER BY order_list] [LIMIT expr] [OFFSET expr]
//
// See each file for detailed grammar rules for that section.
package parser

import (
	"fmt"

	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/token"
)

// maxNameParts bounds catalog.schema.table.column chains.
const maxNameParts = 4

// Parser parses SQL into an AST.
type Parser struct {
	lexer  *Lexer
	token  token.Token // current token
	peek   token.Token // lookahead token
	peek2  token.Token // second lookahead token
	errors Errors
}

// NewParser creates a new parser for the given SQL input.
func NewParser(sql string) *Parser {
	p := &Parser{lexer: NewLexer(sql)}
	// Read three tokens to initialize current, peek, and peek2
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a single SELECT statement.
func Parse(sql string) (*core.SelectStmt, error) {
	p := NewParser(sql)
	stmt := p.parseStatement()
	p.match(token.SEMICOLON)
	if !p.failed() && !p.check(token.EOF) {
		p.addError(fmt.Sprintf(ErrUnexpectedInput, describe(p.token)))
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	return stmt, nil
}

// ParseExpr parses a standalone expression, such as a calculated column
// definition or a join condition.
func ParseExpr(sql string) (core.Expr, error) {
	p := NewParser(sql)
	expr := p.parseExpression()
	if !p.failed() && !p.check(token.EOF) {
		p.addError(fmt.Sprintf(ErrUnexpectedInput, describe(p.token)))
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	return expr, nil
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peek.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), t))
	return false
}

// addError records a parse error. Only the first error of a cascade is
// kept; once the parser has failed every rule unwinds.
func (p *Parser) addError(msg string) {
	if p.failed() {
		return
	}
	p.errors = append(p.errors, &ParseError{Pos: p.token.Pos, Message: msg})
}

func (p *Parser) unsupported(construct string) {
	p.addError(fmt.Sprintf(ErrUnsupportedConstruct, construct))
}

func (p *Parser) failed() bool {
	return len(p.errors) > 0 || len(p.lexer.errors) > 0
}

func (p *Parser) err() error {
	var all Errors
	all = append(all, p.lexer.errors...)
	all = append(all, p.errors...)
	if len(all) == 0 {
		return nil
	}
	return all
}

func describe(tok token.Token) string {
	switch tok.Type {
	case token.EOF:
		return "end of input"
	case token.IDENT:
		if tok.Quoted {
			return fmt.Sprintf("identifier %q", tok.Literal)
		}
		return "identifier " + tok.Literal
	case token.NUMBER, token.STRING:
		return fmt.Sprintf("%s %s", tok.Type, tok.Literal)
	default:
		return tok.Type.String()
	}
}

// ---------- Keyword Helpers ----------

// softKeywords are keyword tokens that only have meaning inside a specific
// construct and may otherwise name a column or function.
var softKeywords = map[token.TokenType]bool{
	token.FIRST:     true,
	token.LAST:      true,
	token.FILTER:    true,
	token.CURRENT:   true,
	token.FOLLOWING: true,
	token.PRECEDING: true,
	token.UNBOUNDED: true,
	token.ROW:       true,
	token.ROWS:      true,
	token.RANGE:     true,
	token.GROUPS:    true,
	token.NULLS:     true,
}

// isIdentLike returns true if tok can be read as an identifier.
func isIdentLike(tok token.Token) bool {
	return tok.Type == token.IDENT || softKeywords[tok.Type]
}

// ident converts the current token into an identifier and advances.
func (p *Parser) ident() core.Ident {
	id := core.Ident{Name: p.token.Literal, Quoted: p.token.Quoted}
	p.nextToken()
	return id
}

// parseIdent expects an identifier.
func (p *Parser) parseIdent(what string) core.Ident {
	if !isIdentLike(p.token) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), what))
		return core.Ident{}
	}
	return p.ident()
}

// parseAlias parses [AS] identifier. Without AS only plain identifiers are
// taken, so clause keywords are never swallowed as aliases.
func (p *Parser) parseAlias() core.Ident {
	if p.match(token.AS) {
		return p.parseIdent("alias")
	}
	if p.check(token.IDENT) {
		return p.ident()
	}
	return core.Ident{}
}
