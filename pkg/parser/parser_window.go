package parser

import (
	"fmt"

	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/token"
)

// Window specification parsing.
//
// Grammar:
//
//	window_spec → "(" [PARTITION BY expr_list] [ORDER BY order_list] [frame] ")"
//	frame       → (ROWS|RANGE|GROUPS) (bound | BETWEEN bound AND bound)
//	bound       → UNBOUNDED PRECEDING | UNBOUNDED FOLLOWING | CURRENT ROW
//	            | expr PRECEDING | expr FOLLOWING

// parseWindowSpec parses the parenthesized window after OVER.
func (p *Parser) parseWindowSpec() *core.WindowSpec {
	if isIdentLike(p.token) {
		p.unsupported("named windows")
		return nil
	}
	if !p.expect(token.LPAREN) {
		return nil
	}

	spec := &core.WindowSpec{}

	if p.match(token.PARTITION) {
		p.expect(token.BY)
		spec.PartitionBy = p.parseExpressionList()
	}

	if p.check(token.ORDER) {
		p.nextToken()
		p.expect(token.BY)
		spec.OrderBy = p.parseOrderByList()
	}

	switch p.token.Type {
	case token.ROWS, token.RANGE, token.GROUPS:
		spec.Frame = p.parseFrameSpec()
	}

	p.expect(token.RPAREN)
	return spec
}

// parseFrameSpec parses a window frame.
func (p *Parser) parseFrameSpec() *core.FrameSpec {
	frame := &core.FrameSpec{}
	switch p.token.Type {
	case token.ROWS:
		frame.Type = core.FrameRows
	case token.RANGE:
		frame.Type = core.FrameRange
	default:
		frame.Type = core.FrameGroups
	}
	p.nextToken()

	if p.match(token.BETWEEN) {
		frame.Start = p.parseFrameBound()
		p.expect(token.AND)
		frame.End = p.parseFrameBound()
	} else {
		frame.Start = p.parseFrameBound()
	}
	return frame
}

// parseFrameBound parses a single frame bound.
func (p *Parser) parseFrameBound() *core.FrameBound {
	switch {
	case p.match(token.UNBOUNDED):
		if p.match(token.PRECEDING) {
			return &core.FrameBound{Type: core.FrameUnboundedPreceding}
		}
		if p.match(token.FOLLOWING) {
			return &core.FrameBound{Type: core.FrameUnboundedFollowing}
		}
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "PRECEDING or FOLLOWING"))
		return nil

	case p.match(token.CURRENT):
		p.expect(token.ROW)
		return &core.FrameBound{Type: core.FrameCurrentRow}
	}

	offset := p.parseExpressionWithPrecedence(core.PrecedenceAddition)
	switch {
	case p.match(token.PRECEDING):
		return &core.FrameBound{Type: core.FrameExprPreceding, Offset: offset}
	case p.match(token.FOLLOWING):
		return &core.FrameBound{Type: core.FrameExprFollowing, Offset: offset}
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "PRECEDING or FOLLOWING"))
	return nil
}
