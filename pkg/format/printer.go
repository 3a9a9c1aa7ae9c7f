// Package format prints pkg/core syntax trees back to SQL text.
//
// Every identifier is spelled through a dialect.Dialect, so printing a tree
// and parsing the result again yields the same tree. Two layouts exist:
// compact single-line output, which the transformer emits, and an indented
// layout for people.
package format

import (
	"bytes"
	"strings"

	"github.com/leapstack-labs/semql/pkg/core"
	"github.com/leapstack-labs/semql/pkg/dialect"
	"github.com/leapstack-labs/semql/pkg/token"
)

const indentSize = 2

// Printer handles SQL formatting.
type Printer struct {
	dialect     *dialect.Dialect
	output      *bytes.Buffer
	pretty      bool
	depth       int
	atLineStart bool
}

func newPrinter(d *dialect.Dialect, pretty bool) *Printer {
	if d == nil {
		d = dialect.Default()
	}
	return &Printer{
		dialect:     d,
		output:      &bytes.Buffer{},
		pretty:      pretty,
		atLineStart: true,
	}
}

// String returns the formatted output.
func (p *Printer) String() string {
	return strings.TrimRight(p.output.String(), "\n ")
}

func (p *Printer) write(s string) {
	if p.atLineStart && len(s) > 0 && s[0] != '\n' {
		p.writeIndent()
	}
	p.output.WriteString(s)
	p.atLineStart = false
}

func (p *Printer) writeln() {
	p.output.WriteByte('\n')
	p.atLineStart = true
}

func (p *Printer) writeIndent() {
	for i := 0; i < p.depth*indentSize; i++ {
		p.output.WriteByte(' ')
	}
	p.atLineStart = false
}

func (p *Printer) keyword(s string) {
	p.write(strings.ToUpper(s))
}

func (p *Printer) indent() {
	p.depth++
}

func (p *Printer) dedent() {
	if p.depth > 0 {
		p.depth--
	}
}

func (p *Printer) space() {
	p.output.WriteByte(' ')
}

// sep separates clauses: a space in compact mode, a new line otherwise.
func (p *Printer) sep() {
	if p.pretty {
		p.writeln()
		return
	}
	p.space()
}

// kw prints keywords from their token types, space separated.
func (p *Printer) kw(tokens ...token.TokenType) {
	for i, t := range tokens {
		if i > 0 {
			p.space()
		}
		p.write(t.String())
	}
}

// ident prints an identifier, quoted when the dialect requires it.
func (p *Printer) ident(id core.Ident) {
	p.write(p.dialect.Ident(id.Name))
}

// idents prints a dotted identifier chain.
func (p *Printer) idents(parts []core.Ident) {
	for i, part := range parts {
		if i > 0 {
			p.write(".")
		}
		p.ident(part)
	}
}

// formatList prints a list of items with separators.
// count is the number of items, format is called for each index,
// sep is the separator string, multiline adds newlines after separators.
func (p *Printer) formatList(count int, format func(i int), sep string, multiline bool) {
	for i := 0; i < count; i++ {
		format(i)
		if i < count-1 {
			if multiline && p.pretty {
				p.write(strings.TrimRight(sep, " "))
				p.writeln()
			} else {
				p.write(sep)
			}
		}
	}
}
