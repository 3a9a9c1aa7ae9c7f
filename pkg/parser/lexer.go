package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leapstack-labs/semql/pkg/token"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Lexer tokenizes SQL input. It works on runes so identifiers may contain
// any Unicode letter.
type Lexer struct {
	input   string
	pos     int  // byte offset of ch
	readPos int  // byte offset after ch
	ch      rune // current char under examination, 0 at EOF
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	// fold lower-cases unquoted identifiers. A Caser is not safe for
	// concurrent use, so every lexer owns one.
	fold   cases.Caser
	errors []*ParseError
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
		fold:  cases.Lower(language.Und),
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = len(l.input)
		l.readPos = len(l.input) + 1
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) currentPos() token.Position {
	return token.Position{Line: l.line, Column: l.col, Offset: l.pos}
}

func (l *Lexer) addError(pos token.Position, msg string) {
	l.errors = append(l.errors, &ParseError{Pos: pos, Message: msg})
}

// NextToken returns the next token.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	tok := token.Token{Pos: pos}

	single := func(t token.TokenType) token.Token {
		tok.Type = t
		tok.Literal = string(l.ch)
		l.readChar()
		return tok
	}
	double := func(t token.TokenType) token.Token {
		tok.Type = t
		tok.Literal = l.input[l.pos : l.pos+2]
		l.readChar()
		l.readChar()
		return tok
	}

	switch l.ch {
	case 0:
		tok.Type = token.EOF
		return tok
	case '+':
		return single(token.PLUS)
	case '-':
		return single(token.MINUS)
	case '*':
		return single(token.STAR)
	case '/':
		return single(token.SLASH)
	case '%':
		return single(token.PERCENT)
	case '=':
		if l.peekChar() == '=' {
			return double(token.EQ)
		}
		return single(token.EQ)
	case '<':
		switch l.peekChar() {
		case '=':
			return double(token.LE)
		case '>':
			return double(token.NE)
		}
		return single(token.LT)
	case '>':
		if l.peekChar() == '=' {
			return double(token.GE)
		}
		return single(token.GT)
	case '!':
		if l.peekChar() == '=' {
			return double(token.NE)
		}
	case '|':
		if l.peekChar() == '|' {
			return double(token.DPIPE)
		}
	case ':':
		if l.peekChar() == ':' {
			return double(token.DCOLON)
		}
	case '.':
		if isDigit(l.peekChar()) {
			tok.Type = token.NUMBER
			tok.Literal = l.readNumber()
			return tok
		}
		return single(token.DOT)
	case ',':
		return single(token.COMMA)
	case ';':
		return single(token.SEMICOLON)
	case '(':
		return single(token.LPAREN)
	case ')':
		return single(token.RPAREN)
	case '[':
		return single(token.LBRACKET)
	case ']':
		return single(token.RBRACKET)
	case '\'':
		tok.Type = token.STRING
		tok.Literal = l.readQuoted('\'', ErrUnterminatedString)
		return tok
	case '"':
		tok.Type = token.IDENT
		tok.Quoted = true
		tok.Literal = l.readQuoted('"', ErrUnterminatedIdent)
		return tok
	default:
		switch {
		case isIdentStart(l.ch):
			word := l.fold.String(l.readIdentifier())
			tok.Literal = word
			tok.Type = token.LookupIdent(word)
			return tok
		case isDigit(l.ch):
			tok.Type = token.NUMBER
			tok.Literal = l.readNumber()
			return tok
		}
	}

	l.addError(pos, fmt.Sprintf(ErrIllegalCharacter, l.ch))
	return single(token.ILLEGAL)
}

// skipWhitespaceAndComments skips whitespace, -- line comments and
// /* block */ comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for unicode.IsSpace(l.ch) {
			l.readChar()
		}

		switch {
		case l.ch == '-' && l.peekChar() == '-':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.skipBlockComment()
		default:
			return
		}
	}
}

func (l *Lexer) skipBlockComment() {
	start := l.currentPos()
	l.readChar() // skip '/'
	l.readChar() // skip '*'
	for l.ch != 0 {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			return
		}
		l.readChar()
	}
	l.addError(start, ErrUnterminatedComment)
}

// readQuoted reads a string or identifier delimited by quote. A doubled
// quote inside the literal is an escaped quote: 'it''s' -> it's.
func (l *Lexer) readQuoted(quote rune, unterminated string) string {
	start := l.currentPos()
	l.readChar() // skip opening quote

	var result strings.Builder
	for {
		switch {
		case l.ch == 0:
			l.addError(start, unterminated)
			return result.String()
		case l.ch == quote && l.peekChar() == quote:
			result.WriteRune(quote)
			l.readChar()
			l.readChar()
		case l.ch == quote:
			l.readChar()
			return result.String()
		default:
			result.WriteRune(l.ch)
			l.readChar()
		}
	}
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isIdentStart(l.ch) || unicode.IsDigit(l.ch) || l.ch == '$' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && (isDigit(l.peekChar()) || !isIdentStart(l.peekChar())) {
		l.readChar() // skip '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) || l.peekChar() == '+' || l.peekChar() == '-') {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return l.input[start:l.pos]
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens from the input.
func Tokenize(input string) []token.Token {
	l := NewLexer(input)
	var tokens []token.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	return tokens
}
