// Package dialect decides how regenerated SQL spells identifiers and
// literals, and classifies the builtin functions a dialect understands.
//
// A Dialect is immutable once built and safe for concurrent use. Concrete
// dialects are registered from their init functions; the wren dialect in
// this package is the default used by the transformer.
package dialect

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// FunctionType classifies a function by how it consumes rows.
type FunctionType int

const (
	// ScalarFunction maps one row to one value.
	ScalarFunction FunctionType = iota
	// AggregateFunction folds many rows into one value (SUM, COUNT, etc.).
	AggregateFunction
	// WindowFunction requires an OVER clause (ROW_NUMBER, LAG, etc.).
	WindowFunction
)

// String returns the string representation of FunctionType.
func (t FunctionType) String() string {
	switch t {
	case ScalarFunction:
		return "scalar"
	case AggregateFunction:
		return "aggregate"
	case WindowFunction:
		return "window"
	default:
		return "unknown"
	}
}

// ParseFunctionType parses "scalar", "aggregate" or "window", ignoring case.
func ParseFunctionType(s string) (FunctionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scalar":
		return ScalarFunction, true
	case "aggregate":
		return AggregateFunction, true
	case "window":
		return WindowFunction, true
	}
	return ScalarFunction, false
}

// MarshalText implements encoding.TextMarshaler.
func (t FunctionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *FunctionType) UnmarshalText(text []byte) error {
	parsed, ok := ParseFunctionType(string(text))
	if !ok {
		return fmt.Errorf("unknown function type %q", string(text))
	}
	*t = parsed
	return nil
}

// IntervalStyle controls how interval literals are printed.
type IntervalStyle int

const (
	// IntervalSQLStandard prints INTERVAL '1' DAY.
	IntervalSQLStandard IntervalStyle = iota
	// IntervalPostgres prints INTERVAL '1 DAY'.
	IntervalPostgres
)

// plainIdent matches identifiers that never need quoting on syntax grounds.
var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name string

	// DefaultSchema is the schema physical tables live in when unqualified.
	DefaultSchema string

	quote    string
	escape   string
	interval IntervalStyle
	keywords map[string]struct{} // upper case

	// Function classifications, lower case.
	functions map[string]FunctionType
	aliases   map[string]string
}

// NeedsQuote reports whether id must be quoted to survive a round trip:
// its upper-cased form is a keyword, it is not a plain identifier, or it
// is not entirely lower case.
func (d *Dialect) NeedsQuote(id string) bool {
	if d.IsKeyword(id) {
		return true
	}
	if !plainIdent.MatchString(id) {
		return true
	}
	return strings.ToLower(id) != id
}

// IsKeyword reports whether the upper-cased id is reserved.
func (d *Dialect) IsKeyword(id string) bool {
	_, ok := d.keywords[strings.ToUpper(id)]
	return ok
}

// QuoteIdentifier always quotes id, doubling embedded quote characters.
func (d *Dialect) QuoteIdentifier(id string) string {
	return d.quote + strings.ReplaceAll(id, d.quote, d.escape) + d.quote
}

// Ident returns id, quoted only when NeedsQuote says so.
func (d *Dialect) Ident(id string) string {
	if d.NeedsQuote(id) {
		return d.QuoteIdentifier(id)
	}
	return id
}

// FunctionName spells a function name. Keywords stay bare since a call
// site is never mistaken for a clause; only casing and syntax force quotes.
func (d *Dialect) FunctionName(name string) string {
	if plainIdent.MatchString(name) && strings.ToLower(name) == name {
		return name
	}
	return d.QuoteIdentifier(name)
}

// IntervalStyle returns how interval literals are printed.
func (d *Dialect) IntervalStyle() IntervalStyle {
	return d.interval
}

// Keywords returns all reserved keywords, sorted.
func (d *Dialect) Keywords() []string {
	kws := make([]string, 0, len(d.keywords))
	for kw := range d.keywords {
		kws = append(kws, kw)
	}
	sort.Strings(kws)
	return kws
}

// NormalizeName resolves aliases and lower-cases a function name.
func (d *Dialect) NormalizeName(name string) string {
	n := strings.ToLower(name)
	if target, ok := d.aliases[n]; ok {
		return target
	}
	return n
}

// Function returns the classification of a builtin function.
func (d *Dialect) Function(name string) (FunctionType, bool) {
	t, ok := d.functions[d.NormalizeName(name)]
	return t, ok
}

// IsAggregate returns true if the function is an aggregate function.
func (d *Dialect) IsAggregate(name string) bool {
	t, ok := d.Function(name)
	return ok && t == AggregateFunction
}

// IsWindow returns true if the function is a window-only function.
func (d *Dialect) IsWindow(name string) bool {
	t, ok := d.Function(name)
	return ok && t == WindowFunction
}

// AllFunctions returns all known function names, sorted.
func (d *Dialect) AllFunctions() []string {
	funcs := make([]string, 0, len(d.functions)+len(d.aliases))
	for f := range d.functions {
		funcs = append(funcs, f)
	}
	for f := range d.aliases {
		funcs = append(funcs, f)
	}
	sort.Strings(funcs)
	return funcs
}

// ---------- Builder ----------

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// NewDialect creates a new dialect builder with the given name. The
// builder starts with double-quote identifiers and SQL standard intervals.
func NewDialect(name string) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name:      name,
			quote:     `"`,
			escape:    `""`,
			interval:  IntervalSQLStandard,
			keywords:  make(map[string]struct{}),
			functions: make(map[string]FunctionType),
			aliases:   make(map[string]string),
		},
	}
}

// Extend creates a builder seeded with a copy of base.
func Extend(name string, base *Dialect) *Builder {
	b := NewDialect(name)
	b.dialect.DefaultSchema = base.DefaultSchema
	b.dialect.quote = base.quote
	b.dialect.escape = base.escape
	b.dialect.interval = base.interval
	for kw := range base.keywords {
		b.dialect.keywords[kw] = struct{}{}
	}
	for f, t := range base.functions {
		b.dialect.functions[f] = t
	}
	for a, f := range base.aliases {
		b.dialect.aliases[a] = f
	}
	return b
}

// Identifiers configures the identifier quote character and its escape.
func (b *Builder) Identifiers(quote, escape string) *Builder {
	b.dialect.quote = quote
	b.dialect.escape = escape
	return b
}

// Keywords registers reserved keywords.
func (b *Builder) Keywords(kws ...string) *Builder {
	for _, kw := range kws {
		b.dialect.keywords[strings.ToUpper(kw)] = struct{}{}
	}
	return b
}

// IntervalStyle sets how interval literals are printed.
func (b *Builder) IntervalStyle(style IntervalStyle) *Builder {
	b.dialect.interval = style
	return b
}

// DefaultSchema sets the default schema name.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.dialect.DefaultSchema = schema
	return b
}

// Scalars adds scalar functions to the dialect.
func (b *Builder) Scalars(funcs ...string) *Builder {
	return b.functions(ScalarFunction, funcs)
}

// Aggregates adds aggregate functions to the dialect.
func (b *Builder) Aggregates(funcs ...string) *Builder {
	return b.functions(AggregateFunction, funcs)
}

// Windows adds window-only functions to the dialect.
func (b *Builder) Windows(funcs ...string) *Builder {
	return b.functions(WindowFunction, funcs)
}

func (b *Builder) functions(t FunctionType, funcs []string) *Builder {
	for _, f := range funcs {
		b.dialect.functions[strings.ToLower(f)] = t
	}
	return b
}

// Aliases maps alternative function names to canonical ones.
func (b *Builder) Aliases(aliases map[string]string) *Builder {
	for alias, target := range aliases {
		b.dialect.aliases[strings.ToLower(alias)] = strings.ToLower(target)
	}
	return b
}

// Build returns the dialect. The builder must not be used afterwards.
func (b *Builder) Build() *Dialect {
	d := b.dialect
	b.dialect = nil
	return d
}
