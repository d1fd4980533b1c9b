// Package sqlutil builds the small amount of dynamic SQL the destinations
// need: quoted identifiers, placeholders and multi-row inserts.
package sqlutil

import (
	"strconv"
	"strings"
)

// Dialect describes identifier quoting and placeholder style.
type Dialect struct {
	Name  string
	Quote byte
	// Numbered selects $1, $2 placeholders instead of ?
	Numbered bool
	// BareSimple leaves plain identifiers unquoted so the server applies its
	// own case folding.
	BareSimple bool
}

var (
	Postgres  = Dialect{Name: "postgresql", Quote: '"', Numbered: true}
	MySQL     = Dialect{Name: "mysql", Quote: '`'}
	Snowflake = Dialect{Name: "snowflake", Quote: '"', BareSimple: true}
	SQLite    = Dialect{Name: "sqlite", Quote: '"'}
)

// QuoteIdentifier quotes a possibly schema-qualified name. Each dot separated
// part is quoted separately and embedded quote characters are doubled.
func (d Dialect) QuoteIdentifier(name string) string {
	b := NewBuilder(d, len(name)+8)
	b.WriteIdentifier(name)
	return b.String()
}

// Placeholder returns the n-th (1-based) bind placeholder.
func (d Dialect) Placeholder(n int) string {
	if d.Numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Builder accumulates a SQL statement.
type Builder struct {
	sb      strings.Builder
	dialect Dialect
	params  int
}

// NewBuilder creates a builder with room for estimatedLength bytes.
func NewBuilder(d Dialect, estimatedLength int) *Builder {
	b := &Builder{dialect: d}
	b.sb.Grow(estimatedLength)
	return b
}

// WriteQuery writes a SQL fragment verbatim.
func (b *Builder) WriteQuery(query string) *Builder {
	b.sb.WriteString(query)
	return b
}

// WriteSpace adds a space.
func (b *Builder) WriteSpace() *Builder {
	b.sb.WriteByte(' ')
	return b
}

// WriteStringLiteral writes a single-quoted literal.
func (b *Builder) WriteStringLiteral(value string) *Builder {
	b.sb.WriteByte('\'')
	b.sb.WriteString(strings.ReplaceAll(value, "'", "''"))
	b.sb.WriteByte('\'')
	return b
}

// WriteIdentifier writes a quoted, possibly qualified identifier.
func (b *Builder) WriteIdentifier(name string) *Builder {
	for i, part := range strings.Split(name, ".") {
		if i > 0 {
			b.sb.WriteByte('.')
		}
		if b.dialect.BareSimple && isSimple(part) {
			b.sb.WriteString(part)
			continue
		}
		q := string(b.dialect.Quote)
		b.sb.WriteString(q)
		b.sb.WriteString(strings.ReplaceAll(part, q, q+q))
		b.sb.WriteString(q)
	}
	return b
}

// WriteIdentifierList writes a comma separated list of identifiers.
func (b *Builder) WriteIdentifierList(names []string) *Builder {
	for i, n := range names {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.WriteIdentifier(n)
	}
	return b
}

// WritePlaceholder writes the next bind placeholder.
func (b *Builder) WritePlaceholder() *Builder {
	b.params++
	b.sb.WriteString(b.dialect.Placeholder(b.params))
	return b
}

// WriteInt writes an integer value.
func (b *Builder) WriteInt(value int64) *Builder {
	b.sb.WriteString(strconv.FormatInt(value, 10))
	return b
}

// Params returns the number of placeholders written.
func (b *Builder) Params() int {
	return b.params
}

// String returns the statement.
func (b *Builder) String() string {
	return b.sb.String()
}

// InsertStatement builds a multi-row INSERT for rows tuples of columns.
func InsertStatement(d Dialect, table string, columns []string, rows int) string {
	b := NewBuilder(d, 32+len(table)+rows*(len(columns)*4+4))
	b.WriteQuery("INSERT INTO ").WriteIdentifier(table).WriteQuery(" (").
		WriteIdentifierList(columns).WriteQuery(") VALUES ")
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteQuery(", ")
		}
		b.WriteQuery("(")
		for c := range columns {
			if c > 0 {
				b.WriteQuery(", ")
			}
			b.WritePlaceholder()
		}
		b.WriteQuery(")")
	}
	return b.String()
}

// CallStatement builds "CALL proc(args...)" where args are raw SQL fragments.
func CallStatement(d Dialect, procedure string, args ...string) string {
	b := NewBuilder(d, 16+len(procedure))
	b.WriteQuery("CALL ").WriteIdentifier(procedure).WriteQuery("(")
	b.WriteQuery(strings.Join(args, ", "))
	b.WriteQuery(")")
	return b.String()
}

func isSimple(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c == '_':
		case (c >= '0' && c <= '9') || c == '$':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
