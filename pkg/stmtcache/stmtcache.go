// Package stmtcache holds one connection's named prepared statements and
// portals: names are unique per connection, the unnamed ("") entry is
// silently replaceable, and closing a statement invalidates every portal
// bound against it.
//
// The cache is plain name-keyed rather than query-hash-keyed or
// LRU-bounded: PGAdapter gives each client connection exactly one logical
// Spanner session, so there is nothing to share or evict.
package stmtcache

import (
	"github.com/jackc/pgerrcode"

	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/pgwire"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/values"
)

// PreparedStatement is a parsed, not-yet-bound statement.
type PreparedStatement struct {
	Name            string
	SQL             string
	ParsedKind      string
	ParameterOIDs   []values.OID
	DescribedFields []FieldDescription
}

// FieldDescription is one result-column's metadata, as carried in a
// RowDescription message.
type FieldDescription struct {
	Name         string
	TableOID     uint32
	ColumnAttrNo int16
	TypeOID      values.OID
	TypeSize     int16
	TypeModifier int32
	Format       values.FormatCode
}

// PortalState tracks where a portal sits in its Bind→Execute→done lifecycle.
type PortalState int

const (
	PortalBound PortalState = iota
	PortalExecuting
	PortalDone
)

// Portal is a bound, ready-to-execute instance of a PreparedStatement. It
// holds a non-owning reference to its statement; closing the statement
// invalidates the portal.
type Portal struct {
	Name             string
	Statement        *PreparedStatement
	BoundParameters  [][]byte
	ParameterFormats []values.FormatCode
	ResultFormats    []values.FormatCode
	State            PortalState
	// Described is set once the portal's RowDescription has been sent, so
	// Execute knows whether the client already learned the result shape.
	Described bool
}

// Cache is one connection's statement/portal tables.
type Cache struct {
	statements map[string]*PreparedStatement
	portals    map[string]*Portal
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{
		statements: make(map[string]*PreparedStatement),
		portals:    make(map[string]*Portal),
	}
}

// Parse stores a new PreparedStatement under name. A named
// ("" excluded) statement that already exists is a duplicate-name error
// (42P05); the unnamed statement is always silently replaceable.
func (c *Cache) Parse(stmt *PreparedStatement) error {
	if stmt.Name != "" {
		if _, exists := c.statements[stmt.Name]; exists {
			return pgwire.NewErr(pgwire.Error, pgerrcode.DuplicatePreparedStatement,
				"prepared statement \""+stmt.Name+"\" already exists", nil)
		}
	} else {
		// Replacing the unnamed statement invalidates any portal bound to
		// the previous one, same as closing it explicitly.
		c.invalidatePortalsOf(c.statements[""])
	}
	c.statements[stmt.Name] = stmt
	return nil
}

// Statement looks up a prepared statement by name. An unknown name on
// Bind/Describe('S') is a 26000 error.
func (c *Cache) Statement(name string) (*PreparedStatement, error) {
	s, ok := c.statements[name]
	if !ok {
		return nil, pgwire.NewErr(pgwire.Error, pgwire.CodeInvalidSQLStatementName,
			"prepared statement \""+name+"\" does not exist", nil)
	}
	return s, nil
}

// Bind creates or replaces a Portal bound against stmt. The unnamed portal
// is always replaceable; a named portal that already exists is replaced
// silently as well, since unlike statements PostgreSQL allows it.
func (c *Cache) Bind(name string, stmt *PreparedStatement, boundParams [][]byte, paramFormats, resultFormats []values.FormatCode) *Portal {
	p := &Portal{
		Name:             name,
		Statement:        stmt,
		BoundParameters:  boundParams,
		ParameterFormats: paramFormats,
		ResultFormats:    resultFormats,
		State:            PortalBound,
	}
	c.portals[name] = p
	return p
}

// Portal looks up a bound portal by name. An unknown name is a 34000
// (invalid cursor name) error, the same SQLSTATE real PostgreSQL uses.
func (c *Cache) Portal(name string) (*Portal, error) {
	p, ok := c.portals[name]
	if !ok {
		return nil, pgwire.NewErr(pgwire.Error, pgerrcode.InvalidCursorName,
			"portal \""+name+"\" does not exist", nil)
	}
	return p, nil
}

// CloseStatement drops a prepared statement and invalidates every portal
// bound to it; absent names are a no-op.
func (c *Cache) CloseStatement(name string) {
	stmt, ok := c.statements[name]
	if !ok {
		return
	}
	c.invalidatePortalsOf(stmt)
	delete(c.statements, name)
}

// ClosePortal drops a portal; absent names are a no-op.
func (c *Cache) ClosePortal(name string) {
	delete(c.portals, name)
}

func (c *Cache) invalidatePortalsOf(stmt *PreparedStatement) {
	if stmt == nil {
		return
	}
	for name, p := range c.portals {
		if p.Statement == stmt {
			delete(c.portals, name)
		}
	}
}
