package models

import (
	"strings"
	"time"
)

// SchemaSnapshot is the discovered (or substituted) schema of one tenant.
// A snapshot handed out by the schema registry always has at least one table.
type SchemaSnapshot struct {
	TenantID     string       `json:"tenant_id"`
	Tables       []Table      `json:"tables"`
	ForeignKeys  []ForeignKey `json:"foreign_keys,omitempty"`
	DiscoveredAt time.Time    `json:"discovered_at"`
	Fallback     bool         `json:"fallback"`
}

// Table is an ordered list of columns plus its primary key.
type Table struct {
	Name       string   `json:"name"`
	Columns    []Column `json:"columns"`
	PrimaryKey []string `json:"primary_key,omitempty"`
}

// Column describes one table column.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
}

// ForeignKey is a single-column reference edge.
type ForeignKey struct {
	Table     string `json:"table"`
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// Table looks up a table by name, case-insensitively. A schema qualifier
// ("public.employees") is ignored.
func (s *SchemaSnapshot) Table(name string) (*Table, bool) {
	name = unqualify(name)
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// HasTable reports whether the snapshot contains the table.
func (s *SchemaSnapshot) HasTable(name string) bool {
	_, ok := s.Table(name)
	return ok
}

// HasColumn reports whether table has the column.
func (s *SchemaSnapshot) HasColumn(table, column string) bool {
	t, ok := s.Table(table)
	if !ok {
		return false
	}
	_, ok = t.Column(column)
	return ok
}

// TableNames returns table names in snapshot order.
func (s *SchemaSnapshot) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// ForeignKeysBetween returns edges from one table to the other in either direction.
func (s *SchemaSnapshot) ForeignKeysBetween(a, b string) []ForeignKey {
	var edges []ForeignKey
	for _, fk := range s.ForeignKeys {
		if (strings.EqualFold(fk.Table, a) && strings.EqualFold(fk.RefTable, b)) ||
			(strings.EqualFold(fk.Table, b) && strings.EqualFold(fk.RefTable, a)) {
			edges = append(edges, fk)
		}
	}
	return edges
}

// ForeignKeysFrom returns edges whose referencing side is table.
func (s *SchemaSnapshot) ForeignKeysFrom(table string) []ForeignKey {
	var edges []ForeignKey
	for _, fk := range s.ForeignKeys {
		if strings.EqualFold(fk.Table, table) {
			edges = append(edges, fk)
		}
	}
	return edges
}

// Column looks up a column by name, case-insensitively.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// ColumnNames returns the column names in ordinal order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// IsText reports whether the declared type holds free text.
func (c *Column) IsText() bool {
	dt := strings.ToLower(c.DataType)
	return strings.Contains(dt, "char") || strings.Contains(dt, "text") || dt == "citext"
}

// IsNumeric reports whether the declared type is a number.
func (c *Column) IsNumeric() bool {
	dt := strings.ToLower(c.DataType)
	for _, n := range []string{"int", "numeric", "decimal", "money", "real", "double", "float"} {
		if strings.Contains(dt, n) {
			return true
		}
	}
	return false
}

func unqualify(name string) string {
	name = strings.Trim(name, `"[]`)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = strings.Trim(name[i+1:], `"[]`)
	}
	return name
}
