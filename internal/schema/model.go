package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Column describes one column of a warehouse table.
type Column struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

// Table is the catalog entry for one warehouse table.
type Table struct {
	Name        string
	Description string   `yaml:"description"`
	Source      string   `yaml:"source"`
	Columns     []Column `yaml:"columns"`
}

// ColumnRef points at one side of a relationship, parsed from "table.column".
type ColumnRef struct {
	Table  string
	Column string
}

func (r ColumnRef) String() string {
	return r.Table + "." + r.Column
}

// ParseColumnRef splits a "table.column" reference.
func ParseColumnRef(raw string) (ColumnRef, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ColumnRef{}, fmt.Errorf("invalid column reference %q: expected table.column", raw)
	}
	return ColumnRef{Table: parts[0], Column: parts[1]}, nil
}

// Relationship is a directed join edge between two table columns.
type Relationship struct {
	From        ColumnRef
	To          ColumnRef
	Type        string
	Description string
}

// Condition renders the join predicate for the relationship.
func (r Relationship) Condition() string {
	return r.From.String() + " = " + r.To.String()
}

// Model is the immutable in-memory schema catalog. It is built once by Load
// and safe for unsynchronized concurrent reads afterwards.
type Model struct {
	Tables        map[string]Table
	Relationships []Relationship
	Glossary      map[string]string
}

// Table returns the catalog entry for name.
func (m *Model) Table(name string) (Table, bool) {
	table, ok := m.Tables[name]
	return table, ok
}

// TableNames returns all table names in sorted order.
func (m *Model) TableNames() []string {
	names := make([]string, 0, len(m.Tables))
	for name := range m.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RelationshipsFor returns every relationship touching the table, in catalog
// order.
func (m *Model) RelationshipsFor(name string) []Relationship {
	var related []Relationship
	for _, rel := range m.Relationships {
		if rel.From.Table == name || rel.To.Table == name {
			related = append(related, rel)
		}
	}
	return related
}

// ContextText renders the whole catalog as a prompt context block for the
// agent collaborator: tables with columns, relationships, glossary terms.
func (m *Model) ContextText() string {
	var b strings.Builder
	b.WriteString("# Database schema\n\n")

	for _, name := range m.TableNames() {
		table := m.Tables[name]
		fmt.Fprintf(&b, "## Table: %s\n", name)
		fmt.Fprintf(&b, "Description: %s\n", table.Description)
		fmt.Fprintf(&b, "Source: %s\n", table.Source)
		b.WriteString("Columns:\n")
		for _, col := range table.Columns {
			fmt.Fprintf(&b, "  - %s (%s): %s\n", col.Name, col.Type, col.Description)
		}
		b.WriteString("\n")
	}

	if len(m.Relationships) > 0 {
		b.WriteString("## Relationships\n")
		for _, rel := range m.Relationships {
			fmt.Fprintf(&b, "  - %s -> %s (%s)\n", rel.From, rel.To, rel.Type)
			if rel.Description != "" {
				fmt.Fprintf(&b, "    %s\n", rel.Description)
			}
		}
		b.WriteString("\n")
	}

	if len(m.Glossary) > 0 {
		b.WriteString("## Business glossary\n")
		terms := make([]string, 0, len(m.Glossary))
		for term := range m.Glossary {
			terms = append(terms, term)
		}
		sort.Strings(terms)
		for _, term := range terms {
			fmt.Fprintf(&b, "  - %q -> %s\n", term, m.Glossary[term])
		}
	}

	return b.String()
}
