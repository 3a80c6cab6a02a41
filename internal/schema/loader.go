package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Tables        map[string]Table  `yaml:"tables"`
	Relationships []relationshipDoc `yaml:"relationships"`
	Glossary      map[string]string `yaml:"business_glossary"`
}

type relationshipDoc struct {
	From        string `yaml:"from"`
	To          string `yaml:"to"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

// LoadFile reads the schema catalog from a YAML file.
func LoadFile(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema catalog %q: %w", path, err)
	}
	model, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse schema catalog %q: %w", path, err)
	}
	return model, nil
}

// Parse decodes and validates a YAML schema catalog document.
func Parse(raw []byte) (*Model, error) {
	var doc catalogFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if len(doc.Tables) == 0 {
		return nil, fmt.Errorf("catalog defines no tables")
	}

	tables := make(map[string]Table, len(doc.Tables))
	for name, table := range doc.Tables {
		if name == "" {
			return nil, fmt.Errorf("catalog contains a table with an empty name")
		}
		table.Name = name
		tables[name] = table
	}

	relationships := make([]Relationship, 0, len(doc.Relationships))
	for _, rel := range doc.Relationships {
		from, err := ParseColumnRef(rel.From)
		if err != nil {
			return nil, fmt.Errorf("relationship from: %w", err)
		}
		to, err := ParseColumnRef(rel.To)
		if err != nil {
			return nil, fmt.Errorf("relationship to: %w", err)
		}
		if _, ok := tables[from.Table]; !ok {
			return nil, fmt.Errorf("relationship %s -> %s references unknown table %q", rel.From, rel.To, from.Table)
		}
		if _, ok := tables[to.Table]; !ok {
			return nil, fmt.Errorf("relationship %s -> %s references unknown table %q", rel.From, rel.To, to.Table)
		}
		relationships = append(relationships, Relationship{
			From:        from,
			To:          to,
			Type:        rel.Type,
			Description: rel.Description,
		})
	}

	glossary := doc.Glossary
	if glossary == nil {
		glossary = map[string]string{}
	}

	return &Model{
		Tables:        tables,
		Relationships: relationships,
		Glossary:      glossary,
	}, nil
}
