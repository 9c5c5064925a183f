package agent

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Schema describes the tables the translator may query.
type Schema struct {
	Tables        []Table  `yaml:"tables"`
	Relationships []string `yaml:"relationships"`
	// Notes are extra instructions appended to the prompt rules.
	Notes []string `yaml:"notes"`
}

// Table is a single table and its columns.
type Table struct {
	Name    string   `yaml:"name"`
	Columns []Column `yaml:"columns"`
}

// Column is a column name with its SQL type.
type Column struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// DefaultSchema returns the ecommerce sample schema of products and sales.
func DefaultSchema() *Schema {
	return &Schema{
		Tables: []Table{
			{
				Name: "products",
				Columns: []Column{
					{"product_id", "INT"},
					{"product_name", "TEXT"},
					{"description", "TEXT"},
				},
			},
			{
				Name: "sales",
				Columns: []Column{
					{"id", "INT"},
					{"order_id", "INT"},
					{"product_id", "INT"},
					{"quantity", "INT"},
					{"unit_price", "DECIMAL(10, 2)"},
					{"order_date", "TIMESTAMP"},
				},
			},
		},
		Relationships: []string{
			"`sales.product_id` references `products.product_id`",
		},
	}
}

// LoadSchema reads a YAML schema document.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return ParseSchema(data)
}

// ParseSchema decodes and validates a YAML schema document.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that every table has a name and at least one column.
func (s *Schema) Validate() error {
	if len(s.Tables) == 0 {
		return errors.New("schema has no tables")
	}
	seen := make(map[string]bool)
	for i, t := range s.Tables {
		if t.Name == "" {
			return fmt.Errorf("table %d has no name", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("table %q is declared twice", t.Name)
		}
		seen[t.Name] = true
		if len(t.Columns) == 0 {
			return fmt.Errorf("table %q has no columns", t.Name)
		}
		for _, c := range t.Columns {
			if c.Name == "" || c.Type == "" {
				return fmt.Errorf("table %q has a column without name or type", t.Name)
			}
		}
	}
	return nil
}

// Describe renders the schema as the prompt listing, one table per line.
func (s *Schema) Describe() string {
	var b strings.Builder
	for _, t := range s.Tables {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.Name + " " + c.Type
		}
		fmt.Fprintf(&b, "- %s (%s)\n", t.Name, strings.Join(cols, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Current implements SchemaSource.
func (s *Schema) Current() *Schema {
	return s
}

// SchemaSource supplies the schema used for the next translation.
type SchemaSource interface {
	Current() *Schema
}
