package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/lychee-technology/rowstore"
)

// schemaValidator checks records column by column against the properties of
// a JSON schema so that every failing column is reported.
type schemaValidator struct {
	required   []string
	properties map[string]*jsonschema.Resolved
}

// NewSchemaValidator parses a JSON schema document describing one row.
func NewSchemaValidator(doc []byte) (rowstore.Validator, error) {
	var schema jsonschema.Schema
	if err := json.Unmarshal(doc, &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON schema: %w", err)
	}
	v := &schemaValidator{
		required:   slices.Clone(schema.Required),
		properties: make(map[string]*jsonschema.Resolved, len(schema.Properties)),
	}
	for name, prop := range schema.Properties {
		resolved, err := prop.CloneSchemas().Resolve(&jsonschema.ResolveOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve schema of %s: %w", name, err)
		}
		v.properties[name] = resolved
	}
	return v, nil
}

// LoadSchemaValidator reads a schema document from path.
func LoadSchemaValidator(path string) (rowstore.Validator, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", path, err)
	}
	return NewSchemaValidator(doc)
}

// Validate reports required columns that are missing and columns whose value
// the schema rejects. Partial rows skip the required check.
func (v *schemaValidator) Validate(_ context.Context, row rowstore.Record, partial bool) rowstore.Violations {
	out := rowstore.Violations{}
	if !partial {
		for _, col := range v.required {
			if row[col] == nil {
				out.Add(col, "is required")
			}
		}
	}

	plain, err := jsonValues(row)
	if err != nil {
		out.Add("", err.Error())
		return out
	}
	for _, col := range row.Columns() {
		resolved, ok := v.properties[col]
		if !ok || plain[col] == nil {
			continue
		}
		if err := resolved.Validate(plain[col]); err != nil {
			out.Add(col, err.Error())
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// jsonValues converts row values into their JSON decoded form, which is what
// the schema validator expects.
func jsonValues(row rowstore.Record) (map[string]any, error) {
	b, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	return out, nil
}
