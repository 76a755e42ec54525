package factory

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/lychee-technology/rowstore"
	"github.com/lychee-technology/rowstore/internal"
	"gopkg.in/yaml.v3"
)

// ModelDefinition is one model entry of a definitions file. Fields missing
// from the file keep the values of rowstore.DefaultModelConfig.
type ModelDefinition struct {
	rowstore.ModelConfig `yaml:",inline"`

	// Schema is a JSON schema file validating written rows. Relative paths
	// are resolved against the definitions file.
	Schema string `yaml:"schema,omitempty"`
	// Unique lists column sets the memory driver enforces as unique.
	Unique [][]string `yaml:"unique,omitempty"`
	// Seed rows are loaded into the memory driver at startup.
	Seed []rowstore.Record `yaml:"seed,omitempty"`
}

type definitionsFile struct {
	Models map[string]yaml.Node `yaml:"models"`
}

// ParseDefinitions decodes a definitions document. baseDir anchors relative
// schema paths.
func ParseDefinitions(doc []byte, baseDir string) (map[string]ModelDefinition, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(doc, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model definitions: %w", err)
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("model definitions declare no models")
	}

	out := make(map[string]ModelDefinition, len(file.Models))
	for name, node := range file.Models {
		def := ModelDefinition{ModelConfig: rowstore.DefaultModelConfig(name)}
		if err := node.Decode(&def); err != nil {
			return nil, fmt.Errorf("model %q: %w", name, err)
		}
		if def.Schema != "" && !filepath.IsAbs(def.Schema) && baseDir != "" {
			def.Schema = filepath.Join(baseDir, def.Schema)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("model %q: %w", name, err)
		}
		out[name] = def
	}
	return out, nil
}

// LoadDefinitions reads a definitions file.
func LoadDefinitions(path string) (map[string]ModelDefinition, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model definitions: %w", err)
	}
	return ParseDefinitions(doc, filepath.Dir(path))
}

// RegisterDefinitions registers every definition in r, in name order. Schema
// files become validators.
func RegisterDefinitions(r *Registry, defs map[string]ModelDefinition) error {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		def := defs[name]
		var opts []Option
		if def.Schema != "" && !def.SkipValidation {
			v, err := internal.LoadSchemaValidator(def.Schema)
			if err != nil {
				return fmt.Errorf("model %q: %w", name, err)
			}
			opts = append(opts, WithValidator(v))
		}
		if _, err := r.Register(name, def.ModelConfig, opts...); err != nil {
			return err
		}
		if mem, ok := r.engine.(*internal.MemoryEngine); ok {
			for _, cols := range def.Unique {
				mem.Unique(def.Table, cols...)
			}
			mem.Seed(def.Table, def.Seed...)
		}
	}
	return nil
}
