package rules

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSpecs decodes a YAML list of rule specs and validates each one. An empty
// document yields no specs.
//
//	- category: Insecure dynamic evaluation
//	  kind: call-callee-equals
//	  languages: [javascript]
//	  kinds: [call_expression]
//	  names: [setTimeout]
func LoadSpecs(r io.Reader) ([]Spec, error) {
	var specs []Spec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&specs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if err := Validate(specs...); err != nil {
		return nil, err
	}
	return specs, nil
}

// Validate compiles every spec without building a catalog. Errors carry the
// spec's position in specs.
func Validate(specs ...Spec) error {
	for i, s := range specs {
		if _, err := compile(s, i); err != nil {
			return err
		}
	}
	return nil
}

// LoadSpecsFile reads rule specs from a YAML file.
func LoadSpecsFile(path string) ([]Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	specs, err := LoadSpecs(f)
	if err != nil {
		var ce *RuleCompilationError
		if errors.As(err, &ce) {
			ce.Source = path
			return nil, ce
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return specs, nil
}

// LoadSpecsFiles reads and concatenates specs from several files, in order.
// A compilation error's Index is the spec's position in the concatenation,
// the same position it has when the result is passed to WithExtraSpecs.
func LoadSpecsFiles(paths ...string) ([]Spec, error) {
	var all []Spec
	for _, p := range paths {
		specs, err := LoadSpecsFile(p)
		if err != nil {
			var ce *RuleCompilationError
			if errors.As(err, &ce) {
				ce.Index += len(all)
			}
			return nil, err
		}
		all = append(all, specs...)
	}
	return all, nil
}

// Filter returns the specs that apply to any of the given names.
func Filter(specs []Spec, names ...string) []Spec {
	var out []Spec
	for _, s := range specs {
		if s.AppliesTo(names...) {
			out = append(out, s)
		}
	}
	return out
}
