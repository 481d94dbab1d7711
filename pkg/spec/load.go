package spec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrParse indicates a structurally malformed definition.
var ErrParse = errors.New("parse error")

// Parse decodes a YAML (or JSON) machine definition. Unknown keys are
// rejected.
func Parse(data []byte) (*Machine, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	m := &Machine{}
	if err := dec.Decode(m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty definition", ErrParse)
		}
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	return m, nil
}

// Load reads and parses a definition file.
func Load(path string) (*Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return m, nil
}

// LoadValid loads a definition file and validates it.
func LoadValid(path string) (*Machine, error) {
	m, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return m, nil
}

// Marshal encodes a definition as YAML.
func Marshal(m *Machine) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// MustParse is like Parse, but panics on invalid definitions. Used by
// generated code for embedded definitions.
func MustParse(data []byte) *Machine {
	m, err := Parse(data)
	if err != nil {
		panic(err)
	}
	if err := Validate(m); err != nil {
		panic(err)
	}

	return m
}
