package sample

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

type sheetEntry struct {
	Name     string           `mapstructure:"name"`
	Data     []map[string]any `mapstructure:"data"`
	Metadata Metadata         `mapstructure:"metadata"`
}

// LoadList reads a sample sheet. The sheet is a YAML or JSON array of
// {name, data, metadata} objects; metadata is checked against schema.
func LoadList(fs afero.Fs, path string, schema Schema) (*List, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read sample sheet: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse sample sheet %s: %w", path, err)
	}
	items, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: sample sheet %s must contain an array at the top level", ErrInvalidSample, path)
	}
	return FromEntries(items, schema)
}

// FromEntries builds a List from decoded sheet entries.
func FromEntries(items []any, schema Schema) (*List, error) {
	list, _ := NewList()
	for i, item := range items {
		var e sheetEntry
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &e,
			ErrorUnused:      true,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(item); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidSample, i, err)
		}
		if err := schema.Validate(e.Metadata); err != nil {
			return nil, fmt.Errorf("sample %q: %w", e.Name, err)
		}
		data := make([]Data, 0, len(e.Data))
		for j, raw := range e.Data {
			d, err := DecodeData(raw)
			if err != nil {
				return nil, fmt.Errorf("sample %q data %d: %w", e.Name, j, err)
			}
			data = append(data, d)
		}
		s, err := New(e.Name, data, e.Metadata)
		if err != nil {
			return nil, err
		}
		if err := list.Append(s); err != nil {
			return nil, err
		}
	}
	return list, nil
}
