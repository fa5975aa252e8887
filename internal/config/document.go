package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrNotTraversable = errors.New("value is not traversable")
)

// Document is a nested JSON object such as the parameters, reference or
// resources file.
type Document map[string]any

// GetIn walks keys through nested objects and returns the value at the end.
func (d Document) GetIn(keys ...string) (any, error) {
	var cur any = map[string]any(d)
	for i, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: value at %q is %T, not an object",
				ErrNotTraversable, strings.Join(keys[:i], " -> "), cur)
		}
		next, ok := obj[k]
		if !ok {
			return nil, fmt.Errorf("%w: %q at path %s", ErrKeyNotFound, k, strings.Join(keys[:i+1], " -> "))
		}
		cur = next
	}
	return cur, nil
}

// GetString is GetIn for string leaves.
func (d Document) GetString(keys ...string) (string, error) {
	v, err := d.GetIn(keys...)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: value at %s is %T, not a string", ErrNotTraversable, strings.Join(keys, " -> "), v)
	}
	return s, nil
}

// Decode decodes the value at keys into out.
func (d Document) Decode(out any, keys ...string) error {
	v, err := d.GetIn(keys...)
	if err != nil {
		return err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", strings.Join(keys, " -> "), err)
	}
	return nil
}

// LoadDocument reads a JSON object from path. A missing file yields an empty
// document and a warning.
func LoadDocument(fs afero.Fs, path string, log *zap.Logger) (Document, error) {
	if log == nil {
		log = zap.NewNop()
	}
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !exists {
		log.Warn("Configuration document not found", zap.String("path", path))
		return Document{}, nil
	}
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must contain a JSON object at the top level", path)
	}
	return Document(obj), nil
}

// Documents bundles the documents pipelines read from.
type Documents struct {
	Parameters Document
	Reference  Document
	Resources  Document
}

// LoadDocuments reads the documents named in s.
func LoadDocuments(fs afero.Fs, s *Settings, log *zap.Logger) (*Documents, error) {
	var docs Documents
	for _, item := range []struct {
		path string
		dst  *Document
	}{
		{s.ParametersJSON, &docs.Parameters},
		{s.ReferenceJSON, &docs.Reference},
		{s.ResourcesJSON, &docs.Resources},
	} {
		d, err := LoadDocument(fs, item.path, log)
		if err != nil {
			return nil, err
		}
		*item.dst = d
	}
	return &docs, nil
}
