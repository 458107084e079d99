package config

import (
	"github.com/mitchellh/mapstructure"
)

// ParseSection decodes the sub-document at path into a new T using
// mapstructure, with strict handling: unknown keys are ignored (the
// document may carry sibling sections we don't model), but type mismatches
// on known fields are reported rather than silently zeroed. Unlike the
// forgiving Get* methods, ParseSection returns an error: a section that
// exists but is malformed is a configuration bug, not a soft default.
func ParseSection[T any](s *Store, path string) (T, error) {
	var out T

	section, ok := s.GetJSON(path)
	if !ok {
		return out, &MissingSectionError{Section: path}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: false,
		ErrorUnused:      false,
		TagName:          "json",
	})
	if err != nil {
		return out, &SchemaError{Section: path, Err: err}
	}
	if err := dec.Decode(section); err != nil {
		return out, &SchemaError{Section: path, Err: err}
	}
	return out, nil
}
