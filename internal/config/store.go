// Package config implements the supervisor's configuration store: a
// one-shot JSON document loader with forgiving, typed getters that
// never fail, plus HMAC-SHA256 tamper protection over declared
// sub-documents.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Store holds a parsed JSON configuration document. It is safe for
// concurrent reads after Load returns; there is no reload operation —
// a Store is loaded once and lives for the life of the process.
type Store struct {
	mu   sync.RWMutex
	root map[string]any

	// rawDoc is the last-loaded document's raw bytes, kept so Marshal can
	// reproduce its top-level key order. Nil for a Store that was never
	// loaded.
	rawDoc []byte
}

// New returns an empty, unloaded Store. Every getter on an unloaded Store
// behaves as if the document were empty, returning the supplied default.
func New() *Store {
	return &Store{root: map[string]any{}}
}

// Load reads path as UTF-8 text and parses it as JSON. It is one-shot:
// calling Load again replaces the whole document.
func (s *Store) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &ParseError{Path: path, Err: err}
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		text := string(raw)
		if len(text) > 4096 {
			text = text[:4096] + "...(truncated)"
		}
		return &ParseError{Path: path, Raw: text, Err: err}
	}

	s.mu.Lock()
	s.root = doc
	s.rawDoc = raw
	s.mu.Unlock()
	return nil
}

// LoadJSON parses an already-read document, mainly for tests and for the
// protect/verify side-car which loads and rewrites the same file.
func (s *Store) LoadJSON(raw []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &ParseError{Path: "<memory>", Raw: string(raw), Err: err}
	}
	s.mu.Lock()
	s.root = doc
	s.rawDoc = raw
	s.mu.Unlock()
	return nil
}

// navigate resolves a dot-separated path of object keys, returning the
// sub-document found at that path, or (nil, false) if any hop is missing
// or not an object.
func (s *Store) navigate(path string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur := s.root
	if path == "" {
		return cur, true
	}
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		next, ok := cur[part]
		if !ok {
			return nil, false
		}
		obj, ok := next.(map[string]any)
		if !ok {
			return nil, false
		}
		cur = obj
	}
	return cur, true
}

// lookup resolves path.key and returns the raw value, if present.
func (s *Store) lookup(path, key string) (any, bool) {
	section, ok := s.navigate(path)
	if !ok {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := section[key]
	return v, ok
}

// GetJSON returns the raw sub-document at path, for callers that need
// structure (e.g. iterating protectedSections). The second return value
// is false if the path does not resolve to an object.
func (s *Store) GetJSON(path string) (map[string]any, bool) {
	return s.navigate(path)
}

// GetString resolves path.key and coerces it to a string, falling back to
// def on any miss or type mismatch. No getter ever panics or returns an
// error: "No exception ever escapes a getter."
func (s *Store) GetString(path, key, def string) string {
	v, ok := s.lookup(path, key)
	if !ok {
		return def
	}
	str, ok := v.(string)
	if !ok {
		return def
	}
	return str
}

// GetBool resolves path.key and coerces it to a bool, falling back to def.
func (s *Store) GetBool(path, key string, def bool) bool {
	v, ok := s.lookup(path, key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// number is the type set accepted by GetNumber.
type number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// GetNumber resolves path.key and coerces it to T, accepting JSON numbers
// as well as decimal and "0x..." hex encoded strings, falling back to def
// on any failure. Hex parsing narrows a uint64 into T; overflow is
// ignored (silently truncated), matching the forgiving-getter contract.
func GetNumber[T number](s *Store, path, key string, def T) T {
	v, ok := s.lookup(path, key)
	if !ok {
		return def
	}

	switch val := v.(type) {
	case float64:
		return T(val)
	case string:
		str := strings.TrimSpace(val)
		if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
			u, err := strconv.ParseUint(str[2:], 16, 64)
			if err != nil {
				return def
			}
			return T(u)
		}
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return def
		}
		return T(f)
	default:
		return def
	}
}

// GetStringVector resolves path.key and coerces it to a slice of strings,
// falling back to def if the value is missing or not an array of strings.
func (s *Store) GetStringVector(path, key string, def []string) []string {
	v, ok := s.lookup(path, key)
	if !ok {
		return def
	}
	arr, ok := v.([]any)
	if !ok {
		return def
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		str, ok := item.(string)
		if !ok {
			return def
		}
		out = append(out, str)
	}
	return out
}

// childKind classifies an immediate child value for GetKeys filtering.
type childKind int

const (
	kindObject childKind = iota
	kindArray
	kindOther
)

func classify(v any) childKind {
	switch v.(type) {
	case map[string]any:
		return kindObject
	case []any:
		return kindArray
	default:
		return kindOther
	}
}

// GetKeys enumerates the immediate children of path, filtered by kind.
// Order follows Go's map iteration (unspecified); callers that need a
// stable order should sort the result themselves.
func (s *Store) GetKeys(path string, includeObjects, includeArrays, includeOthers bool) []string {
	section, ok := s.navigate(path)
	if !ok {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(section))
	for k, v := range section {
		switch classify(v) {
		case kindObject:
			if includeObjects {
				keys = append(keys, k)
			}
		case kindArray:
			if includeArrays {
				keys = append(keys, k)
			}
		default:
			if includeOthers {
				keys = append(keys, k)
			}
		}
	}
	return keys
}
