package config

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// hashField is the key holding a protected-section entry's own HMAC.
const hashField = "hash"

// arrayHashField is the top-level key holding the HMAC over the
// protectedSections array itself, guarding against an attacker simply
// dropping an entry from that array to dodge its check.
const arrayHashField = "protectedSectionsHash"

// sectionsField is the top-level array of {sectionName, hash} entries
// naming every section under tamper protection.
const sectionsField = "protectedSections"

// sectionNameField names the dotted path inside each protectedSections
// entry.
const sectionNameField = "sectionName"

// canonicalize produces a deterministic byte encoding of v: encoding/json
// sorts map keys during Marshal, matching the "compact form with sorted
// keys" canonicalisation the original JsonProtector performs via
// nlohmann::json's sort-keys dump mode. NaN/Inf floats are rejected by
// json.Marshal itself, giving us the "strict on non-finite values" rule
// for free.
func canonicalize(v any) ([]byte, error) {
	return json.Marshal(v)
}

func hmacHex(secret, data []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// Protect replaces s.root["protectedSections"] with a fresh array holding
// one {sectionName, hash} entry per name in sections, each hash an
// HMAC-SHA256 over that section, plus a top-level HMAC over the resulting
// array. Entries already present in the document are not read: sections
// they name but sections omits lose their protection. It mutates the
// in-memory document; callers persist the result with Save or Marshal.
func (s *Store) Protect(sections []string, secret []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]any, 0, len(sections))
	for _, name := range sections {
		section, ok := lookupPath(s.root, name)
		if !ok {
			return fmt.Errorf("config: cannot protect missing section '%s'", name)
		}
		digest, err := hashJSON(section, secret)
		if err != nil {
			return fmt.Errorf("config: canonicalizing section '%s': %w", name, err)
		}
		entries = append(entries, map[string]any{
			sectionNameField: name,
			hashField:        digest,
		})
	}

	arrayDigest, err := hashJSON(entries, secret)
	if err != nil {
		return fmt.Errorf("config: canonicalizing '%s': %w", sectionsField, err)
	}
	s.root[sectionsField] = entries
	s.root[arrayHashField] = arrayDigest
	return nil
}

func hashJSON(v any, secret []byte) (string, error) {
	data, err := canonicalize(v)
	if err != nil {
		return "", err
	}
	return hmacHex(secret, data), nil
}

// lookupPath resolves a dot-separated path against an already-parsed
// document, without touching a Store's mutex (used internally by
// Protect/Verify, which hold the lock themselves).
func lookupPath(root map[string]any, path string) (any, bool) {
	var cur any = root
	for _, part := range splitPath(path) {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := obj[part]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

// Verify checks every entry in protectedSections against its stored
// per-entry hash. It checks the protectedSectionsHash first: tampering
// with the array itself (e.g. dropping an entry to dodge its check) is
// caught before any per-section check runs, matching the original
// watchdog's verification order. It returns the first mismatch found,
// wrapped as *HmacMismatchError, or nil if everything checks out.
// A document missing either protectedSections or protectedSectionsHash
// fails verification outright rather than passing trivially: a document
// that was supposed to carry protection but doesn't is a tamper signal,
// not a no-op.
func (s *Store) Verify(secret []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rawSections, ok := s.root[sectionsField]
	if !ok {
		return &HmacMismatchError{Section: protectedSectionsArrayName}
	}
	if _, ok := s.root[arrayHashField]; !ok {
		return &HmacMismatchError{Section: protectedSectionsArrayName}
	}
	arr, ok := rawSections.([]any)
	if !ok {
		return &HmacMismatchError{Section: protectedSectionsArrayName}
	}

	storedArrayHash, _ := s.root[arrayHashField].(string)
	wantArrayHash, err := hashJSON(arr, secret)
	if err != nil {
		return fmt.Errorf("config: canonicalizing '%s': %w", sectionsField, err)
	}
	if !hmac.Equal([]byte(storedArrayHash), []byte(wantArrayHash)) {
		return &HmacMismatchError{Section: protectedSectionsArrayName}
	}

	for _, raw := range arr {
		entry, ok := raw.(map[string]any)
		if !ok {
			return &HmacMismatchError{Section: protectedSectionsArrayName}
		}
		name, _ := entry[sectionNameField].(string)
		storedHash, _ := entry[hashField].(string)
		if name == "" {
			return &HmacMismatchError{Section: protectedSectionsArrayName}
		}

		section, ok := lookupPath(s.root, name)
		if !ok {
			return &HmacMismatchError{Section: name}
		}
		wantHash, err := hashJSON(section, secret)
		if err != nil {
			return fmt.Errorf("config: canonicalizing section '%s': %w", name, err)
		}
		if !hmac.Equal([]byte(storedHash), []byte(wantHash)) {
			return &HmacMismatchError{Section: name}
		}
	}
	return nil
}

// Marshal serializes the document (indented, for human-editable config
// files). When the Store was populated via Load or LoadJSON, top-level
// keys are written in the order of the source document; each value is
// re-encoded from s.root, so keys of nested objects come out in sorted
// order and the source's own formatting is not kept. Keys Protect added
// (protectedSections, protectedSectionsHash) are appended in sorted
// order after everything that was already there.
// The sorted-key form used for hashing (canonicalize) is unaffected by
// any of this: it always recomputes straight from s.root.
func (s *Store) Marshal() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.rawDoc) == 0 {
		return json.MarshalIndent(s.root, "", "  ")
	}
	ordered, err := topLevelKeyOrder(s.rawDoc)
	if err != nil {
		return json.MarshalIndent(s.root, "", "  ")
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	first := true
	writeEntry := func(key string, value any) error {
		if !first {
			buf.WriteString(",\n")
		}
		first = false
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return err
		}
		encodedValue, err := json.MarshalIndent(value, "  ", "  ")
		if err != nil {
			return err
		}
		buf.WriteString("  ")
		buf.Write(encodedKey)
		buf.WriteString(": ")
		buf.Write(encodedValue)
		return nil
	}

	seen := make(map[string]bool, len(ordered))
	for _, key := range ordered {
		seen[key] = true
		value, ok := s.root[key]
		if !ok {
			continue
		}
		if err := writeEntry(key, value); err != nil {
			return nil, err
		}
	}

	newKeys := make([]string, 0)
	for key := range s.root {
		if !seen[key] {
			newKeys = append(newKeys, key)
		}
	}
	sort.Strings(newKeys)
	for _, key := range newKeys {
		if err := writeEntry(key, s.root[key]); err != nil {
			return nil, err
		}
	}

	buf.WriteString("\n}\n")
	return buf.Bytes(), nil
}

// topLevelKeyOrder returns the top-level object keys of raw in document
// order. encoding/json's ordinary map decoding discards this, so it's
// recovered with a streaming token decoder instead.
func topLevelKeyOrder(raw []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("config: top-level document is not an object")
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("config: unexpected %v where an object key was expected", tok)
		}
		keys = append(keys, key)

		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// Save serializes the document and writes it to path with 0o600
// permissions, since a protected config file may carry an HMAC secret's
// downstream artifacts.
func (s *Store) Save(path string) error {
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
