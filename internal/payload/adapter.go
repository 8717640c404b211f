// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

/*
Package payload turns an untyped invocation payload into the ordered list of
named, typed arguments bound to a routine call.

Accepted shapes:

  - nil: no arguments.
  - JSON document ([json.RawMessage] or []byte): object members in document order.
  - Map with string keys: one argument per key, sorted by key.
  - Struct or pointer to struct: one argument per exported field, in declaration order.

Every name goes through the parameter-marker rule: a key that already starts
with the marker (case-insensitive) is used as-is, otherwise the marker is
prepended. Names end up spliced into SQL, so they must be plain identifiers.
*/
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/validate"
)

// Argument is one named, typed value bound to a routine parameter.
type Argument struct {
	Name  string
	Value Value
}

func (a Argument) String() string {
	return a.Name + "=" + a.Value.String()
}

// Adapter converts payloads into arguments using one marker convention.
type Adapter struct {
	Marker string
}

// NewAdapter creates an Adapter with the given parameter marker.
func NewAdapter(marker string) *Adapter {
	return &Adapter{Marker: marker}
}

// Adapt converts payload into arguments. Unsupported shapes, bad names and
// duplicate names come back as VALIDATION_ERROR; nothing here panics on
// caller input.
func (adapter *Adapter) Adapt(payload any) ([]Argument, error) {
	var (
		pairs []pair
		err   error
	)

	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		pairs, err = pairsFromJSON(p)
	case []byte:
		pairs, err = pairsFromJSON(p)
	default:
		pairs, err = pairsFromReflection(payload)
	}
	if err != nil {
		return nil, err
	}

	return adapter.name(pairs)
}

// pair is an unmarked key with its converted value.
type pair struct {
	key   string
	value Value
}

// name applies the marker rule, validates each name and rejects collisions.
// PostgreSQL folds unquoted identifiers to lower case, so collisions are
// detected case-insensitively.
func (adapter *Adapter) name(pairs []pair) ([]Argument, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	args := make([]Argument, 0, len(pairs))
	seen := make(map[string]string, len(pairs))

	for _, p := range pairs {
		name := adapter.mark(p.key)

		if !validate.IsIdentifier(name) {
			return nil, apperr.ValidationError(fmt.Sprintf("invalid argument name %q", p.key))
		}

		folded := strings.ToLower(name)
		if first, dup := seen[folded]; dup {
			return nil, apperr.ValidationError(fmt.Sprintf("duplicate argument %q (also given as %q)", p.key, first))
		}
		seen[folded] = p.key

		args = append(args, Argument{Name: name, Value: p.value})
	}

	return args, nil
}

func (adapter *Adapter) mark(key string) string {
	marker := adapter.Marker
	if marker == "" {
		return key
	}
	if len(key) >= len(marker) && strings.EqualFold(key[:len(marker)], marker) {
		return key
	}
	return marker + key
}

// # JSON Documents

// pairsFromJSON reads a JSON object member by member so the argument order
// follows the document.
func pairsFromJSON(raw []byte) ([]pair, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	// ── 1. Opening brace ─────────────────────────────────────────────────
	token, err := decoder.Token()
	if err != nil {
		return nil, invalidJSON(err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, apperr.ValidationError("payload must be a JSON object")
	}

	// ── 2. Members ───────────────────────────────────────────────────────
	var pairs []pair
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return nil, invalidJSON(err)
		}
		key, ok := keyToken.(string)
		if !ok {
			return nil, apperr.ValidationError("payload must be a JSON object")
		}

		var member json.RawMessage
		if err := decoder.Decode(&member); err != nil {
			return nil, invalidJSON(err)
		}

		value, err := fromRawJSON(member)
		if err != nil {
			return nil, apperr.ValidationError(fmt.Sprintf("argument %q: %v", key, err))
		}
		pairs = append(pairs, pair{key: key, value: value})
	}

	// ── 3. Closing brace and nothing after it ────────────────────────────
	if _, err := decoder.Token(); err != nil {
		return nil, invalidJSON(err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, apperr.ValidationError("payload has trailing data after the JSON object")
	}

	return pairs, nil
}

func invalidJSON(err error) error {
	ae := apperr.ValidationError("payload is not valid JSON")
	ae.Cause = err
	return ae
}

// # Maps and Structs

func pairsFromReflection(payload any) ([]pair, error) {
	rv := reflect.ValueOf(payload)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}

	switch {
	case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
		return pairsFromMap(rv)
	case rv.Kind() == reflect.Struct && !opaqueStruct(rv.Type()):
		var pairs []pair
		if err := appendStructPairs(&pairs, rv); err != nil {
			return nil, err
		}
		return pairs, nil
	default:
		return nil, apperr.ValidationError(fmt.Sprintf("unsupported payload shape %T", payload))
	}
}

// opaqueStruct reports struct types that are scalar values rather than records.
func opaqueStruct(rt reflect.Type) bool {
	return rt == reflect.TypeOf(Value{}) || rt == reflect.TypeOf(time.Time{})
}

func pairsFromMap(rv reflect.Value) ([]pair, error) {
	if rv.IsNil() || rv.Len() == 0 {
		return nil, nil
	}

	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	pairs := make([]pair, 0, len(keys))
	for _, key := range keys {
		value, err := FromAny(rv.MapIndex(key).Interface())
		if err != nil {
			return nil, apperr.ValidationError(fmt.Sprintf("argument %q: %v", key.String(), err))
		}
		pairs = append(pairs, pair{key: key.String(), value: value})
	}
	return pairs, nil
}

// appendStructPairs walks exported fields in declaration order. Untagged
// embedded structs are flattened the way encoding/json flattens them.
func appendStructPairs(pairs *[]pair, rv reflect.Value) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tagName, skip := jsonName(field)
		if skip {
			continue
		}

		fieldValue := rv.Field(i)

		if field.Anonymous && tagName == "" {
			embedded := fieldValue
			if embedded.Kind() == reflect.Pointer {
				if embedded.IsNil() {
					continue
				}
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				if err := appendStructPairs(pairs, embedded); err != nil {
					return err
				}
				continue
			}
		}

		if !field.IsExported() {
			continue
		}

		name := field.Name
		if tagName != "" {
			name = tagName
		}

		value, err := FromAny(fieldValue.Interface())
		if err != nil {
			return apperr.ValidationError(fmt.Sprintf("argument %q: %v", name, err))
		}
		*pairs = append(*pairs, pair{key: name, value: value})
	}

	return nil
}

// jsonName returns the json tag name of a field and whether it is skipped.
func jsonName(field reflect.StructField) (string, bool) {
	tag, ok := field.Tag.Lookup("json")
	if !ok {
		return "", false
	}
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	return name, false
}
