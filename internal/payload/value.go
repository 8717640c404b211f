// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package payload

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// # Value Kinds

// Kind tags the variant held by a [Value].
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
	KindBytes
	KindJSON
)

var kindNames = [...]string{"null", "string", "int", "float", "bool", "time", "bytes", "json"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a typed argument value. The zero Value is Null: an explicit
// "no value" that binds as SQL NULL, which is not the same as leaving the
// argument out of the call.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
	raw  []byte
}

// # Constructors

func Null() Value            { return Value{} }
func String(s string) Value  { return Value{kind: KindString, s: s} }
func Int(i int64) Value      { return Value{kind: KindInt, i: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }
func Bytes(b []byte) Value   { return Value{kind: KindBytes, raw: b} }
func JSON(raw []byte) Value  { return Value{kind: KindJSON, raw: raw} }

// Kind reports the variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the explicit no-value marker.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Any returns the value in the form handed to the database driver.
// JSON documents are passed as text so they bind to json and jsonb alike.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	case KindBytes:
		return v.raw
	case KindJSON:
		return string(v.raw)
	default:
		return nil
	}
}

// String renders the value for logs and CLI output.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindString:
		return strconv.Quote(v.s)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	case KindBytes:
		return fmt.Sprintf("bytes[%d]", len(v.raw))
	default:
		return fmt.Sprint(v.Any())
	}
}

// # Conversion

// FromAny converts a native Go value into a [Value].
//
// Scalars map to their variant, except that a whole float64 within int64
// range becomes Int. nil and nil pointers map to Null, driver.Valuer
// implementations are resolved first, and maps, slices and structs are
// encoded as a JSON document. Channels, functions and complex numbers are
// rejected.
func FromAny(x any) (Value, error) {
	if rv := reflect.ValueOf(x); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return Null(), nil
	}

	switch v := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(int64(v)), nil
	case int8:
		return Int(int64(v)), nil
	case int16:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint8:
		return Int(int64(v)), nil
	case uint16:
		return Int(int64(v)), nil
	case uint32:
		return Int(int64(v)), nil
	case uint:
		return fromUint(uint64(v)), nil
	case uint64:
		return fromUint(v), nil
	case float32:
		return Float(float64(v)), nil
	case float64:
		return fromFloat(v), nil
	case json.Number:
		return fromNumber(v)
	case time.Time:
		return Time(v), nil
	case json.RawMessage:
		return fromRawJSON(v)
	case []byte:
		return Bytes(v), nil
	case driver.Valuer:
		resolved, err := v.Value()
		if err != nil {
			return Value{}, fmt.Errorf("payload: valuer failed: %w", err)
		}
		if _, again := resolved.(driver.Valuer); again {
			return Value{}, fmt.Errorf("payload: valuer %T returned another valuer", x)
		}
		return FromAny(resolved)
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return FromAny(rv.Elem().Interface())

	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if (rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice) && rv.IsNil() {
			return Null(), nil
		}
		encoded, err := json.Marshal(x)
		if err != nil {
			return Value{}, fmt.Errorf("payload: cannot encode %T as JSON: %w", x, err)
		}
		return JSON(encoded), nil

	// Named scalar types (type Status string, type Level int, ...).
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fromUint(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	}

	return Value{}, fmt.Errorf("payload: unsupported value type %T", x)
}

func fromUint(u uint64) Value {
	if u > math.MaxInt64 {
		return Float(float64(u))
	}
	return Int(int64(u))
}

// fromFloat maps a whole float64 within int64 range to Int. Generic JSON
// decoded without UseNumber carries every number as float64.
func fromFloat(f float64) Value {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return Int(int64(f))
	}
	return Float(f)
}

// fromNumber maps a JSON number to Int when it is an integer literal within
// int64 range, and to Float otherwise.
func fromNumber(n json.Number) (Value, error) {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return Int(i), nil
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return Value{}, fmt.Errorf("payload: invalid number %q: %w", n, err)
	}
	return Float(f), nil
}

// fromRawJSON maps one JSON value (already validated by the decoder) to a
// Value. Objects and arrays stay JSON documents.
func fromRawJSON(raw json.RawMessage) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Null(), nil
	}

	switch trimmed[0] {
	case 'n':
		return Null(), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return Value{}, fmt.Errorf("payload: invalid JSON literal: %w", err)
		}
		return Bool(b), nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Value{}, fmt.Errorf("payload: invalid JSON string: %w", err)
		}
		return String(s), nil
	case '{', '[':
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err != nil {
			return Value{}, fmt.Errorf("payload: invalid JSON document: %w", err)
		}
		return JSON(compact.Bytes()), nil
	default:
		return fromNumber(json.Number(trimmed))
	}
}
