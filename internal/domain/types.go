package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Defaults applied to an EndpointDescriptor when a field is absent.
const (
	DefaultMethod  = "POST"
	DefaultBaseURL = "https://api.example.com"
	DefaultPath    = "/endpoint"
)

// Methods is the fixed set of HTTP verbs an endpoint may declare.
var Methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

// EndpointDescriptor describes the API endpoint being explained.
type EndpointDescriptor struct {
	Method      string `json:"method"`
	BaseURL     string `json:"baseUrl"`
	Path        string `json:"path"`
	UseCase     string `json:"useCase"`
	Description string `json:"description"`
}

// URL joins the base URL and path the way the endpoint is displayed.
func (e EndpointDescriptor) URL() string {
	return e.BaseURL + e.Path
}

// ValueKind identifies which scalar a FieldValue holds.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	default:
		return "null"
	}
}

// FieldValue is a closed union of the scalars a body field or fact may hold:
// string, number, boolean or null. The zero value is null.
type FieldValue struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

// StringValue returns a string FieldValue.
func StringValue(s string) FieldValue { return FieldValue{kind: KindString, str: s} }

// NumberValue returns a numeric FieldValue.
func NumberValue(n float64) FieldValue { return FieldValue{kind: KindNumber, num: n} }

// BoolValue returns a boolean FieldValue.
func BoolValue(b bool) FieldValue { return FieldValue{kind: KindBool, b: b} }

// NullValue returns the null FieldValue.
func NullValue() FieldValue { return FieldValue{} }

// Kind reports which scalar is held.
func (v FieldValue) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is null.
func (v FieldValue) IsNull() bool { return v.kind == KindNull }

// Str returns the string and whether the value is a string.
func (v FieldValue) Str() (string, bool) { return v.str, v.kind == KindString }

// Number returns the number and whether the value is a number.
func (v FieldValue) Number() (float64, bool) { return v.num, v.kind == KindNumber }

// Bool returns the boolean and whether the value is a boolean.
func (v FieldValue) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Float coerces the value to a finite number. Numeric strings are accepted;
// NaN and infinities are not.
func (v FieldValue) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(v.str, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Text renders the value as display text; null renders as "".
func (v FieldValue) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// Interface returns the value as a plain Go value (string, float64, bool or nil).
func (v FieldValue) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	}
	return nil
}

// MarshalJSON encodes the scalar.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts only JSON scalars and null.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	fv, ok := ScalarOf(raw)
	if !ok {
		return fmt.Errorf("value must be a string, number, boolean or null")
	}
	*v = fv
	return nil
}

// ScalarOf converts a decoded JSON value into a FieldValue. It reports false
// for objects and arrays.
func ScalarOf(raw any) (FieldValue, bool) {
	switch x := raw.(type) {
	case nil:
		return NullValue(), true
	case string:
		return StringValue(x), true
	case bool:
		return BoolValue(x), true
	case float64:
		return NumberValue(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return FieldValue{}, false
		}
		return NumberValue(f), true
	case int:
		return NumberValue(float64(x)), true
	case int64:
		return NumberValue(float64(x)), true
	}
	return FieldValue{}, false
}

// Body maps field names to scalar values. A key mapped to a null value is
// distinct from an absent key.
type Body map[string]FieldValue

// Lookup returns the value of key and whether it was present.
func (b Body) Lookup(key string) (FieldValue, bool) {
	v, ok := b[key]
	return v, ok
}

// ExplainRequest is a validated explain call. It is immutable once built by
// the input validator.
type ExplainRequest struct {
	Endpoint     EndpointDescriptor `json:"endpoint"`
	RequestBody  Body               `json:"requestBody"`
	ResponseBody Body               `json:"responseBody"`
	Status       *int               `json:"status,omitempty"`
}

// KeyValueFact is a labelled scalar surfaced to the user.
type KeyValueFact struct {
	Label string     `json:"label"`
	Value FieldValue `json:"value"`
}

// TimelineStep is one named stage of the narrated interaction.
type TimelineStep struct {
	Step   string `json:"step"`
	Detail string `json:"detail,omitempty"`
}

// Limits on the explanation shape.
const (
	MaxKeyValues    = 6
	MaxTimelineSize = 5
)

// ExplainResult is the explanation returned to callers. It is always
// well-formed: sequences are never nil once normalized.
type ExplainResult struct {
	Narrative string         `json:"narrative"`
	KeyValues []KeyValueFact `json:"key_values"`
	Timeline  []TimelineStep `json:"timeline"`
	Flags     []string       `json:"flags"`
}

// Normalize replaces absent sequences with empty ones.
func (r *ExplainResult) Normalize() {
	if r.KeyValues == nil {
		r.KeyValues = []KeyValueFact{}
	}
	if r.Timeline == nil {
		r.Timeline = []TimelineStep{}
	}
	if r.Flags == nil {
		r.Flags = []string{}
	}
}

// Fact returns the first key/value fact with the given label.
func (r ExplainResult) Fact(label string) (FieldValue, bool) {
	for _, kv := range r.KeyValues {
		if kv.Label == label {
			return kv.Value, true
		}
	}
	return FieldValue{}, false
}

// HasFlag reports whether the result carries the flag.
func (r ExplainResult) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
