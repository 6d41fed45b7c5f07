package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrTypeMismatch is returned by the typed getters when the key holds a
	// value of a different kind.
	ErrTypeMismatch = errors.New("bundle: type mismatch")
	// ErrUnsupportedType is returned when building from a value that is not
	// a string, integer, float, bool or byte slice.
	ErrUnsupportedType = errors.New("bundle: unsupported value type")
)

// Kind is the scalar type of a bundle value.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindBool
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

func parseKind(s string) (Kind, bool) {
	for k := KindString; k <= KindBytes; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

type value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	raw  []byte
}

func (v value) equal(o value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindBool:
		return v.b == o.b
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	}
	return false
}

func (v value) any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindBytes:
		return bytes.Clone(v.raw)
	}
	return nil
}

// Bundle is an immutable string-keyed payload handed from one stage to the
// next. The zero value is a valid empty bundle.
type Bundle struct {
	entries map[string]value
}

// Empty returns a bundle with no entries.
func Empty() Bundle {
	return Bundle{}
}

// New builds a bundle from plain Go values. Accepted types are string, bool,
// []byte, float32/float64 and every signed or unsigned integer type that
// fits in an int64.
func New(entries map[string]any) (Bundle, error) {
	b := NewBuilder()
	for k, v := range entries {
		if err := b.put(k, v); err != nil {
			return Bundle{}, err
		}
	}
	return b.Build(), nil
}

// Len returns the number of entries.
func (b Bundle) Len() int { return len(b.entries) }

func (b Bundle) IsEmpty() bool { return len(b.entries) == 0 }

func (b Bundle) Has(key string) bool {
	_, ok := b.entries[key]
	return ok
}

// Keys returns the keys in sorted order.
func (b Bundle) Keys() []string {
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Kind returns the stored kind for key, or false when absent.
func (b Bundle) Kind(key string) (Kind, bool) {
	v, ok := b.entries[key]
	return v.kind, ok
}

func (b Bundle) lookup(key string, want Kind) (value, bool, error) {
	v, ok := b.entries[key]
	if !ok {
		return value{}, false, nil
	}
	if v.kind != want {
		return value{}, true, errors.Wrapf(ErrTypeMismatch, "key %q holds %s, not %s", key, v.kind, want)
	}
	return v, true, nil
}

// GetString returns the string stored under key. ok is false when the key is
// absent; err wraps ErrTypeMismatch when it holds another kind.
func (b Bundle) GetString(key string) (string, bool, error) {
	v, ok, err := b.lookup(key, KindString)
	return v.s, ok, err
}

func (b Bundle) GetInt(key string) (int64, bool, error) {
	v, ok, err := b.lookup(key, KindInt)
	return v.i, ok, err
}

func (b Bundle) GetFloat(key string) (float64, bool, error) {
	v, ok, err := b.lookup(key, KindFloat)
	return v.f, ok, err
}

func (b Bundle) GetBool(key string) (bool, bool, error) {
	v, ok, err := b.lookup(key, KindBool)
	return v.b, ok, err
}

// GetBytes returns a copy of the byte slice stored under key.
func (b Bundle) GetBytes(key string) ([]byte, bool, error) {
	v, ok, err := b.lookup(key, KindBytes)
	if err != nil || !ok {
		return nil, ok, err
	}
	return bytes.Clone(v.raw), true, nil
}

// Map returns a fresh copy of the entries as plain Go values.
func (b Bundle) Map() map[string]any {
	m := make(map[string]any, len(b.entries))
	for k, v := range b.entries {
		m[k] = v.any()
	}
	return m
}

// Equal reports whether both bundles hold the same key/value set.
func (b Bundle) Equal(o Bundle) bool {
	if len(b.entries) != len(o.entries) {
		return false
	}
	for k, v := range b.entries {
		ov, ok := o.entries[k]
		if !ok || !v.equal(ov) {
			return false
		}
	}
	return true
}

func (b Bundle) String() string {
	if b.IsEmpty() {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range b.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		v := b.entries[k]
		if v.kind == KindBytes {
			fmt.Fprintf(&sb, "%s:<%d bytes>", k, len(v.raw))
			continue
		}
		fmt.Fprintf(&sb, "%s:%v", k, v.any())
	}
	sb.WriteByte('}')
	return sb.String()
}

type wireValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes each entry with its kind so that a decoded bundle is
// Equal to the original.
func (b Bundle) MarshalJSON() ([]byte, error) {
	out := make(map[string]wireValue, len(b.entries))
	for k, v := range b.entries {
		raw, err := json.Marshal(v.wire())
		if err != nil {
			return nil, errors.Wrapf(err, "bundle: encode %q", k)
		}
		out[k] = wireValue{Type: v.kind.String(), Value: raw}
	}
	return json.Marshal(out)
}

// wire is the JSON form of v. JSON has no NaN or infinities, so those floats
// travel as the strings "NaN", "+Inf" and "-Inf".
func (v value) wire() any {
	if v.kind == KindFloat && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	}
	return v.any()
}

func decodeFloat(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || raw[0] != '"' {
		var f float64
		err := json.Unmarshal(raw, &f)
		return f, err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	switch s {
	case "NaN", "+Inf", "-Inf":
		return strconv.ParseFloat(s, 64)
	default:
		return 0, errors.Newf("non-numeric float %q", s)
	}
}

func (b *Bundle) UnmarshalJSON(data []byte) error {
	var in map[string]wireValue
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, "bundle: decode")
	}
	builder := NewBuilder()
	for k, w := range in {
		kind, ok := parseKind(w.Type)
		if !ok {
			return errors.Wrapf(ErrUnsupportedType, "key %q has type %q", k, w.Type)
		}
		var err error
		switch kind {
		case KindString:
			var s string
			err = json.Unmarshal(w.Value, &s)
			builder.PutString(k, s)
		case KindInt:
			var i int64
			err = json.Unmarshal(w.Value, &i)
			builder.PutInt(k, i)
		case KindFloat:
			var f float64
			f, err = decodeFloat(w.Value)
			builder.PutFloat(k, f)
		case KindBool:
			var v bool
			err = json.Unmarshal(w.Value, &v)
			builder.PutBool(k, v)
		case KindBytes:
			var raw []byte
			err = json.Unmarshal(w.Value, &raw)
			builder.PutBytes(k, raw)
		}
		if err != nil {
			return errors.Wrapf(err, "bundle: decode %q", k)
		}
	}
	*b = builder.Build()
	return nil
}
