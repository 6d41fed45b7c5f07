package bundle

import (
	"bytes"
	"math"

	"github.com/cockroachdb/errors"
)

// Builder accumulates entries for a Bundle. Later puts of the same key win.
// A Builder can keep being used after Build; bundles already built are not
// affected.
type Builder struct {
	entries map[string]value
}

func NewBuilder() *Builder {
	return &Builder{entries: make(map[string]value)}
}

func (b *Builder) PutString(key, v string) *Builder {
	b.entries[key] = value{kind: KindString, s: v}
	return b
}

func (b *Builder) PutInt(key string, v int64) *Builder {
	b.entries[key] = value{kind: KindInt, i: v}
	return b
}

func (b *Builder) PutFloat(key string, v float64) *Builder {
	b.entries[key] = value{kind: KindFloat, f: v}
	return b
}

func (b *Builder) PutBool(key string, v bool) *Builder {
	b.entries[key] = value{kind: KindBool, b: v}
	return b
}

// PutBytes stores a copy of v.
func (b *Builder) PutBytes(key string, v []byte) *Builder {
	b.entries[key] = value{kind: KindBytes, raw: bytes.Clone(v)}
	return b
}

// PutAll copies every entry of src into the builder.
func (b *Builder) PutAll(src Bundle) *Builder {
	for k, v := range src.entries {
		b.entries[k] = v
	}
	return b
}

func (b *Builder) put(key string, v any) error {
	switch x := v.(type) {
	case string:
		b.PutString(key, x)
	case bool:
		b.PutBool(key, x)
	case []byte:
		b.PutBytes(key, x)
	case float64:
		b.PutFloat(key, x)
	case float32:
		b.PutFloat(key, float64(x))
	case int:
		b.PutInt(key, int64(x))
	case int8:
		b.PutInt(key, int64(x))
	case int16:
		b.PutInt(key, int64(x))
	case int32:
		b.PutInt(key, int64(x))
	case int64:
		b.PutInt(key, x)
	case uint8:
		b.PutInt(key, int64(x))
	case uint16:
		b.PutInt(key, int64(x))
	case uint32:
		b.PutInt(key, int64(x))
	case uint:
		if uint64(x) > math.MaxInt64 {
			return errors.Wrapf(ErrUnsupportedType, "key %q: %d overflows int64", key, x)
		}
		b.PutInt(key, int64(x))
	case uint64:
		if x > math.MaxInt64 {
			return errors.Wrapf(ErrUnsupportedType, "key %q: %d overflows int64", key, x)
		}
		b.PutInt(key, int64(x))
	default:
		return errors.Wrapf(ErrUnsupportedType, "key %q: %T", key, v)
	}
	return nil
}

// Build snapshots the current entries into an immutable Bundle.
func (b *Builder) Build() Bundle {
	if len(b.entries) == 0 {
		return Bundle{}
	}
	snapshot := make(map[string]value, len(b.entries))
	for k, v := range b.entries {
		snapshot[k] = v
	}
	return Bundle{entries: snapshot}
}
