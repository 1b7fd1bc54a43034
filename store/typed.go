package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// Item is a single JSON-encoded value stored under a fixed key.
type Item[T any] struct {
	key []byte
}

func NewItem[T any](key string) Item[T] {
	return Item[T]{key: []byte(key)}
}

func (i Item[T]) Load(kv KV) (T, error) {
	var out T
	raw, err := kv.Get(i.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return out, fmt.Errorf("%s: %w", i.key, ErrNotFound)
		}
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s: %w", i.key, err)
	}
	return out, nil
}

// MayLoad returns ok=false instead of ErrNotFound.
func (i Item[T]) MayLoad(kv KV) (T, bool, error) {
	out, err := i.Load(kv)
	if errors.Is(err, ErrNotFound) {
		return out, false, nil
	}
	return out, err == nil, err
}

func (i Item[T]) Save(kv KV, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", i.key, err)
	}
	return kv.Put(i.key, raw)
}

func (i Item[T]) Remove(kv KV) error {
	return kv.Delete(i.key)
}

func (i Item[T]) Exists(kv KV) (bool, error) {
	return kv.Has(i.key)
}

// Map is a namespace of JSON-encoded values keyed by raw bytes.
type Map[V any] struct {
	namespace []byte
}

func NewMap[V any](namespace string) Map[V] {
	return Map[V]{namespace: StringKey(namespace)}
}

func (m Map[V]) key(k []byte) []byte {
	return JoinKey(m.namespace, k)
}

func (m Map[V]) Load(kv KV, k []byte) (V, error) {
	var out V
	raw, err := kv.Get(m.key(k))
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode map value: %w", err)
	}
	return out, nil
}

func (m Map[V]) Has(kv KV, k []byte) (bool, error) {
	return kv.Has(m.key(k))
}

func (m Map[V]) Save(kv KV, k []byte, v V) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode map value: %w", err)
	}
	return kv.Put(m.key(k), raw)
}

func (m Map[V]) Remove(kv KV, k []byte) error {
	return kv.Delete(m.key(k))
}

// Range visits entries whose key starts with prefix. The key handed to fn
// has the namespace stripped.
func (m Map[V]) Range(kv KV, prefix []byte, fn func(k []byte, v V) bool) error {
	var decodeErr error
	err := kv.Iterate(m.key(prefix), func(k, raw []byte) bool {
		var v V
		if decodeErr = json.Unmarshal(raw, &v); decodeErr != nil {
			return false
		}
		return fn(k[len(m.namespace):], v)
	})
	if err != nil {
		return err
	}
	return decodeErr
}

// StringKey length-prefixes s so that composite keys cannot collide.
func StringKey(s string) []byte {
	out := make([]byte, 2, 2+len(s))
	binary.BigEndian.PutUint16(out, uint16(len(s)))
	return append(out, s...)
}

// Uint64Key encodes n big-endian so keys sort numerically.
func Uint64Key(n uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, n)
	return out
}

func JoinKey(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
