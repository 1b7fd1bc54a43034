package store

import (
	"bytes"
	"sort"
)

// Branch is a copy-on-write overlay over a parent KV. Writes stay in memory
// until Write flushes them to the parent. Dropping a Branch discards them.
type Branch struct {
	parent KV
	writes map[string][]byte
	// deleted keys are present in writes with a nil value
}

func NewBranch(parent KV) *Branch {
	return &Branch{parent: parent, writes: make(map[string][]byte)}
}

func (b *Branch) Get(key []byte) ([]byte, error) {
	if v, ok := b.writes[string(key)]; ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return append([]byte(nil), v...), nil
	}
	return b.parent.Get(key)
}

func (b *Branch) Has(key []byte) (bool, error) {
	if v, ok := b.writes[string(key)]; ok {
		return v != nil, nil
	}
	return b.parent.Has(key)
}

func (b *Branch) Put(key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	b.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

func (b *Branch) Delete(key []byte) error {
	b.writes[string(key)] = nil
	return nil
}

func (b *Branch) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	type entry struct{ key, value []byte }
	var base []entry
	err := b.parent.Iterate(prefix, func(k, v []byte) bool {
		if _, shadowed := b.writes[string(k)]; !shadowed {
			base = append(base, entry{k, v})
		}
		return true
	})
	if err != nil {
		return err
	}
	var overlay []entry
	for k, v := range b.writes {
		if v != nil && bytes.HasPrefix([]byte(k), prefix) {
			overlay = append(overlay, entry{[]byte(k), append([]byte(nil), v...)})
		}
	}
	sort.Slice(overlay, func(i, j int) bool { return bytes.Compare(overlay[i].key, overlay[j].key) < 0 })

	i, j := 0, 0
	for i < len(base) || j < len(overlay) {
		var next entry
		if j >= len(overlay) || (i < len(base) && bytes.Compare(base[i].key, overlay[j].key) < 0) {
			next = base[i]
			i++
		} else {
			next = overlay[j]
			j++
		}
		if !fn(next.key, next.value) {
			return nil
		}
	}
	return nil
}

// Write flushes the buffered writes to the parent in key order.
func (b *Branch) Write() error {
	keys := make([]string, 0, len(b.writes))
	for k := range b.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := b.writes[k]
		var err error
		if v == nil {
			err = b.parent.Delete([]byte(k))
		} else {
			err = b.parent.Put([]byte(k), v)
		}
		if err != nil {
			return err
		}
	}
	b.writes = make(map[string][]byte)
	return nil
}

type prefixKV struct {
	parent KV
	prefix []byte
}

// Prefix scopes kv to keys under prefix. Keys passed to and returned from the
// scoped view do not include the prefix.
func Prefix(kv KV, prefix []byte) KV {
	return &prefixKV{parent: kv, prefix: append([]byte(nil), prefix...)}
}

func (p *prefixKV) key(k []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(k))
	out = append(out, p.prefix...)
	return append(out, k...)
}

func (p *prefixKV) Get(key []byte) ([]byte, error) { return p.parent.Get(p.key(key)) }
func (p *prefixKV) Has(key []byte) (bool, error)   { return p.parent.Has(p.key(key)) }
func (p *prefixKV) Put(key, value []byte) error    { return p.parent.Put(p.key(key), value) }
func (p *prefixKV) Delete(key []byte) error        { return p.parent.Delete(p.key(key)) }

func (p *prefixKV) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	return p.parent.Iterate(p.key(prefix), func(k, v []byte) bool {
		return fn(k[len(p.prefix):], v)
	})
}

type readOnlyKV struct {
	KV
}

// ReadOnly wraps kv so that writes fail. Queries run against it.
func ReadOnly(kv KV) KV {
	return readOnlyKV{KV: kv}
}

func (readOnlyKV) Put(_, _ []byte) error { return errReadOnly }
func (readOnlyKV) Delete(_ []byte) error { return errReadOnly }
