package atomo

import (
	"fmt"
	"sort"
)

// Table is a typed view over one declared table, bound to a selector. It
// is cheap to construct and is typically created fresh inside each
// mutation/query closure rather than stored.
type Table[K any, V any] struct {
	sel  selector
	meta TableMeta
}

// GetTable binds a typed table view to name against sel. It panics if name
// was not declared on the Builder — a programming error, not a runtime
// condition callers should handle.
func GetTable[K any, V any](sel selector, name string) *Table[K, V] {
	meta, ok := sel.owner().tableByName(name)
	if !ok {
		panic(fmt.Sprintf("atomo: table %q was not declared on this database", name))
	}
	return &Table[K, V]{sel: sel, meta: meta}
}

func (t *Table[K, V]) encodeKey(k K) []byte {
	b, err := t.sel.owner().codec.Encode(k)
	if err != nil {
		panic(&FatalError{Err: fmt.Errorf("table %s: encode key: %w", t.meta.Name, err)})
	}
	return b
}

func (t *Table[K, V]) decodeKey(raw []byte) K {
	var k K
	if err := t.sel.owner().codec.Decode(raw, &k); err != nil {
		panic(&FatalError{Err: fmt.Errorf("table %s: decode key: %w", t.meta.Name, err)})
	}
	return k
}

func (t *Table[K, V]) decodeValue(raw []byte) V {
	var v V
	if err := t.sel.owner().codec.Decode(raw, &v); err != nil {
		panic(&FatalError{Err: fmt.Errorf("table %s: decode value: %w", t.meta.Name, err)})
	}
	return v
}

// Get returns the value stored under k, if any.
func (t *Table[K, V]) Get(k K) (V, bool) {
	raw, ok := t.sel.getRaw(t.meta.ID, t.encodeKey(k))
	if !ok {
		var zero V
		return zero, false
	}
	return t.decodeValue(raw), true
}

// Contains reports whether k has a value without decoding it.
func (t *Table[K, V]) Contains(k K) bool {
	_, ok := t.sel.getRaw(t.meta.ID, t.encodeKey(k))
	return ok
}

// Insert stages k -> v. Visible to subsequent Get/Contains/Keys calls
// against the same selector immediately; visible to other readers only
// once the enclosing DB.Run commits (or, for a SubSelector, once Flush is
// called and the enclosing Run commits).
func (t *Table[K, V]) Insert(k K, v V) {
	val, err := t.sel.owner().codec.Encode(v)
	if err != nil {
		panic(&FatalError{Err: fmt.Errorf("table %s: encode value: %w", t.meta.Name, err)})
	}
	t.sel.setRaw(t.meta.ID, t.encodeKey(k), batchEntry{value: val})
}

// Remove stages a tombstone for k.
func (t *Table[K, V]) Remove(k K) {
	t.sel.setRaw(t.meta.ID, t.encodeKey(k), batchEntry{removed: true})
}

// Keys iterates every key currently visible through t, in ascending
// encoded-key order. It panics if the table was not declared with
// WithIter(): iteration support costs the backend a full table scan, so
// it is opt-in per table.
func (t *Table[K, V]) Keys(yield func(K) bool) {
	if !t.meta.Iter {
		panic(fmt.Sprintf("atomo: table %q is not iteration-enabled", t.meta.Name))
	}
	var raws [][]byte
	t.sel.iterRaw(t.meta.ID, func(key []byte) bool {
		cp := make([]byte, len(key))
		copy(cp, key)
		raws = append(raws, cp)
		return true
	})
	sort.Slice(raws, func(i, j int) bool {
		return string(raws[i]) < string(raws[j])
	})
	for _, raw := range raws {
		if !yield(t.decodeKey(raw)) {
			return
		}
	}
}
