package ir

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Entry is one key/value pair of an ordered mapping.
type Entry struct {
	Key   string
	Value any
}

// Mapping is implemented by ordered keyed collections.
type Mapping interface {
	Entries() []Entry
}

// Assoc is an insertion-ordered mapping from normalized key (see KeyOf) to
// value. The zero value is not usable; use NewAssoc.
type Assoc[V any] struct {
	keys []string
	vals map[string]V
}

// NewAssoc creates an empty Assoc.
func NewAssoc[V any]() *Assoc[V] {
	return &Assoc[V]{vals: make(map[string]V)}
}

// Len returns the number of entries.
func (a *Assoc[V]) Len() int { return len(a.keys) }

// Keys returns the keys in order.
func (a *Assoc[V]) Keys() []string { return slices.Clone(a.keys) }

// Has reports whether key k is present.
func (a *Assoc[V]) Has(k string) bool {
	_, ok := a.vals[k]
	return ok
}

// Get returns the value stored under k.
func (a *Assoc[V]) Get(k string) (V, bool) {
	v, ok := a.vals[k]
	return v, ok
}

// Set stores v under k. A new key is appended; an existing key keeps its
// position and gets the new value.
func (a *Assoc[V]) Set(k string, v V) {
	if _, ok := a.vals[k]; !ok {
		a.keys = append(a.keys, k)
	}
	a.vals[k] = v
}

// Insert stores v under k at position i. An existing entry for k is moved.
func (a *Assoc[V]) Insert(i int, k string, v V) {
	if _, ok := a.vals[k]; ok {
		a.Delete(k)
	}
	i = max(0, min(i, len(a.keys)))
	a.keys = slices.Insert(a.keys, i, k)
	a.vals[k] = v
}

// Delete removes k.
func (a *Assoc[V]) Delete(k string) {
	if _, ok := a.vals[k]; !ok {
		return
	}
	delete(a.vals, k)
	a.keys = slices.DeleteFunc(a.keys, func(s string) bool { return s == k })
}

// At returns the entry at position i.
func (a *Assoc[V]) At(i int) (string, V) {
	k := a.keys[i]
	return k, a.vals[k]
}

// Values returns the values in order.
func (a *Assoc[V]) Values() []V {
	out := make([]V, len(a.keys))
	for i, k := range a.keys {
		out[i] = a.vals[k]
	}
	return out
}

// Truncate keeps the first n entries.
func (a *Assoc[V]) Truncate(n int) {
	if n < 0 || n >= len(a.keys) {
		return
	}
	for _, k := range a.keys[n:] {
		delete(a.vals, k)
	}
	a.keys = a.keys[:n]
}

// Entries implements Mapping.
func (a *Assoc[V]) Entries() []Entry {
	out := make([]Entry, len(a.keys))
	for i, k := range a.keys {
		out[i] = Entry{Key: k, Value: a.vals[k]}
	}
	return out
}

// MarshalJSON encodes the Assoc as a JSON object in insertion order.
func (a *Assoc[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(a.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
