package entity

import (
	"sort"
	"strings"
)

// Tags is an insertion-ordered string map. Keys are unique; unknown tags
// pass through untouched.
type Tags struct {
	keys []string
	vals map[string]string
}

// NewTags creates tags from key/value pairs
func NewTags(kv ...string) *Tags {
	t := &Tags{vals: make(map[string]string, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		t.Set(kv[i], kv[i+1])
	}
	return t
}

// TagsFromMap creates tags from a map, ordering keys alphabetically so the
// result is deterministic
func TagsFromMap(m map[string]string) *Tags {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := &Tags{keys: keys, vals: make(map[string]string, len(m))}
	for k, v := range m {
		t.vals[k] = v
	}
	return t
}

// Get returns the value of key, or empty string
func (t *Tags) Get(key string) string {
	if t == nil {
		return ""
	}
	return t.vals[key]
}

// Lookup returns the value of key and whether it is present
func (t *Tags) Lookup(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t.vals[key]
	return v, ok
}

// Has reports whether key is present
func (t *Tags) Has(key string) bool {
	_, ok := t.Lookup(key)
	return ok
}

// Set stores value under key. Values are trimmed. Returns true if anything
// changed.
func (t *Tags) Set(key, value string) bool {
	value = strings.TrimSpace(value)
	if t.vals == nil {
		t.vals = make(map[string]string)
	}
	old, ok := t.vals[key]
	if ok && old == value {
		return false
	}
	if !ok {
		t.keys = append(t.keys, key)
	}
	t.vals[key] = value
	return true
}

// Delete removes key. Returns true if it was present.
func (t *Tags) Delete(key string) bool {
	if t == nil {
		return false
	}
	if _, ok := t.vals[key]; !ok {
		return false
	}
	delete(t.vals, key)
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of tags
func (t *Tags) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Keys returns the keys in insertion order
func (t *Tags) Keys() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.keys...)
}

// Each calls fn for every tag in insertion order
func (t *Tags) Each(fn func(key, value string)) {
	if t == nil {
		return
	}
	for _, k := range t.keys {
		fn(k, t.vals[k])
	}
}

// Map returns a copy of the tags as a plain map
func (t *Tags) Map() map[string]string {
	m := make(map[string]string, t.Len())
	t.Each(func(k, v string) { m[k] = v })
	return m
}

// Clone returns a deep copy
func (t *Tags) Clone() *Tags {
	c := &Tags{vals: make(map[string]string, t.Len())}
	t.Each(func(k, v string) {
		c.keys = append(c.keys, k)
		c.vals[k] = v
	})
	return c
}
