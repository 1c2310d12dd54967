package prefix

// Table maps registered prefixes to payloads and looks up the payload of the
// longest prefix of a query.
type Table[V any] struct {
	matcher *Matcher
	values  map[string]V
}

// NewTable builds a Table from a prefix → payload mapping.
func NewTable[V any](entries map[string]V) *Table[V] {
	t := &Table[V]{matcher: New(), values: make(map[string]V, len(entries))}
	t.Set(entries)
	return t
}

// Set adds or replaces entries and rebuilds the lookup structure once.
func (t *Table[V]) Set(entries map[string]V) {
	prefixes := make([]string, 0, len(entries))
	for p, v := range entries {
		t.values[p] = v
		prefixes = append(prefixes, p)
	}
	t.matcher.Add(prefixes...)
}

// Lookup returns the longest registered prefix of s and its payload.
func (t *Table[V]) Lookup(s string) (string, V, bool) {
	p, ok := t.matcher.Match(s)
	if !ok {
		var zero V
		return "", zero, false
	}
	return p, t.values[p], true
}

// Len returns the number of registered prefixes.
func (t *Table[V]) Len() int {
	return len(t.values)
}
