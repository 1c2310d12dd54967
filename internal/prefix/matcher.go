// Package prefix answers "which registered prefix of s is longest" in
// O(log N) per query.
//
// The structure follows Lampson, Srinivasan and Varghese, "IP Lookups using
// Multiway and Multicolumn Search" (1998), adapted from bitstrings to
// strings. Each prefix contributes a low and a high boundary key made of its
// bytes plus a marker, with
//
//	lowMarker < queryMarker < any byte < highMarker
//
// so a query never compares equal to a boundary and each leaf needs only one
// value.
package prefix

import (
	"slices"
)

const (
	lowMarker   int32 = -10
	queryMarker int32 = -1
	highMarker  int32 = 0x100 // above every byte
)

type key []int32

// makeKey encodes s byte by byte so that invalid UTF-8 never collapses two
// distinct strings onto one key.
func makeKey(s string, marker int32) key {
	k := make(key, 0, len(s)+1)
	for i := 0; i < len(s); i++ {
		k = append(k, int32(s[i]))
	}
	return append(k, marker)
}

// compareKeys orders keys element-wise, shorter first on a common prefix.
func compareKeys(a, b key) int {
	return slices.Compare(a, b)
}

type node struct {
	key   key
	leaf  bool
	value string // leaf only
	found bool   // leaf only; false when no prefix encloses the range
	left  *node
	right *node
}

// Matcher finds the maximal registered prefix of a query string.
// A built Matcher is read-only and safe for concurrent Match calls.
type Matcher struct {
	prefixes []string
	root     *node
}

// New returns a Matcher over prefixes. Duplicates are ignored.
func New(prefixes ...string) *Matcher {
	m := &Matcher{}
	m.Add(prefixes...)
	return m
}

// Add registers more prefixes and rebuilds the search tree.
func (m *Matcher) Add(prefixes ...string) {
	for _, p := range prefixes {
		if !slices.Contains(m.prefixes, p) {
			m.prefixes = append(m.prefixes, p)
		}
	}
	m.rebuild()
}

// Prefixes returns the registered prefixes in registration order.
func (m *Matcher) Prefixes() []string {
	return slices.Clone(m.prefixes)
}

type boundary struct {
	key    key
	low    bool
	prefix string
}

func (m *Matcher) rebuild() {
	m.root = nil
	if len(m.prefixes) == 0 {
		return
	}

	bounds := make([]boundary, 0, 2*len(m.prefixes))
	for _, p := range m.prefixes {
		bounds = append(bounds,
			boundary{key: makeKey(p, lowMarker), low: true, prefix: p},
			boundary{key: makeKey(p, highMarker), low: false, prefix: p},
		)
	}
	slices.SortFunc(bounds, func(a, b boundary) int {
		return compareKeys(a.key, b.key)
	})

	// A query that lands just below a boundary belongs to the range the
	// boundary closes: the enclosing prefix for a low key, the prefix itself
	// for a high key.
	leaves := make([]*node, 0, len(bounds))
	var stack []string
	for _, b := range bounds {
		leaf := &node{key: b.key, leaf: true}
		if b.low {
			if len(stack) > 0 {
				leaf.value, leaf.found = stack[len(stack)-1], true
			}
			stack = append(stack, b.prefix)
		} else {
			stack = stack[:len(stack)-1]
			leaf.value, leaf.found = b.prefix, true
		}
		leaves = append(leaves, leaf)
	}

	m.root, _ = buildTree(leaves)
}

// buildTree returns a balanced tree over leaves and its maximal key.
func buildTree(leaves []*node) (*node, key) {
	if len(leaves) == 1 {
		return leaves[0], leaves[0].key
	}
	mid := len(leaves) / 2
	left, leftMax := buildTree(leaves[:mid])
	right, rightMax := buildTree(leaves[mid:])
	return &node{key: leftMax, left: left, right: right}, rightMax
}

// Match returns the longest registered prefix of s. The boolean is false
// when no registered prefix is a prefix of s.
func (m *Matcher) Match(s string) (string, bool) {
	if m.root == nil {
		return "", false
	}
	q := makeKey(s, queryMarker)
	n := m.root
	for !n.leaf {
		if compareKeys(q, n.key) > 0 {
			n = n.right
		} else {
			n = n.left
		}
	}
	// Only the rightmost leaf can be below the query; everything past it
	// lies outside every range.
	if compareKeys(q, n.key) < 0 && n.found {
		return n.value, true
	}
	return "", false
}
