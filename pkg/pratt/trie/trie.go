// Package trie implements a rune trie used to look up operator symbols by
// text. Lookups return the longest registered key that prefixes the input, so
// "<=" wins over "<" when both are registered.
package trie

import (
	"sort"
	"unicode/utf8"
)

type node[V any] struct {
	children map[rune]*node[V]
	value    V
	terminal bool
}

// Trie maps string keys to values. The zero value is ready to use. A Trie is
// not safe for concurrent writes; once built it may be read concurrently.
type Trie[V any] struct {
	root node[V]
	size int
}

// Insert adds or replaces the value stored under key. It reports whether the
// key was new.
func (t *Trie[V]) Insert(key string, value V) bool {
	n := &t.root
	for _, r := range key {
		if n.children == nil {
			n.children = make(map[rune]*node[V])
		}
		child, ok := n.children[r]
		if !ok {
			child = &node[V]{}
			n.children[r] = child
		}
		n = child
	}
	added := !n.terminal
	n.value = value
	n.terminal = true
	if added {
		t.size++
	}
	return added
}

// Get returns the value stored under exactly key.
func (t *Trie[V]) Get(key string) (V, bool) {
	n := &t.root
	for _, r := range key {
		child, ok := n.children[r]
		if !ok {
			var zero V
			return zero, false
		}
		n = child
	}
	return n.value, n.terminal
}

// MatchPrefix returns the longest key that is a prefix of s, with its value.
// The empty key only matches if it was inserted.
func (t *Trie[V]) MatchPrefix(s string) (key string, value V, ok bool) {
	n := &t.root
	if n.terminal {
		value, ok = n.value, true
	}
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		child, found := n.children[r]
		if !found {
			break
		}
		n = child
		i += size
		if n.terminal {
			key = s[:i]
			value, ok = n.value, true
		}
	}
	return key, value, ok
}

// Len returns the number of keys.
func (t *Trie[V]) Len() int {
	return t.size
}

// Keys returns every key in lexical order.
func (t *Trie[V]) Keys() []string {
	keys := make([]string, 0, t.size)
	var walk func(n *node[V], prefix []rune)
	walk = func(n *node[V], prefix []rune) {
		if n.terminal {
			keys = append(keys, string(prefix))
		}
		for r, child := range n.children {
			walk(child, append(prefix, r))
		}
	}
	walk(&t.root, nil)
	sort.Strings(keys)
	return keys
}
