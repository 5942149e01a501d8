// Package orderedmap provides a string-keyed map that remembers insertion order.
package orderedmap

import "container/list"

type entry[V any] struct {
	key   string
	value V
}

// Map is a string-keyed map whose iteration order is the order keys were
// first inserted. Overwriting a key keeps its position. Not safe for
// concurrent use.
type Map[V any] struct {
	index map[string]*list.Element
	order *list.List
}

// New creates an empty map
func New[V any]() *Map[V] {
	return &Map[V]{
		index: make(map[string]*list.Element),
		order: list.New(),
	}
}

// Get returns the value stored under key
func (m *Map[V]) Get(key string) (V, bool) {
	if el, ok := m.index[key]; ok {
		return el.Value.(*entry[V]).value, true
	}
	var zero V
	return zero, false
}

// Has reports whether key is present
func (m *Map[V]) Has(key string) bool {
	_, ok := m.index[key]
	return ok
}

// Set stores value under key and returns the value it replaced, if any
func (m *Map[V]) Set(key string, value V) (V, bool) {
	if el, ok := m.index[key]; ok {
		e := el.Value.(*entry[V])
		prev := e.value
		e.value = value
		return prev, true
	}
	m.index[key] = m.order.PushBack(&entry[V]{key: key, value: value})
	var zero V
	return zero, false
}

// Delete removes key and returns the value it held
func (m *Map[V]) Delete(key string) (V, bool) {
	el, ok := m.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	delete(m.index, key)
	m.order.Remove(el)
	return el.Value.(*entry[V]).value, true
}

// Len returns the number of keys
func (m *Map[V]) Len() int {
	return len(m.index)
}

// Keys returns all keys in insertion order
func (m *Map[V]) Keys() []string {
	keys := make([]string, 0, len(m.index))
	for el := m.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[V]).key)
	}
	return keys
}

// Range calls fn for every entry in insertion order until fn returns false.
// fn must not add or remove keys.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	for el := m.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry[V])
		if !fn(e.key, e.value) {
			return
		}
	}
}

// Clear removes every key
func (m *Map[V]) Clear() {
	m.index = make(map[string]*list.Element)
	m.order.Init()
}
