// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cache

// lruNode is a node in a doubly-linked LRU list.
type lruNode[V any] struct {
	value V
	prev  *lruNode[V]
	next  *lruNode[V]
}

// lruList is a doubly-linked list ordered by use.
// The head is the most recently used, the tail the least recently used.
// The list is not thread-safe; callers must handle synchronization.
type lruList[V any] struct {
	head *lruNode[V]
	tail *lruNode[V]
	len  int
}

// Len returns the number of nodes in the list.
func (l *lruList[V]) Len() int {
	return l.len
}

// PushFront adds v as the most recently used value and returns its node.
func (l *lruList[V]) PushFront(v V) *lruNode[V] {
	node := &lruNode[V]{value: v}
	l.linkFront(node)
	return node
}

// MoveToFront marks node as the most recently used.
func (l *lruList[V]) MoveToFront(node *lruNode[V]) {
	if node == nil || node == l.head {
		return
	}
	l.unlink(node)
	l.linkFront(node)
}

// Remove removes node from the list.
func (l *lruList[V]) Remove(node *lruNode[V]) {
	if node == nil {
		return
	}
	l.unlink(node)
}

// Back returns the least recently used node, or nil.
func (l *lruList[V]) Back() *lruNode[V] {
	return l.tail
}

// Prev returns the node used just after n, walking towards the head.
func (n *lruNode[V]) Prev() *lruNode[V] {
	return n.prev
}

func (l *lruList[V]) linkFront(node *lruNode[V]) {
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.len++
}

// unlink removes a node from the list and clears its links.
func (l *lruList[V]) unlink(node *lruNode[V]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	l.len--
}
