package arbor

// freeNode links one unallocated slot to its neighbours in the free list.
type freeNode struct {
	prev, next Entity
	linked     bool
}

// freeList is an intrusive doubly-linked list over slot indices. Every
// unallocated slot below capacity appears in it exactly once.
type freeList struct {
	nodes []freeNode
	head  Entity
	size  int
}

// build relinks every slot whose flags lack CmpAllocated. The scan runs in
// reverse so the head ends up at the lowest free index.
func (l *freeList) build(flags []Cmp) {
	if cap(l.nodes) >= len(flags) {
		l.nodes = l.nodes[:len(flags)]
		clear(l.nodes)
	} else {
		l.nodes = make([]freeNode, len(flags))
	}
	l.head = NoEntity
	l.size = 0
	for i := len(flags) - 1; i >= 0; i-- {
		if flags[i]&CmpAllocated == 0 {
			l.push(Entity(i))
		}
	}
}

// push links e at the head.
func (l *freeList) push(e Entity) {
	n := &l.nodes[e]
	if n.linked {
		return
	}
	n.prev = NoEntity
	n.next = l.head
	n.linked = true
	if l.head != NoEntity {
		l.nodes[l.head].prev = e
	}
	l.head = e
	l.size++
}

// pop unlinks and returns the head.
func (l *freeList) pop() (Entity, bool) {
	if l.head == NoEntity {
		return NoEntity, false
	}
	e := l.head
	l.unlink(e)
	return e, true
}

// unlink removes e from anywhere in the list. It is a no-op if e is not linked.
func (l *freeList) unlink(e Entity) {
	n := &l.nodes[e]
	if !n.linked {
		return
	}
	if n.prev != NoEntity {
		l.nodes[n.prev].next = n.next
	} else {
		l.head = n.next
	}
	if n.next != NoEntity {
		l.nodes[n.next].prev = n.prev
	}
	*n = freeNode{prev: NoEntity, next: NoEntity}
	l.size--
}

func (l *freeList) contains(e Entity) bool {
	return int(e) < len(l.nodes) && l.nodes[e].linked
}

// walk calls fn for every linked slot from the head until fn returns false.
func (l *freeList) walk(fn func(Entity) bool) {
	for e := l.head; e != NoEntity; e = l.nodes[e].next {
		if !fn(e) {
			return
		}
	}
}

// firstExcept returns the first linked slot that is neither a nor b.
func (l *freeList) firstExcept(a, b Entity) Entity {
	for e := l.head; e != NoEntity; e = l.nodes[e].next {
		if e != a && e != b {
			return e
		}
	}
	return NoEntity
}
