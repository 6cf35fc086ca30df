// Completion: 100% - Link map
package main

// LinkMap is a singly-linked list of loaded DSOs in search order, mirroring
// the original's link_map: the main program first, then its dependency
// (§4.5, §4.6). Symbol lookups for an ordinary relocation start at the
// head; R_X86_64_COPY relocations start at head.Next, since the main
// program's own definition of the symbol is the copy destination and must
// not shadow the dependency's definition.
type LinkMap struct {
	DSO  *DSO
	Next *LinkMap
}

// NewLinkMap builds the link map from an ordered list of DSOs, head first.
func NewLinkMap(dsos ...*DSO) *LinkMap {
	var head, tail *LinkMap
	for _, d := range dsos {
		node := &LinkMap{DSO: d}
		if head == nil {
			head = node
		} else {
			tail.Next = node
		}
		tail = node
	}
	return head
}
