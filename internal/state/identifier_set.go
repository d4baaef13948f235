package state

import "sort"

// IdentifierSet is a set of pull request identifiers.
type IdentifierSet struct {
	members map[int]struct{}
}

// NewIdentifierSet returns a set holding identifiers.
func NewIdentifierSet(identifiers ...int) IdentifierSet {
	set := IdentifierSet{members: make(map[int]struct{}, len(identifiers))}
	for _, identifier := range identifiers {
		set.members[identifier] = struct{}{}
	}
	return set
}

// Contains reports whether identifier is a member.
func (set IdentifierSet) Contains(identifier int) bool {
	_, exists := set.members[identifier]
	return exists
}

// Add inserts identifier and reports whether it was newly added.
func (set *IdentifierSet) Add(identifier int) bool {
	if set.members == nil {
		set.members = map[int]struct{}{}
	}
	if _, exists := set.members[identifier]; exists {
		return false
	}
	set.members[identifier] = struct{}{}
	return true
}

// Len returns the number of members.
func (set IdentifierSet) Len() int {
	return len(set.members)
}

// Sorted returns the members in ascending order.
func (set IdentifierSet) Sorted() []int {
	identifiers := make([]int, 0, len(set.members))
	for identifier := range set.members {
		identifiers = append(identifiers, identifier)
	}
	sort.Ints(identifiers)
	return identifiers
}

// Clone returns an independent copy of the set.
func (set IdentifierSet) Clone() IdentifierSet {
	return NewIdentifierSet(set.Sorted()...)
}
