package cell

// Identity holds an actor's name, address, parent address, and
// name-to-address mapping of its children. It is mutated only by protocol
// handlers; behavior code observes copies and any mutation it makes is
// discarded when the invocation returns.
type Identity struct {
	// Name is the actor's name within its parent.
	Name string

	// Path is the actor's own address, an opaque token meaningful only to
	// the host's routing layer.
	Path string

	// Parent is the parent actor's address, empty for root actors.
	Parent string

	// Children maps child names to child addresses.
	Children map[string]string
}

// Snapshot returns an independent copy of the identity, including a deep
// copy of the children mapping.
func (id Identity) Snapshot() Identity {
	snap := id
	if id.Children != nil {
		snap.Children = make(map[string]string, len(id.Children))
		for name, address := range id.Children {
			snap.Children[name] = address
		}
	}
	return snap
}

// Restore overwrites the identity with a previously captured snapshot.
func (id *Identity) Restore(snap Identity) {
	*id = snap
}

// addChild records a child address under the given name.
func (id *Identity) addChild(name, address string) {
	if id.Children == nil {
		id.Children = make(map[string]string)
	}
	id.Children[name] = address
}

// removeChild deletes every child entry whose address matches. Removal is
// keyed on the address because stop notifications carry the child address,
// not the name it was spawned under.
func (id *Identity) removeChild(address string) {
	for name, childAddress := range id.Children {
		if childAddress == address {
			delete(id.Children, name)
		}
	}
}
