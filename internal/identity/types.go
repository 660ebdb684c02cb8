// Package identity resolves the set of enrolled people the engine is
// allowed to recognize. The set lives in MySQL, with a local JSON cache
// so the engine keeps working when the database is unreachable.
package identity

// Identity is one enrolled person: a stable id, a display name and a
// fixed-length face embedding.
type Identity struct {
	ID          string
	DisplayName string
	Embedding   []float64
}

// Name returns the display name, falling back to the id when the
// enrollment record carries no name.
func (i *Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.ID
}

// KnownSet is an ordered snapshot of enrolled identities. It is rebuilt
// wholesale on every refresh and never mutated in place, so a match in
// progress always reads a consistent set.
type KnownSet []Identity
