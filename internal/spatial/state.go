package spatial

import "fmt"

// State is the lifecycle flag of an entry. States are ordered; an entry only
// ever moves up the order and Delete is terminal.
type State uint8

const (
	Unmodified State = iota
	Visible          // emitted for review without changes
	Modify           // emitted with action=modify
	Delete           // emitted with action=delete
)

func (s State) String() string {
	switch s {
	case Unmodified:
		return "unmodified"
	case Visible:
		return "visible"
	case Modify:
		return "modify"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Apply returns the state after requesting next from s
func (s State) Apply(next State) State {
	if s == Delete || next <= s {
		return s
	}
	return next
}

// Action returns the changeset action marker, empty for states that carry
// none
func (s State) Action() string {
	switch s {
	case Modify:
		return "modify"
	case Delete:
		return "delete"
	}
	return ""
}
