package book

// State is how far generation has progressed. It only moves forward.
type State int

const (
	Empty State = iota
	HasMetadata
	HasCharacters
	HasOutline
	HasText
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case HasMetadata:
		return "metadata"
	case HasCharacters:
		return "characters"
	case HasOutline:
		return "outline"
	case HasText:
		return "text"
	default:
		return "unknown"
	}
}

// State reports the furthest stage whose field and all earlier fields are set.
func (d *Document) State() State {
	switch {
	case d.metadata == nil:
		return Empty
	case d.characters == nil:
		return HasMetadata
	case d.outline == nil:
		return HasCharacters
	case d.text == nil:
		return HasOutline
	default:
		return HasText
	}
}
