package encoder

// Season is the binary season code
type Season int

const (
	Dry Season = iota
	Wet
)

// ParseSeason maps the UI value to a season. Only the exact string "Wet" is wet.
func ParseSeason(s string) Season {
	if s == "Wet" {
		return Wet
	}
	return Dry
}

func (s Season) String() string {
	if s == Wet {
		return "Wet"
	}
	return "Dry"
}
