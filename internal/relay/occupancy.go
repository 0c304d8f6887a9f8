package relay

import (
	"sort"
	"strings"
)

// Occupancy is a snapshot of the room members by role. Users holds the
// members with neither operator nor voice status.
type Occupancy struct {
	Operators []string
	Voiced    []string
	Users     []string
}

// Empty reports whether the snapshot lists nobody
func (o Occupancy) Empty() bool {
	return len(o.Operators) == 0 && len(o.Voiced) == 0 && len(o.Users) == 0
}

// Sorted returns a copy with every role list sorted
func (o Occupancy) Sorted() Occupancy {
	return Occupancy{
		Operators: sortedCopy(o.Operators),
		Voiced:    sortedCopy(o.Voiced),
		Users:     sortedCopy(o.Users),
	}
}

// Format renders the listing sent in reply to /users
func (o Occupancy) Format() string {
	var b strings.Builder
	b.WriteString("Operators:\n")
	b.WriteString(strings.Join(o.Operators, ", "))
	b.WriteString("\nModerators:\n")
	b.WriteString(strings.Join(o.Voiced, ", "))
	b.WriteString("\nUsers:\n")
	b.WriteString(strings.Join(o.Users, ", "))
	b.WriteString("\n")
	return b.String()
}

func sortedCopy(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	sort.Strings(out)
	return out
}
