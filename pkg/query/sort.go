package query

import (
	"fmt"
	"strings"
)

// Direction is a sort direction. Values match MongoDB's sort specification.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// ParseDirection maps the wire names "asc" and "dsc" ("desc" is accepted too).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc":
		return Ascending, nil
	case "dsc", "desc":
		return Descending, nil
	}
	return 0, fmt.Errorf("unknown sort direction %q (must be asc or dsc)", s)
}

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "asc"
	case Descending:
		return "dsc"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

func (d Direction) words() string {
	if d == Descending {
		return "descending"
	}
	return "ascending"
}

// SortCapability declares which directions a field can be sorted in.
type SortCapability uint8

const (
	SortNone SortCapability = 0
	SortAsc  SortCapability = 1
	SortDesc SortCapability = 2
	SortBoth                = SortAsc | SortDesc
)

// Allows reports whether the capability covers d.
func (c SortCapability) Allows(d Direction) bool {
	switch d {
	case Ascending:
		return c&SortAsc != 0
	case Descending:
		return c&SortDesc != 0
	}
	return false
}

// ParseSortCapability reads "none", "asc", "dsc" or "both".
func ParseSortCapability(s string) (SortCapability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SortNone, nil
	case "asc":
		return SortAsc, nil
	case "dsc", "desc":
		return SortDesc, nil
	case "both":
		return SortBoth, nil
	}
	return SortNone, fmt.Errorf("unknown sort capability %q", s)
}

func (c SortCapability) String() string {
	switch c {
	case SortNone:
		return "none"
	case SortAsc:
		return "asc"
	case SortDesc:
		return "dsc"
	case SortBoth:
		return "both"
	}
	return fmt.Sprintf("SortCapability(%d)", uint8(c))
}

// Sort is a resolved sort on one field.
type Sort struct {
	Field     string
	Direction Direction
}

func (s Sort) String() string {
	return s.Field + " " + s.Direction.String()
}
