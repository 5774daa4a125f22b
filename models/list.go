package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ListID identifies one of the fixed membership categories.
type ListID int

const (
	ListWatched ListID = 1
	ListToWatch ListID = 2
)

// Valid reports whether id is one of the enumerated lists.
func (id ListID) Valid() bool {
	return id == ListWatched || id == ListToWatch
}

func (id ListID) String() string {
	switch id {
	case ListWatched:
		return "watched"
	case ListToWatch:
		return "to-watch"
	default:
		return "list(" + strconv.Itoa(int(id)) + ")"
	}
}

// ParseListID accepts either the numeric id or the list name.
func ParseListID(value string) (ListID, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "watched":
		return ListWatched, nil
	case "to-watch", "to_watch", "towatch":
		return ListToWatch, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || !ListID(n).Valid() {
		return 0, fmt.Errorf("invalid list %q", value)
	}
	return ListID(n), nil
}
