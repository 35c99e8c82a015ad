package model

import (
	"fmt"
	"strings"
)

// Kind is the declared data type of a parameter.
type Kind int

const (
	KindFloat Kind = iota
	KindBool
	KindInt
	KindString
	KindList
)

var kindNames = map[Kind]string{
	KindFloat:  "float",
	KindBool:   "bool",
	KindInt:    "int",
	KindString: "str",
	KindList:   "list",
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a kind name ("float", "bool", "int", "str"/"string", "list").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float", "":
		return KindFloat, nil
	case "bool", "boolean":
		return KindBool, nil
	case "int", "integer":
		return KindInt, nil
	case "str", "string":
		return KindString, nil
	case "list":
		return KindList, nil
	default:
		return 0, fmt.Errorf("unsupported parameter kind %q", s)
	}
}
