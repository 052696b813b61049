package osm

import (
	"fmt"

	"github.com/NERVsystems/osmread/pkg/core"
)

// Sentinels for errors.Is. Returned errors carry more detail but match these
// by code.
var (
	ErrUnknownElementType = core.Sentinel(core.ErrUnknownElementType)
	ErrMalformedRecord    = core.Sentinel(core.ErrMalformedRecord)
	ErrUnknownMemberType  = core.Sentinel(core.ErrUnknownMemberType)
	ErrInvalidDocument    = core.Sentinel(core.ErrInvalidDocument)
	ErrMalformedTimestamp = core.Sentinel(core.ErrMalformedTimestamp)
)

var elementTypes = map[string]ElementType{
	"node":     NodeType,
	"way":      WayType,
	"relation": RelationType,
}

func lookupType(s string) (ElementType, bool) {
	t, ok := elementTypes[s]
	return t, ok
}

// ResolveMemberType maps a relation member's "type" string to the element
// type it references.
func ResolveMemberType(s string) (ElementType, error) {
	t, ok := lookupType(s)
	if !ok {
		return 0, core.NewError(core.ErrUnknownMemberType, fmt.Sprintf("member type %q", s))
	}
	return t, nil
}

// ParseElementType maps a record's "type" string to its element type.
func ParseElementType(s string) (ElementType, error) {
	t, ok := lookupType(s)
	if !ok {
		return 0, core.NewError(core.ErrUnknownElementType, fmt.Sprintf("element type %q", s))
	}
	return t, nil
}
