package osm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveMemberType(t *testing.T) {
	for name, want := range map[string]ElementType{
		"node":     NodeType,
		"way":      WayType,
		"relation": RelationType,
	} {
		got, err := ResolveMemberType(name)
		require.NoError(t, err)
		require.Equal(t, want, got)
		require.Equal(t, name, got.String())
	}

	for _, bad := range []string{"", "Node", "area", "nodes"} {
		_, err := ResolveMemberType(bad)
		require.ErrorIs(t, err, ErrUnknownMemberType, "input %q", bad)
		require.NotErrorIs(t, err, ErrUnknownElementType)
	}
}

func TestParseElementType(t *testing.T) {
	got, err := ParseElementType("relation")
	require.NoError(t, err)
	require.Equal(t, RelationType, got)

	_, err = ParseElementType("point")
	require.ErrorIs(t, err, ErrUnknownElementType)
}

func TestElementTypeText(t *testing.T) {
	text, err := WayType.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "way", string(text))
	require.Equal(t, "unknown", ElementType(0).String())
}
