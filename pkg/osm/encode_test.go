package osm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToRecordOmitsZeroMetadata(t *testing.T) {
	rec := ToRecord(NewWay(7, 0, 0, 0, 0, nil, []int64{1, 2}))
	require.Equal(t, Record{
		"type":  "way",
		"id":    int64(7),
		"nodes": []any{int64(1), int64(2)},
	}, rec)
}

func TestToRecordRoundTrip(t *testing.T) {
	elems := []Element{
		NewNode(1, 2, 3, 1623752430, 4, map[string]string{"name": "x"}, 1.25, -2.5),
		NewWay(2, 1, 0, 0, 0, nil, nil),
		NewRelation(3, 5, 6, 951825600, 0, map[string]string{"type": "route"}, []RelationMember{
			{Role: "stop", Type: NodeType, Ref: 1},
			{Role: "", Type: WayType, Ref: 2},
			{Role: "sub", Type: RelationType, Ref: 9},
		}),
	}

	for _, e := range elems {
		got, err := DecodeRecord(0, ToRecord(e))
		require.NoError(t, err)
		require.Equal(t, e, got)
	}
}

func TestToRecordTimestamp(t *testing.T) {
	rec := ToRecord(NewNode(1, 0, 0, 1623752430, 0, nil, 0, 0))
	require.Equal(t, "2021-06-15T10:20:30Z", rec["timestamp"])
}

func TestConstructorsCopyInputs(t *testing.T) {
	tags := map[string]string{"k": "v"}
	nodes := []int64{1, 2}
	w := NewWay(1, 0, 0, 0, 0, tags, nodes)

	tags["k"] = "changed"
	nodes[0] = 99
	require.Equal(t, "v", w.Tags["k"])
	require.Equal(t, []int64{1, 2}, w.Nodes)
}
