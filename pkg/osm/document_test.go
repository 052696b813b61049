package osm

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/osmread/pkg/core"
)

const overpassDocument = `{
  "version": 0.6,
  "generator": "Overpass API 0.7.61.5",
  "osm3s": {
    "timestamp_osm_base": "2023-09-01T12:00:00Z",
    "copyright": "The data included in this document is from www.openstreetmap.org."
  },
  "elements": [
    {"type": "node", "id": 1, "lat": 52.5, "lon": 13.4, "timestamp": "2021-06-15T10:20:30Z", "version": 2, "changeset": 5, "user": "a", "uid": 9},
    {"type": "node", "id": 2, "lat": 52.6, "lon": 13.5},
    {"type": "way", "id": 10, "nodes": [1, 2], "tags": {"highway": "residential"}},
    {"type": "relation", "id": 20, "members": [{"type": "way", "ref": 10, "role": "outer"}]}
  ],
  "remark": "ignored"
}`

func TestReadDocument(t *testing.T) {
	doc, err := ReadDocument(strings.NewReader(overpassDocument))
	require.NoError(t, err)
	require.Equal(t, 0.6, doc.Version)
	require.Equal(t, "Overpass API 0.7.61.5", doc.Generator)
	require.NotNil(t, doc.OSM3S)
	require.Equal(t, "2023-09-01T12:00:00Z", doc.OSM3S.TimestampOSMBase)
	require.Len(t, doc.Elements, 4)

	elems, err := doc.Decoder().Collect()
	require.NoError(t, err)
	requireOverpassElements(t, elems)
}

func TestStreamRecords(t *testing.T) {
	elems, err := NewDecoder(StreamRecords(strings.NewReader(overpassDocument))).Collect()
	require.NoError(t, err)
	requireOverpassElements(t, elems)
}

func requireOverpassElements(t *testing.T, elems []Element) {
	t.Helper()
	require.Len(t, elems, 4)

	n := elems[0].(*Node)
	require.Equal(t, int64(1), n.ID)
	require.Equal(t, 2, n.Version)
	require.Equal(t, int64(5), n.Changeset)
	require.Equal(t, int64(9), n.UID)
	require.Equal(t, int64(1623752430), n.Timestamp)
	require.Equal(t, 13.4, n.Lon)
	require.Equal(t, 52.5, n.Lat)

	require.Zero(t, elems[1].Meta().UID)
	require.Equal(t, []int64{1, 2}, elems[2].(*Way).Nodes)
	require.Equal(t, []RelationMember{{Role: "outer", Type: WayType, Ref: 10}}, elems[3].(*Relation).Members)
}

func TestDocumentEmptyElements(t *testing.T) {
	src := `{"version":0.6,"elements":[]}`

	doc, err := ReadDocument(strings.NewReader(src))
	require.NoError(t, err)
	elems, err := doc.Decoder().Collect()
	require.NoError(t, err)
	require.Empty(t, elems)

	elems, err = NewDecoder(StreamRecords(strings.NewReader(src))).Collect()
	require.NoError(t, err)
	require.Empty(t, elems)
}

func TestDocumentMissingElements(t *testing.T) {
	inputs := map[string]string{
		"no elements key":      `{"version":0.6,"generator":"x"}`,
		"null elements":        `{"elements":null}`,
		"empty object":         `{}`,
		"empty input":          ``,
		"not an object":        `[{"type":"node"}]`,
		"elements not array":   `{"elements":{"type":"node"}}`,
		"truncated":            `{"elements":[{"type":"node","id":1`,
		"syntax error in head": `{"version":,"elements":[]}`,
	}

	for name, src := range inputs {
		t.Run("buffered/"+name, func(t *testing.T) {
			doc, err := ReadDocument(strings.NewReader(src))
			require.Nil(t, doc)
			require.ErrorIs(t, err, ErrInvalidDocument)
		})

		t.Run("streaming/"+name, func(t *testing.T) {
			d := NewDecoder(StreamRecords(strings.NewReader(src)))
			e, err := d.Next()
			require.Nil(t, e)
			require.ErrorIs(t, err, ErrInvalidDocument)
			require.Zero(t, d.Index())
		})
	}
}

func TestStreamUnterminatedElements(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		valid int
	}{
		{"cut after record", `{"elements":[{"type":"node","id":1,"lon":1,"lat":1}`, 1},
		{"cut after comma", `{"elements":[{"type":"node","id":1,"lon":1,"lat":1},`, 1},
		{"cut after bracket", `{"elements":[`, 0},
		{"cut after key", `{"version":0.6,"elements":`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDocument(strings.NewReader(tt.src))
			require.ErrorIs(t, err, ErrInvalidDocument)

			d, err := Parser{Streaming: true}.Parse(strings.NewReader(tt.src))
			require.NoError(t, err)
			defer d.Close()

			elems, err := d.Collect()
			require.Len(t, elems, tt.valid)
			require.ErrorIs(t, err, ErrInvalidDocument)
			require.NotErrorIs(t, err, io.EOF)

			// The failure is terminal, not a late io.EOF
			_, err = d.Next()
			require.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestStreamStopsAtFirstBadRecord(t *testing.T) {
	src := `{"elements":[{"type":"way","id":1},{"type":"point","id":2},{"type":"way","id":3}]}`
	d := NewDecoder(StreamRecords(strings.NewReader(src)))

	e, err := d.Next()
	require.NoError(t, err)
	require.Equal(t, int64(1), e.Meta().ID)

	_, err = d.Next()
	require.ErrorIs(t, err, ErrUnknownElementType)

	var coded *core.Error
	require.True(t, errors.As(err, &coded))
	require.Equal(t, 1, coded.Index)
	require.Equal(t, 2, d.Index())
}

func TestStreamIgnoresTrailingContent(t *testing.T) {
	src := `{"elements":[{"type":"way","id":1}], "remark": not json at all`
	elems, err := NewDecoder(StreamRecords(strings.NewReader(src))).Collect()
	require.NoError(t, err)
	require.Len(t, elems, 1)

	_, err = ReadDocument(strings.NewReader(src))
	require.ErrorIs(t, err, ErrInvalidDocument)
}

func TestStreamNullRecord(t *testing.T) {
	d := NewDecoder(StreamRecords(strings.NewReader(`{"elements":[null]}`)))
	_, err := d.Next()
	require.ErrorIs(t, err, ErrUnknownElementType)
}
