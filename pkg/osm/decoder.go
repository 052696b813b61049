package osm

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/NERVsystems/osmread/pkg/core"
)

// RecordSource supplies raw records one at a time. Next returns io.EOF once
// the records are exhausted.
type RecordSource interface {
	Next() (Record, error)
}

type sliceSource struct {
	records []Record
	pos     int
}

// Records returns a RecordSource over an in-memory slice.
func Records(records []Record) RecordSource {
	return &sliceSource{records: records}
}

func (s *sliceSource) Next() (Record, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

// Decoder turns a RecordSource into a lazy sequence of elements. Each call to
// Next pulls exactly one record. The sequence is one-shot: after the first
// error or io.EOF every further call returns that same result.
//
// A Decoder is not safe for concurrent use; independent Decoders are.
type Decoder struct {
	src     RecordSource
	closers []io.Closer
	index   int
	err     error
}

// NewDecoder returns a Decoder reading from src.
func NewDecoder(src RecordSource) *Decoder {
	return &Decoder{src: src}
}

// Next decodes the next element. It returns io.EOF at the end of the input.
func (d *Decoder) Next() (Element, error) {
	if d.err != nil {
		return nil, d.err
	}

	rec, err := d.src.Next()
	if err != nil {
		d.err = err
		if !errors.Is(err, io.EOF) {
			reportDecodeError(err)
		}
		return nil, err
	}

	idx := d.index
	d.index++

	e, err := DecodeRecord(idx, rec)
	if err != nil {
		d.err = err
		reportDecodeError(err)
		return nil, err
	}

	reportElement(e.Type())
	return e, nil
}

// All returns the remaining elements as a range-over-func sequence. A failure
// is yielded once as a non-nil error, after which iteration stops.
func (d *Decoder) All() iter.Seq2[Element, error] {
	return func(yield func(Element, error) bool) {
		for {
			e, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Index reports how many records have been consumed.
func (d *Decoder) Index() int {
	return d.index
}

// Close releases the underlying byte sources, if the Decoder owns any.
func (d *Decoder) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// Collect drains the decoder into a slice.
func (d *Decoder) Collect() ([]Element, error) {
	var out []Element
	for e, err := range d.All() {
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

func recordError(code core.ErrorCode, index int, field, msg string) *core.Error {
	return core.NewError(code, msg).WithIndex(index).WithField(field)
}

// DecodeRecord converts a single raw record into an element. index is the
// record's position in its document and is only used in errors.
func DecodeRecord(index int, rec Record) (Element, error) {
	name := rec.typeName()
	kind, ok := lookupType(name)
	if !ok {
		return nil, recordError(core.ErrUnknownElementType, index, "type",
			fmt.Sprintf("element type %q", name))
	}

	id, ok := rec.requireInt("id")
	if !ok {
		return nil, recordError(core.ErrMalformedRecord, index, "id", "missing or non-numeric id")
	}

	version := optionalCount(rec, "version")
	changeset := optionalCount(rec, "changeset")
	uid := optionalInt(rec, "uid")
	timestamp, defaulted := rec.timestampOr("timestamp", 0)
	if defaulted {
		reportDefault("timestamp")
	}

	tags, err := decodeTags(index, rec)
	if err != nil {
		return nil, err
	}

	switch kind {
	case NodeType:
		lon, ok := rec.requireFloat("lon")
		if !ok {
			return nil, recordError(core.ErrMalformedRecord, index, "lon", "missing or non-numeric lon")
		}
		lat, ok := rec.requireFloat("lat")
		if !ok {
			return nil, recordError(core.ErrMalformedRecord, index, "lat", "missing or non-numeric lat")
		}
		return NewNode(id, int(version), changeset, timestamp, uid, tags, lon, lat), nil

	case WayType:
		nodes, err := decodeNodes(index, rec)
		if err != nil {
			return nil, err
		}
		return NewWay(id, int(version), changeset, timestamp, uid, tags, nodes), nil

	case RelationType:
		members, err := decodeMembers(index, rec)
		if err != nil {
			return nil, err
		}
		return NewRelation(id, int(version), changeset, timestamp, uid, tags, members), nil
	}

	panic(fmt.Sprintf("osm: unhandled element type %v", kind))
}

// optionalInt reads a metadata field that falls back to 0.
func optionalInt(rec Record, key string) int64 {
	n, defaulted := rec.intOr(key, 0)
	if defaulted {
		reportDefault(key)
	}
	return n
}

// optionalCount is optionalInt for fields that cannot be negative.
func optionalCount(rec Record, key string) int64 {
	n, defaulted := rec.intOr(key, 0)
	if !defaulted && n < 0 {
		n, defaulted = 0, true
	}
	if defaulted {
		reportDefault(key)
	}
	return n
}

func decodeTags(index int, rec Record) (map[string]string, error) {
	v, ok := rec["tags"]
	if !ok || v == nil {
		return map[string]string{}, nil
	}

	switch m := v.(type) {
	case map[string]string:
		return m, nil
	case map[string]any:
		tags := make(map[string]string, len(m))
		for k, raw := range m {
			s, ok := textValue(raw)
			if !ok {
				return nil, recordError(core.ErrMalformedRecord, index, "tags",
					fmt.Sprintf("tag %q has a non-scalar value", k))
			}
			tags[k] = s
		}
		return tags, nil
	default:
		return nil, recordError(core.ErrMalformedRecord, index, "tags", "tags is not an object")
	}
}

func decodeNodes(index int, rec Record) ([]int64, error) {
	v, ok := rec["nodes"]
	if !ok || v == nil {
		return nil, nil
	}

	raw, ok := v.([]any)
	if !ok {
		return nil, recordError(core.ErrMalformedRecord, index, "nodes", "nodes is not an array")
	}

	nodes := make([]int64, 0, len(raw))
	for i, entry := range raw {
		ref, ok := intValue(entry)
		if !ok {
			return nil, recordError(core.ErrMalformedRecord, index, fmt.Sprintf("nodes[%d]", i),
				"non-numeric node id")
		}
		nodes = append(nodes, ref)
	}
	return nodes, nil
}

func decodeMembers(index int, rec Record) ([]RelationMember, error) {
	v, ok := rec["members"]
	if !ok || v == nil {
		return nil, nil
	}

	raw, ok := v.([]any)
	if !ok {
		return nil, recordError(core.ErrMalformedRecord, index, "members", "members is not an array")
	}

	members := make([]RelationMember, 0, len(raw))
	for i, entry := range raw {
		field := fmt.Sprintf("members[%d]", i)

		var m Record
		switch x := entry.(type) {
		case map[string]any:
			m = x
		case Record:
			m = x
		default:
			return nil, recordError(core.ErrMalformedRecord, index, field, "member is not an object")
		}

		name, _ := m["type"].(string)
		kind, ok := lookupType(name)
		if !ok {
			return nil, recordError(core.ErrUnknownMemberType, index, field+".type",
				fmt.Sprintf("member type %q", name))
		}

		var role string
		if r, present := m["role"]; present && r != nil {
			if role, ok = textValue(r); !ok {
				return nil, recordError(core.ErrMalformedRecord, index, field+".role", "role is not a string")
			}
		}

		ref, ok := m.requireInt("ref")
		if !ok {
			return nil, recordError(core.ErrMalformedRecord, index, field+".ref", "missing or non-numeric ref")
		}

		members = append(members, RelationMember{Role: role, Type: kind, Ref: ref})
	}
	return members, nil
}
