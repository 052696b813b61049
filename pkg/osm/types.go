// Package osm decodes OpenStreetMap JSON element documents into typed elements.
package osm

import (
	"maps"
	"slices"
)

// ElementType identifies the kind of an OSM element.
type ElementType int

// The three OSM primitives.
const (
	NodeType ElementType = iota + 1
	WayType
	RelationType
)

// String returns the wire name of the element type.
func (t ElementType) String() string {
	switch t {
	case NodeType:
		return "node"
	case WayType:
		return "way"
	case RelationType:
		return "relation"
	default:
		return "unknown"
	}
}

// MarshalText encodes the element type by its wire name.
func (t ElementType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Header holds the fields common to all element kinds.
type Header struct {
	ID        int64             `json:"id"`
	Version   int               `json:"version"`
	Changeset int64             `json:"changeset"`
	Timestamp int64             `json:"timestamp"` // seconds since the Unix epoch
	UID       int64             `json:"uid"`
	Tags      map[string]string `json:"tags"`
}

// Element is a decoded Node, Way or Relation. The set of implementations is
// closed; a type switch over *Node, *Way and *Relation is exhaustive.
type Element interface {
	Type() ElementType
	Meta() Header
	element()
}

// Node is a single point.
type Node struct {
	Header
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Way is an ordered path of node ids.
type Way struct {
	Header
	Nodes []int64 `json:"nodes"`
}

// Relation groups other elements under roles.
type Relation struct {
	Header
	Members []RelationMember `json:"members"`
}

// RelationMember references another element by kind and id.
type RelationMember struct {
	Role string      `json:"role"`
	Type ElementType `json:"type"`
	Ref  int64       `json:"ref"`
}

func (*Node) Type() ElementType     { return NodeType }
func (*Way) Type() ElementType      { return WayType }
func (*Relation) Type() ElementType { return RelationType }

func (n *Node) Meta() Header     { return n.Header }
func (w *Way) Meta() Header      { return w.Header }
func (r *Relation) Meta() Header { return r.Header }

func (*Node) element()     {}
func (*Way) element()      {}
func (*Relation) element() {}

func newHeader(id int64, version int, changeset, timestamp, uid int64, tags map[string]string) Header {
	if tags == nil {
		tags = map[string]string{}
	} else {
		tags = maps.Clone(tags)
	}
	return Header{
		ID:        id,
		Version:   version,
		Changeset: changeset,
		Timestamp: timestamp,
		UID:       uid,
		Tags:      tags,
	}
}

// NewNode builds a Node. Tags are copied; a nil map becomes empty.
func NewNode(id int64, version int, changeset, timestamp, uid int64, tags map[string]string, lon, lat float64) *Node {
	return &Node{
		Header: newHeader(id, version, changeset, timestamp, uid, tags),
		Lon:    lon,
		Lat:    lat,
	}
}

// NewWay builds a Way. The node id slice is copied.
func NewWay(id int64, version int, changeset, timestamp, uid int64, tags map[string]string, nodes []int64) *Way {
	return &Way{
		Header: newHeader(id, version, changeset, timestamp, uid, tags),
		Nodes:  cloneOrEmpty(nodes),
	}
}

// NewRelation builds a Relation. The member slice is copied.
func NewRelation(id int64, version int, changeset, timestamp, uid int64, tags map[string]string, members []RelationMember) *Relation {
	return &Relation{
		Header:  newHeader(id, version, changeset, timestamp, uid, tags),
		Members: cloneOrEmpty(members),
	}
}

func cloneOrEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return slices.Clone(s)
}
