package osm

// ToRecord encodes an element back into the record shape DecodeRecord
// accepts. Zero metadata fields are omitted, matching documents written
// without metadata.
func ToRecord(e Element) Record {
	h := e.Meta()
	rec := Record{
		"type": e.Type().String(),
		"id":   h.ID,
	}
	if h.Version != 0 {
		rec["version"] = int64(h.Version)
	}
	if h.Changeset != 0 {
		rec["changeset"] = h.Changeset
	}
	if h.Timestamp != 0 {
		rec["timestamp"] = FormatTimestamp(h.Timestamp)
	}
	if h.UID != 0 {
		rec["uid"] = h.UID
	}
	if len(h.Tags) > 0 {
		tags := make(map[string]any, len(h.Tags))
		for k, v := range h.Tags {
			tags[k] = v
		}
		rec["tags"] = tags
	}

	switch x := e.(type) {
	case *Node:
		rec["lon"] = x.Lon
		rec["lat"] = x.Lat
	case *Way:
		nodes := make([]any, len(x.Nodes))
		for i, id := range x.Nodes {
			nodes[i] = id
		}
		rec["nodes"] = nodes
	case *Relation:
		members := make([]any, len(x.Members))
		for i, m := range x.Members {
			members[i] = map[string]any{
				"type": m.Type.String(),
				"ref":  m.Ref,
				"role": m.Role,
			}
		}
		rec["members"] = members
	}
	return rec
}
