package osm

import (
	"errors"
	"io"
	"log/slog"

	json "github.com/goccy/go-json"

	"github.com/NERVsystems/osmread/pkg/core"
)

// Document is a fully buffered element document together with the envelope
// fields Overpass writes around the "elements" array.
type Document struct {
	Version   float64  `json:"version,omitempty"`
	Generator string   `json:"generator,omitempty"`
	OSM3S     *OSM3S   `json:"osm3s,omitempty"`
	Elements  []Record `json:"elements"`
}

// OSM3S carries the Overpass data snapshot information.
type OSM3S struct {
	TimestampOSMBase string `json:"timestamp_osm_base,omitempty"`
	Copyright        string `json:"copyright,omitempty"`
}

// invalidDocument never wraps io.EOF, which callers read as a clean end.
func invalidDocument(msg string, cause error) *core.Error {
	e := core.NewError(core.ErrInvalidDocument, msg)
	if errors.Is(cause, io.EOF) {
		cause = io.ErrUnexpectedEOF
	}
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}

// ReadDocument reads and decodes a whole document from r. A document without
// an "elements" array fails with ErrInvalidDocument.
func ReadDocument(r io.Reader) (*Document, error) {
	var raw struct {
		Version   float64   `json:"version"`
		Generator string    `json:"generator"`
		OSM3S     *OSM3S    `json:"osm3s"`
		Elements  *[]Record `json:"elements"`
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, invalidDocument("empty document", nil)
		}
		return nil, invalidDocument("decoding document", err)
	}
	if raw.Elements == nil {
		return nil, invalidDocument(`document has no "elements" array`, nil).WithField("elements")
	}

	return &Document{
		Version:   raw.Version,
		Generator: raw.Generator,
		OSM3S:     raw.OSM3S,
		Elements:  *raw.Elements,
	}, nil
}

// LogValue summarizes the envelope for structured logs.
func (d *Document) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("elements", len(d.Elements)),
		slog.String("generator", d.Generator),
		slog.Float64("version", d.Version),
	}
	if d.OSM3S != nil {
		attrs = append(attrs, slog.String("osm_base", d.OSM3S.TimestampOSMBase))
	}
	return slog.GroupValue(attrs...)
}

// Records returns a RecordSource over the document's elements.
func (d *Document) Records() RecordSource {
	return Records(d.Elements)
}

// Decoder returns a Decoder over the document's elements.
func (d *Document) Decoder() *Decoder {
	return NewDecoder(d.Records())
}

type streamState int

const (
	streamStart streamState = iota
	streamElements
)

// streamSource walks the outer object token by token and decodes one record
// of the "elements" array per call. Envelope keys before "elements" are
// skipped; anything after the array is never read.
type streamSource struct {
	dec   *json.Decoder
	state streamState
	err   error
}

// StreamRecords returns a RecordSource that decodes records from r
// incrementally, holding at most one record in memory.
func StreamRecords(r io.Reader) RecordSource {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &streamSource{dec: dec}
}

func (s *streamSource) Next() (Record, error) {
	if s.err != nil {
		return nil, s.err
	}

	if s.state == streamStart {
		if err := s.enterElements(); err != nil {
			s.err = err
			return nil, err
		}
		s.state = streamElements
	}

	if !s.dec.More() {
		tok, err := s.dec.Token()
		if d, ok := tok.(json.Delim); err != nil || !ok || d != ']' {
			s.err = invalidDocument(`unterminated "elements" array`, err).WithField("elements")
			return nil, s.err
		}
		s.err = io.EOF
		return nil, io.EOF
	}

	var rec Record
	if err := s.dec.Decode(&rec); err != nil {
		s.err = invalidDocument("decoding element record", err)
		return nil, s.err
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, nil
}

// enterElements advances the decoder to just inside the "elements" array.
func (s *streamSource) enterElements() error {
	tok, err := s.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return invalidDocument("empty document", nil)
		}
		return invalidDocument("reading document", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return invalidDocument("document is not an object", nil)
	}

	for s.dec.More() {
		tok, err := s.dec.Token()
		if err != nil {
			return invalidDocument("reading document key", err)
		}
		key, _ := tok.(string)

		if key == "elements" {
			tok, err := s.dec.Token()
			if err != nil {
				return invalidDocument("reading elements", err)
			}
			if d, ok := tok.(json.Delim); !ok || d != '[' {
				return invalidDocument(`"elements" is not an array`, nil).WithField("elements")
			}
			return nil
		}

		var skip json.RawMessage
		if err := s.dec.Decode(&skip); err != nil {
			return invalidDocument("skipping "+key, err)
		}
	}

	return invalidDocument(`document has no "elements" array`, nil).WithField("elements")
}
