package osm

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Parser opens element documents. The zero value reads uncompressed input
// and buffers the whole document before decoding.
type Parser struct {
	Compression Compression

	// Streaming decodes records while the document is read instead of
	// buffering it first. A missing "elements" array is then reported by the
	// first call to Next rather than by Parse.
	Streaming bool
}

// Parse returns a Decoder over the document read from r. The caller should
// Close the Decoder to release the decompressor.
func (p Parser) Parse(r io.Reader) (*Decoder, error) {
	rc, err := OpenCompressed(r, p.Compression)
	if err != nil {
		return nil, err
	}

	if p.Streaming {
		d := NewDecoder(StreamRecords(rc))
		d.closers = append(d.closers, rc)
		return d, nil
	}

	doc, err := ReadDocument(rc)
	closeErr := rc.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, fmt.Errorf("closing decompressor: %w", closeErr)
	}
	slog.Default().Debug("document loaded", "document", doc)
	return doc.Decoder(), nil
}

// ParseFile opens path and returns a Decoder over its elements. With
// CompressionAuto the file suffix decides, falling back to content sniffing.
func (p Parser) ParseFile(path string) (*Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	if p.Compression == CompressionAuto {
		if c := CompressionFromPath(path); c != CompressionNone {
			p.Compression = c
		}
	}

	d, err := p.Parse(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	d.closers = append([]io.Closer{f}, d.closers...)
	return d, nil
}
