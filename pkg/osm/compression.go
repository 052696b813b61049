package osm

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/NERVsystems/osmread/pkg/core"
)

// Compression selects how the byte source of a document is wrapped.
type Compression string

const (
	// CompressionAuto sniffs the stream (or the file suffix) for a known format.
	CompressionAuto  Compression = "auto"
	CompressionNone  Compression = "none"
	CompressionGzip  Compression = "gzip"
	CompressionBzip2 Compression = "bzip2"
)

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte("BZh")
)

// ParseCompression parses a compression option. The empty string is "none".
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CompressionNone, nil
	case CompressionAuto, CompressionNone, CompressionGzip, CompressionBzip2:
		return c, nil
	default:
		return "", core.NewValidationError(core.ErrInvalidInput,
			fmt.Sprintf("unknown compression %q (want none, gzip, bzip2 or auto)", s))
	}
}

// CompressionFromPath infers the compression from a file suffix.
func CompressionFromPath(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".bz2", ".bzip2":
		return CompressionBzip2
	default:
		return CompressionNone
	}
}

// OpenCompressed wraps r in the decompressor for c. Closing the result does
// not close r.
func OpenCompressed(r io.Reader, c Compression) (io.ReadCloser, error) {
	if c == CompressionAuto {
		br := bufio.NewReader(r)
		c = sniffCompression(br)
		r = br
	}

	switch c {
	case CompressionNone, "":
		return io.NopCloser(r), nil
	case CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return zr, nil
	case CompressionBzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	default:
		return nil, core.NewValidationError(core.ErrInvalidInput, fmt.Sprintf("unknown compression %q", c))
	}
}

func sniffCompression(br *bufio.Reader) Compression {
	head, _ := br.Peek(len(bzip2Magic))
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(head, bzip2Magic):
		return CompressionBzip2
	default:
		return CompressionNone
	}
}
