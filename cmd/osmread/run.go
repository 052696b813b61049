package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/osmread/pkg/config"
	"github.com/NERVsystems/osmread/pkg/core"
	"github.com/NERVsystems/osmread/pkg/monitoring"
	"github.com/NERVsystems/osmread/pkg/osm"
	"github.com/NERVsystems/osmread/pkg/tracing"
)

// lineWriter serializes JSON lines from concurrent decode passes
type lineWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{w: bufio.NewWriter(w)}
}

// WriteJSON marshals v and writes it as one line
func (lw *lineWriter) WriteJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	lw.mu.Lock()
	defer lw.mu.Unlock()
	if _, err := lw.w.Write(b); err != nil {
		return err
	}
	return lw.w.WriteByte('\n')
}

func (lw *lineWriter) Flush() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Flush()
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, f.Close, nil
}

// documentSummary is the line written per document with -summary
type documentSummary struct {
	Source    string `json:"source"`
	Nodes     int    `json:"nodes"`
	Ways      int    `json:"ways"`
	Relations int    `json:"relations"`
}

func (s *documentSummary) add(t osm.ElementType) {
	switch t {
	case osm.NodeType:
		s.Nodes++
	case osm.WayType:
		s.Ways++
	case osm.RelationType:
		s.Relations++
	}
}

type runner struct {
	cfg     config.Config
	summary bool
	out     *lineWriter
	health  *monitoring.HealthChecker
	logger  *slog.Logger
}

// decodeFiles decodes each path as an independent document. Failures do not
// stop the other files; all of them are reported.
func (r *runner) decodeFiles(ctx context.Context, paths []string) error {
	c, err := osm.ParseCompression(r.cfg.Compression)
	if err != nil {
		return err
	}
	parser := osm.Parser{Compression: c, Streaming: r.cfg.Streaming}

	errs := make([]error, len(paths))
	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)

	for i, path := range paths {
		g.Go(func() error {
			errs[i] = r.decodeFile(ctx, parser, path)
			return nil
		})
	}
	g.Wait()

	return errors.Join(errs...)
}

func (r *runner) decodeFile(ctx context.Context, parser osm.Parser, path string) error {
	ctx, span := tracing.StartSpan(ctx, "osmread.decode_file",
		trace.WithAttributes(tracing.DocumentAttributes(tracing.SourceFile, path, string(parser.Compression), parser.Streaming)...))

	start := time.Now()
	err := r.openAndConsume(ctx, parser, path, span)
	r.finish(tracing.SourceFile, path, start, err)
	endDocumentSpan(span, err)
	return err
}

func (r *runner) openAndConsume(ctx context.Context, parser osm.Parser, path string, span trace.Span) error {
	d, err := parser.ParseFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			r.logger.Warn("failed to close document", "path", path, "error", err)
		}
	}()
	return r.consume(ctx, path, d, span)
}

// decodeOverpass runs query and decodes the response
func (r *runner) decodeOverpass(ctx context.Context, query string) error {
	client, err := osm.NewClient(r.cfg.ClientOptions())
	if err != nil {
		return err
	}
	client.SetLogger(r.logger.With("service", "overpass"))

	if r.health != nil {
		monitor := monitoring.NewConnectionMonitor("overpass", r.health, client.CheckHealth, 30*time.Second)
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	ctx, span := tracing.StartSpan(ctx, "osmread.decode_overpass",
		trace.WithAttributes(tracing.DocumentAttributes(tracing.SourceOverpass, r.cfg.Overpass.URL, string(osm.CompressionNone), true)...))

	start := time.Now()
	r.logger.Debug("running overpass query", "query", query)

	d, err := client.Query(ctx, query)
	if err == nil {
		err = r.consume(ctx, tracing.SourceOverpass, d, span)
		if closeErr := d.Close(); closeErr != nil {
			r.logger.Warn("failed to close response", "error", closeErr)
		}
	}

	r.finish(tracing.SourceOverpass, tracing.SourceOverpass, start, err)
	endDocumentSpan(span, err)
	return err
}

// endDocumentSpan ends a decode span, tagging it with the failing code and
// record when err carries them
func endDocumentSpan(span trace.Span, err error) {
	var coded *core.Error
	if errors.As(err, &coded) {
		span.SetAttributes(tracing.DecodeErrorAttributes(string(coded.Code), coded.Index)...)
	}
	tracing.EndSpan(span, err)
}

// consume drains d into the output
func (r *runner) consume(ctx context.Context, source string, d *osm.Decoder, span trace.Span) error {
	sum := documentSummary{Source: source}

	for e, err := range d.All() {
		if err != nil {
			return fmt.Errorf("%s: %w", source, err)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", source, err)
		}

		sum.add(e.Type())
		if !r.summary {
			if err := r.out.WriteJSON(osm.ToRecord(e)); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
		}
	}

	span.SetAttributes(tracing.ElementCountAttributes(sum.Nodes, sum.Ways, sum.Relations)...)
	r.logger.Debug("document decoded",
		"source", source,
		"nodes", sum.Nodes,
		"ways", sum.Ways,
		"relations", sum.Relations)

	if r.summary {
		if err := r.out.WriteJSON(sum); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return nil
}

// finish records metrics and logs the outcome of one document
func (r *runner) finish(source, name string, start time.Time, err error) {
	duration := time.Since(start)
	monitoring.RecordDocument(source, duration, err == nil)
	if r.health != nil {
		r.health.DocumentDone(err == nil)
	}

	if err == nil {
		return
	}

	var coded *core.Error
	if errors.As(err, &coded) && coded.Index != core.NoIndex {
		r.logger.Error("decode failed",
			"source", name,
			"code", coded.Code,
			"record", coded.Index,
			"field", coded.Field,
			"error", err)
		return
	}
	r.logger.Error("decode failed", "source", name, "error", err)
}
