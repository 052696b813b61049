package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NERVsystems/osmread/pkg/config"
	"github.com/NERVsystems/osmread/pkg/core"
	"github.com/NERVsystems/osmread/pkg/monitoring"
	"github.com/NERVsystems/osmread/pkg/osm"
	"github.com/NERVsystems/osmread/pkg/tracing"
	ver "github.com/NERVsystems/osmread/pkg/version"
)

var (
	configPath      string
	debug           bool
	showVersionFlag bool

	// Monitoring
	enableMonitoring bool
	monitoringAddr   string

	// Overpass
	overpassURL   string
	overpassRPS   float64
	overpassBurst int
	userAgent     string
	overpassQuery string
	bbox          string
	tags          tagFlags
	recurse       bool
	preset        string

	// Decoding and output
	streaming   bool
	compression string
	output      string
	summaryOnly bool
	workers     int
)

// tagFlags collects repeated -tag flags
type tagFlags []string

func (t *tagFlags) String() string { return strings.Join(*t, ",") }

func (t *tagFlags) Set(v string) error {
	*t = append(*t, v)
	return nil
}

func init() {
	def := config.Default()

	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")

	flag.BoolVar(&enableMonitoring, "enable-monitoring", def.Monitoring.Enabled, "Serve Prometheus metrics and health while running")
	flag.StringVar(&monitoringAddr, "monitoring-addr", def.Monitoring.Addr, "Monitoring server address")

	flag.StringVar(&overpassURL, "overpass-url", def.Overpass.URL, "Overpass interpreter URL")
	flag.Float64Var(&overpassRPS, "overpass-rps", def.Overpass.RPS, "Overpass rate limit in requests per second")
	flag.IntVar(&overpassBurst, "overpass-burst", def.Overpass.Burst, "Overpass rate limit burst size")
	flag.StringVar(&userAgent, "user-agent", def.Overpass.UserAgent, "User-Agent string for Overpass requests")
	flag.StringVar(&overpassQuery, "overpass-query", "", "Decode the result of this Overpass QL query instead of files")
	flag.StringVar(&bbox, "bbox", "", "Query Overpass for elements in minLat,minLon,maxLat,maxLon")
	flag.Var(&tags, "tag", "Tag filter for -bbox queries: key, key=value, key=v1|v2, !key or key!=value (repeatable)")
	flag.BoolVar(&recurse, "recurse", false, "Also fetch the nodes and members of matched ways and relations")
	flag.StringVar(&preset, "preset", "", "Standard query for -bbox as name or name=value ("+strings.Join(core.PresetNames(), ", ")+")")

	flag.BoolVar(&streaming, "streaming", def.Streaming, "Decode records while reading instead of buffering the document")
	flag.StringVar(&compression, "compression", def.Compression, "Input compression: none, gzip, bzip2 or auto")
	flag.StringVar(&output, "output", def.Output, "Output path, - for stdout")
	flag.BoolVar(&summaryOnly, "summary", false, "Write per-document element counts instead of elements")
	flag.IntVar(&workers, "workers", def.Workers, "Number of documents decoded in parallel")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] FILE...\n       %s [flags] -overpass-query QUERY\n       %s [flags] -bbox BBOX [-tag FILTER]... [-preset NAME[=VALUE]]\n\nFlags:\n",
			os.Args[0], os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}
}

// applyFlags overrides cfg with the flags given on the command line
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			if debug {
				cfg.LogLevel = "debug"
			}
		case "enable-monitoring":
			cfg.Monitoring.Enabled = enableMonitoring
		case "monitoring-addr":
			cfg.Monitoring.Addr = monitoringAddr
		case "overpass-url":
			cfg.Overpass.URL = overpassURL
		case "overpass-rps":
			cfg.Overpass.RPS = overpassRPS
		case "overpass-burst":
			cfg.Overpass.Burst = overpassBurst
		case "user-agent":
			cfg.Overpass.UserAgent = userAgent
		case "streaming":
			cfg.Streaming = streaming
		case "compression":
			cfg.Compression = compression
		case "output":
			cfg.Output = output
		case "workers":
			cfg.Workers = workers
		}
	})
}

// buildQuery returns the Overpass query selected by the flags, or "" when
// the input is files.
func buildQuery() (string, error) {
	if overpassQuery != "" {
		return overpassQuery, nil
	}
	if bbox == "" {
		if len(tags) > 0 {
			return "", core.NewValidationError(core.ErrInvalidInput, "-tag requires -bbox")
		}
		if preset != "" {
			return "", core.NewValidationError(core.ErrInvalidInput, "-preset requires -bbox")
		}
		return "", nil
	}

	box, err := core.ParseBoundingBox(bbox)
	if err != nil {
		return "", err
	}
	if preset != "" {
		if len(tags) > 0 || recurse {
			return "", core.NewValidationError(core.ErrInvalidInput, "-preset cannot be combined with -tag or -recurse")
		}
		name, value, _ := strings.Cut(preset, "=")
		return core.RenderPreset(name, value, box)
	}

	b := core.NewOverpassBuilder().WithBoundingBox(box.MinLat, box.MinLon, box.MaxLat, box.MaxLon)
	for _, t := range tags {
		filter, err := core.ParseTagFilter(t)
		if err != nil {
			return "", err
		}
		b.WithTagFilter(filter)
	}
	if len(tags) == 0 {
		b.WithNode().WithWay().WithRelation()
	}
	if recurse {
		b.WithRecurseDown()
	}
	if err := b.Validate(); err != nil {
		return "", err
	}
	return b.Build(), nil
}

func main() {
	flag.Parse()

	// Show version and exit if requested
	if showVersionFlag {
		fmt.Println(ver.String())
		return
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "osmread: %v\n", err)
			os.Exit(2)
		}
		cfg = loaded
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "osmread: %v\n", err)
		os.Exit(2)
	}

	// Configure logging
	logLevel, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	query, err := buildQuery()
	if err != nil {
		logger.Error("invalid query flags", "error", err)
		os.Exit(2)
	}
	if query == "" && flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, query, logger))
}

func run(ctx context.Context, cfg config.Config, query string, logger *slog.Logger) int {
	// Initialize OpenTelemetry tracing
	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		// Continue without tracing - it's not critical
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()

		if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	logger.Debug("starting osmread",
		"version", ver.BuildVersion,
		"compression", cfg.Compression,
		"streaming", cfg.Streaming,
		"workers", cfg.Workers,
		"output", cfg.Output,
		"monitoring_enabled", cfg.Monitoring.Enabled,
		"monitoring_addr", cfg.Monitoring.Addr)

	var health *monitoring.HealthChecker
	if cfg.Monitoring.Enabled {
		health = monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)
		osm.SetMonitoringHooks(metricsHooks())
		srv := startMonitoringServer(cfg.Monitoring.Addr, health, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown monitoring server", "error", err)
			}
		}()
	}

	out, closeOut, err := openOutput(cfg.Output)
	if err != nil {
		logger.Error("failed to open output", "error", err)
		return 2
	}

	r := &runner{
		cfg:     cfg,
		summary: summaryOnly,
		out:     newLineWriter(out),
		health:  health,
		logger:  logger,
	}

	if query != "" {
		err = r.decodeOverpass(ctx, query)
	} else {
		err = r.decodeFiles(ctx, flag.Args())
	}

	if flushErr := r.out.Flush(); flushErr != nil {
		logger.Error("failed to write output", "error", flushErr)
		err = errors.Join(err, flushErr)
	}
	if closeErr := closeOut(); closeErr != nil {
		logger.Error("failed to close output", "error", closeErr)
		err = errors.Join(err, closeErr)
	}

	if err != nil {
		return 1
	}
	return 0
}

// metricsHooks routes decoder and client events into Prometheus
func metricsHooks() *osm.MonitoringHooks {
	return &osm.MonitoringHooks{
		OnElement: func(elementType string) {
			monitoring.RecordElement(elementType)
		},
		OnDefault: func(field string) {
			monitoring.RecordFieldDefault(field)
		},
		OnDecodeError: func(code string) {
			monitoring.RecordDecodeError(code)
		},
		OnResponse: func(service, operation string, duration time.Duration, success bool) {
			monitoring.RecordExternalServiceRequest(service, operation, duration, success)
		},
		OnRateLimit: func(service string, waitTime time.Duration) {
			monitoring.RecordRateLimitWait(service, waitTime)
		},
		OnCache: func(hit bool, size int) {
			if hit {
				monitoring.RecordCacheHit(tracing.CacheTypeOverpass)
			} else {
				monitoring.RecordCacheMiss(tracing.CacheTypeOverpass)
			}
			monitoring.UpdateCacheSize(tracing.CacheTypeOverpass, size)
		},
		OnError: func(service, errorType string) {
			monitoring.RecordError(service, errorType)
		},
	}
}

func startMonitoringServer(addr string, health *monitoring.HealthChecker, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", health.HealthHandler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second, // Prevent Slowloris attacks
	}

	go func() {
		logger.Info("starting Prometheus metrics server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("monitoring server error", "error", err)
		}
	}()

	return srv
}
