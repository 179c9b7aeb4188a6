// Command workflow-automator runs interactive workflow state machines
// on the console. With no graph it runs the built-in demo workflow in
// routine-driven mode; with -graph it parses a DOT description and
// dispatches graph-driven over it.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/petarkabashki/workflow-automator/config"
	"github.com/petarkabashki/workflow-automator/dot"
	"github.com/petarkabashki/workflow-automator/host"
	"github.com/petarkabashki/workflow-automator/routines"
	"github.com/petarkabashki/workflow-automator/watch"
	"github.com/petarkabashki/workflow-automator/wf"
	"github.com/petarkabashki/workflow-automator/wf/emit"
	"github.com/petarkabashki/workflow-automator/wf/journal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "workflow-automator: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		graphPath  = flag.String("graph", "", "path to DOT graph description (graph-driven mode)")
		debug      = flag.Bool("debug", false, "deliver debug instructions")
		renderPath = flag.String("render", "", "render the graph to this image file and exit")
		watchGraph = flag.Bool("watch", false, "with -render, keep watching the graph file and re-render on change")
		events     = flag.Bool("events", false, "print engine events to stderr")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *debug {
		cfg.Debug = true
	}
	if *graphPath != "" {
		cfg.Graph = *graphPath
	}

	log := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *renderPath != "" {
		if cfg.Graph == "" {
			return fmt.Errorf("-render requires a graph file")
		}
		return renderLoop(ctx, log, cfg.Graph, *renderPath, *watchGraph)
	}

	var engineOpts []any
	engineOpts = append(engineOpts, wf.WithMaxSteps(cfg.MaxSteps))

	if *events {
		engineOpts = append(engineOpts, wf.WithEmitter(emit.NewLogEmitter(os.Stderr, false)))
	}

	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		engineOpts = append(engineOpts, wf.WithMetrics(wf.NewPrometheusMetrics(registry)))
		go serveMetrics(log, cfg.Metrics.Addr, registry)
	}

	if cfg.Tracing.Enabled {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("tracer provider shutdown failed")
			}
		}()
		engineOpts = append(engineOpts, wf.WithEmitter(emit.NewOTelEmitter(otel.Tracer("workflow-automator"))))
	}

	store, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
		engineOpts = append(engineOpts, wf.WithJournal(store))
	}

	machine, mode, err := buildMachine(cfg.Graph)
	if err != nil {
		return err
	}
	engineOpts = append(engineOpts, wf.WithMode(mode))

	eng, err := wf.New(machine, engineOpts...)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"run_id": eng.RunID(), "mode": mode.String()}).Info("starting workflow")

	runner := host.NewRunner(eng,
		host.WithDebug(cfg.Debug),
		host.WithLogger(log),
	)
	return runner.Run(ctx)
}

// buildMachine returns the demo machine, or a graph-built machine when
// a DOT path is configured.
func buildMachine(graphPath string) (*wf.Machine, wf.Mode, error) {
	if graphPath == "" {
		return routines.DemoMachine(), wf.ModeRoutine, nil
	}
	src, err := os.ReadFile(graphPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read graph: %w", err)
	}
	g, err := dot.Parse(string(src))
	if err != nil {
		return nil, 0, err
	}
	machine, err := wf.FromGraph(g, routines.Registry())
	if err != nil {
		return nil, 0, err
	}
	return machine, wf.ModeGraph, nil
}

// renderLoop renders the graph once, and keeps re-rendering on change
// when watching.
func renderLoop(ctx context.Context, log *logrus.Logger, graphPath, output string, keepWatching bool) error {
	render := func() error {
		src, err := os.ReadFile(graphPath)
		if err != nil {
			return fmt.Errorf("failed to read graph: %w", err)
		}
		g, err := dot.Parse(string(src))
		if err != nil {
			return err
		}
		if err := dot.Render(g, output); err != nil {
			return err
		}
		log.WithField("output", output).Info("graph rendered")
		return nil
	}

	if err := render(); err != nil {
		return err
	}
	if !keepWatching {
		return nil
	}

	w, err := watch.New(graphPath, watch.DefaultDebounce)
	if err != nil {
		return err
	}
	go func() {
		for range w.Changes() {
			if err := render(); err != nil {
				log.WithError(err).Error("re-render failed")
			}
		}
	}()
	err = w.Run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func openJournal(cfg config.Journal) (journal.Store, error) {
	switch cfg.Backend {
	case config.JournalNone:
		return nil, nil
	case config.JournalMemory:
		return journal.NewMemJournal(), nil
	case config.JournalSQLite:
		return journal.NewSQLiteJournal(cfg.Path)
	case config.JournalMySQL:
		return journal.NewMySQLJournal(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
}

func serveMetrics(log *logrus.Logger, addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	log.WithField("addr", addr).Info("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("metrics server failed")
	}
}

func newLogger(cfg config.Logging) *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	log.SetOutput(os.Stderr)
	return log
}
