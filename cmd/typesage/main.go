package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"typesage/internal/analysis"
	"typesage/internal/config"
	"typesage/internal/observability"
	"typesage/internal/oracle"
	"typesage/internal/server"
	"typesage/internal/store"
)

var (
	configPath = flag.String("config", "./typesage.toml", "Path to config file")
	once       = flag.Bool("once", false, "Analyze a single file, print a summary, and exit")
	annotateIt = flag.Bool("annotate", false, "In -once mode, print the annotated source")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("typesage v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	skip, err := cfg.SkipGlobs()
	if err != nil {
		slog.Error("invalid skip patterns", "error", err)
		os.Exit(1)
	}
	analyzer := analysis.New(skip...)

	if *once {
		if flag.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "once mode requires one file argument: typesage -once <file.py>")
			os.Exit(1)
		}
		if err := runOnce(analyzer, flag.Arg(0), *annotateIt); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		os.Exit(0)
	}

	st, err := store.Open(cfg.DB.Path)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := observability.SetupTracing(ctx, cfg.Tracing.Endpoint, "typesage")
		if err != nil {
			slog.Error("failed to set up tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				slog.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	var oracleClient *oracle.Client
	if cfg.Oracle.Enabled {
		oracleClient = oracle.New(cfg.Oracle.BaseURL,
			oracle.WithModel(cfg.Oracle.Model),
			oracle.WithTimeout(cfg.Oracle.Timeout),
			oracle.WithRateLimit(cfg.Oracle.RequestsPerSec),
		)
		slog.Info("oracle enabled", "base_url", cfg.Oracle.BaseURL, "model", oracleClient.Model())
	}

	srv, err := server.New(cfg.Server.Address, cfg.Server.CORSOrigins, analyzer, st, oracleClient)
	if err != nil {
		slog.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}
	if err := srv.Start(ctx); err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	// Reload only picks up annotation skip patterns; address and db
	// changes need a restart.
	watcher := config.NewWatcher(*configPath, func(next *config.Config) {
		skip, err := next.SkipGlobs()
		if err != nil {
			slog.Warn("reloaded config has invalid skip patterns", "error", err)
			return
		}
		analyzer.SetSkipGlobs(skip)
	})
	if err := watcher.Start(ctx); err != nil {
		slog.Warn("config watcher failed to start", "error", err)
	} else {
		defer watcher.Stop()
	}

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
}

func runOnce(analyzer *analysis.Analyzer, path string, annotate bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	code := string(data)

	result := analyzer.Analyze(code)
	fmt.Print(formatSummary(path, result))

	if annotate && result.Success {
		annotated := analyzer.Annotate(code, nil)
		if !annotated.Success {
			return fmt.Errorf("annotate %s: %s", path, annotated.Error)
		}
		fmt.Println(formatAnnotated(annotated))
	}

	if !result.Success {
		return fmt.Errorf("analysis failed: %s", result.Error)
	}
	return nil
}
