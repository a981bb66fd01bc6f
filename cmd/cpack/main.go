package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contentpacks/cpack/internal/config"
	"github.com/contentpacks/cpack/internal/dotenv"
	"github.com/contentpacks/cpack/internal/gitmgr"
	"github.com/contentpacks/cpack/internal/manifest"
	"github.com/contentpacks/cpack/internal/operation"
	"github.com/contentpacks/cpack/internal/server"
	"github.com/contentpacks/cpack/internal/store"
	"github.com/contentpacks/cpack/internal/version"
	"github.com/contentpacks/cpack/internal/wiki"
)

// Exit codes follow the CLI contract: 0 success, 2 invalid args, 3 upstream
// git/network failure, 4 validation failure, 5 state-sync mismatch, 6 queue
// full.
const (
	exitOK               = 0
	exitInvalidArgs      = 2
	exitUpstreamFailure  = 3
	exitValidationFailed = 4
	exitStateMismatch    = 5
	exitQueueFull        = 6
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitInvalidArgs)
	}

	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Printf("cpack %s\n", version.Version)
		os.Exit(exitOK)
	case "serve":
		serve(os.Args[2:])
	default:
		usage()
		os.Exit(exitInvalidArgs)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  cpack --version")
	fmt.Fprintln(os.Stderr, "  cpack serve [--config <file>] [--env <file>] [--addr <host:port>]")
}

func serve(args []string) {
	var configPath = "cpack.yaml"
	var envPath = ".env"
	var addrOverride string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(exitInvalidArgs)
			}
			configPath = args[i]
		case "--env":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--env requires a value")
				os.Exit(exitInvalidArgs)
			}
			envPath = args[i]
		case "--addr":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--addr requires a value")
				os.Exit(exitInvalidArgs)
			}
			addrOverride = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(exitInvalidArgs)
		}
	}

	if err := dotenv.Load(envPath); err != nil {
		fmt.Fprintln(os.Stderr, "loading .env:", err)
		os.Exit(exitInvalidArgs)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading config:", err)
		os.Exit(exitValidationFailed)
	}
	if addrOverride != "" {
		cfg.Server.Addr = addrOverride
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	st := store.New(store.RealClock{})

	git, err := gitmgr.New(cfg.Git.CacheRoot, st)
	if err != nil {
		logger.Error("initializing git content manager", "error", err)
		os.Exit(exitUpstreamFailure)
	}

	manifests := manifest.NewStore(manifest.NewFetcher(), server.NewManifestSource(st))

	rt := operation.New(st, cfg.Operations.QueueCapacity, cfg.Operations.Workers)
	defer func() { _ = rt.Shutdown() }()

	ctx, cancel := signalCancelContext()
	defer cancel()
	rt.StartRetentionSweeper(ctx, cfg.SweepInterval(), cfg.RetentionInterval(), true)

	var wikiClient *wiki.Client
	if cfg.Wiki.BaseURL != "" {
		wikiClient = wiki.New(cfg.Wiki.BaseURL)
	}

	app := server.New(st, git, manifests, rt, wikiClient)

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // operation SSE streams are long-lived
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := signalShutdownTimeout()
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown", "error", err)
			os.Exit(exitUpstreamFailure)
		}
		os.Exit(exitOK)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("serving", "error", err)
			os.Exit(exitUpstreamFailure)
		}
	}
}

// signalCancelContext cancels its context on SIGINT/SIGTERM, adapted from
// the teacher's cmd/kilroy signalCancelContext but built on
// signal.NotifyContext now that the cause-tracking CancelCause variant
// isn't needed here (nothing downstream inspects the cancellation cause).
func signalCancelContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func signalShutdownTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
