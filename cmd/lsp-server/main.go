// Package main provides the entry point for lsp-core's standalone
// language server binary.
//
// Usage:
//
//	lsp-server              # run on stdin/stdout
//	lsp-server --verbose    # run with debug-level logging
//
// Grounded on
// _examples/WaylonWalker-markata-go/cmd/markata-go-lsp/main.go's signal
// handling and on its cmd/markata-go/cmd/root.go's cobra command shape,
// swapping the flag package for cobra+pflag to match the rest of the
// pack's CLI convention.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/WaylonWalker/lsp-core/internal/config"
	"github.com/WaylonWalker/lsp-core/internal/logging"
	"github.com/WaylonWalker/lsp-core/internal/server"
	"github.com/WaylonWalker/lsp-core/internal/transport"
	"github.com/WaylonWalker/lsp-core/internal/validator"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	cfgFile    string
	logPathFlg string
	verbose    bool
	versionFlg bool
)

var rootCmd = &cobra.Command{
	Use:           "lsp-server",
	Short:         "A Language Server Protocol host",
	Long:          "lsp-server frames, validates, and dispatches LSP messages over stdin/stdout, delegating diagnostics to a pluggable validator.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionFlg {
			fmt.Printf("lsp-server %s (%s)\n", version, commit)
			return nil
		}
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "path to lsp-core.toml or lsp-core.yaml")
	rootCmd.Flags().StringVar(&logPathFlg, "log-path", "", "path to a log file; defaults to stderr")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")
	rootCmd.Flags().BoolVar(&versionFlg, "version", false, "print version and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logging.Info
	}
	if verbose {
		level = logging.Debug
	}

	if logPathFlg != "" {
		cfg.LogPath = logPathFlg
	}
	logWriter, err := openLogWriter(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	logger := logging.New(logWriter, level)
	defer logger.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Infof("received shutdown signal")
		cancel()
	}()

	srv := server.New(server.Options{
		Logger:         logger,
		QueueCapacity:  cfg.QueueCapacity,
		RequestWorkers: cfg.RequestWorkers,
		WorkerWorkers:  cfg.WorkerWorkers,
		Validator:      validator.NewLineLengthValidator(cfg.MaxLineLength),
		ServerName:     "lsp-core",
		ServerVersion:  version,
	})

	interactive := cfg.Interactive || transport.IsInteractive(os.Stdin.Fd())
	stream := transport.New(os.Stdin, os.Stdout, interactive)

	go runWriter(srv, stream, logger)
	go runReader(ctx, srv, stream, logger)

	go srv.Run(ctx)

	<-ctx.Done()
	srv.Shutdown()
	return nil
}

// openLogWriter opens the on-disk log file named by path, creating and
// appending to it, or falls back to stderr when path is empty. This is
// the concrete collaborator internal/logging's Logger is built on top of
// (internal/logging itself never touches the filesystem).
func openLogWriter(path string) (io.WriteCloser, error) {
	if path == "" {
		return os.Stderr, nil
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func runReader(ctx context.Context, srv *server.Server, stream *transport.MessageStream, logger *logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		body, err := stream.ReadMessage()
		if err != nil {
			if err == transport.ErrClosed {
				return
			}
			logger.Errorf("reading message: %v", err)
			continue
		}
		if !srv.Incoming().Enqueue(string(body)) {
			return
		}
	}
}

func runWriter(srv *server.Server, stream *transport.MessageStream, logger *logging.Logger) {
	for {
		body, err := srv.Outgoing().Dequeue()
		if err != nil {
			return
		}
		if writeErr := stream.WriteMessage([]byte(body)); writeErr != nil {
			logger.Errorf("writing message: %v", writeErr)
		}
	}
}
