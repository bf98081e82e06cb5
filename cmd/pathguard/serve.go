package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codefionn/pathguard/internal/audit"
	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
	"github.com/codefionn/pathguard/internal/server"
	"github.com/codefionn/pathguard/internal/tools"
)

var (
	noTerminal    bool
	maxConcurrent int
)

var serveCmd = &cobra.Command{
	Use:   "serve [directory...]",
	Short: "Serve tools over stdin/stdout",
	Long: `Read newline-delimited JSON tool calls ({"id","name","parameters"}) from
stdin and write one JSON result per line to stdout. Calls run concurrently and
results are matched to calls by id. The request name "list_tools" returns the
tool schemas.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&noTerminal, "no-terminal", false, "Do not offer execute_command")
	serveCmd.Flags().IntVar(&maxConcurrent, "max-concurrent", server.DefaultMaxConcurrent, "Maximum number of calls executing at once")
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if len(cfg.AllowedDirectories) == 0 {
		return errors.New("at least one allowed directory is required (config, --allow or argument)")
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), expandHome(cfg.LogPath)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.Global()
	defer func() {
		if err != nil {
			log.Error("Fatal error: %v", err)
		}
		if closeErr := log.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()
	log.Info("pathguard starting")

	var auditor sandbox.Auditor
	if cfg.AuditDBPath != "" {
		store, err := audit.Open(expandHome(cfg.AuditDBPath), audit.DefaultRetention, logger.NewSlog(log.WithPrefix("audit")))
		if err != nil {
			return err
		}
		defer store.Close()
		auditor = store
		log.Info("Recording sandbox decisions in %s", store.Path())
	}

	sb, err := newSandbox(cfg, log, auditor)
	if err != nil {
		return err
	}
	for _, root := range sb.Roots() {
		log.Info("Allowed directory: %s", root)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WatchRoots {
		go func() {
			if err := sb.Watch(ctx, sandbox.WatchOptions{Prune: cfg.PruneMissingRoots}); err != nil {
				log.Warn("Root watcher stopped: %v", err)
			}
		}()
	}

	confiner := sandbox.NewConfiner(sb, sandbox.ConfineOptions{
		Enabled:       cfg.Landlock.Enabled,
		BestEffort:    cfg.Landlock.BestEffort,
		ReadOnlyPaths: cfg.Landlock.ReadOnlyPaths,
		Logger:        log,
	})
	if cfg.Landlock.Enabled && !confiner.Active() {
		log.Warn("Landlock confinement requested but not supported on this platform")
	}

	reg := tools.NewServerRegistry(tools.Dependencies{
		Sandbox:         sb,
		Confiner:        confiner,
		CommandTimeout:  time.Duration(cfg.CommandTimeoutSeconds) * time.Second,
		Logger:          log,
		DisableTerminal: noTerminal,
	})

	srv := server.New(reg, server.Options{MaxConcurrent: maxConcurrent, Logger: log})
	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		return err
	}
	log.Info("pathguard stopped")
	return nil
}
