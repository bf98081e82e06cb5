package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codefionn/pathguard/internal/config"
	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

var (
	configFile string
	allowDirs  []string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pathguard",
	Short: "Filesystem and terminal tool server confined to allowed directories",
	Long: `pathguard serves filesystem, workspace and terminal tools over
newline-delimited JSON on stdin/stdout. Every path a tool touches must resolve,
after following symlinks, to a location inside one of the allowed directories.

Allowed directories come from the config file, --allow flags and positional
arguments of 'serve' and 'check'.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (default "+config.GetConfigPath()+")")
	rootCmd.PersistentFlags().StringArrayVar(&allowDirs, "allow", nil, "Allowed directory (repeatable)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error, none")
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	return config.GetConfigPath()
}

// loadConfig reads the config file, applies environment and flag overrides
// and appends the directories given on the command line.
func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv()
	if level := strings.TrimSpace(logLevel); level != "" {
		cfg.LogLevel = level
	}
	cfg.AllowedDirectories = mergeDirectories(cfg.AllowedDirectories, allowDirs, args)
	return cfg, nil
}

// mergeDirectories concatenates the directory lists, dropping empty and
// verbatim duplicate entries. The sandbox deduplicates canonical paths.
func mergeDirectories(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, dir := range list {
			dir = strings.TrimSpace(dir)
			if dir == "" || seen[dir] {
				continue
			}
			seen[dir] = true
			out = append(out, dir)
		}
	}
	return out
}

func newSandbox(cfg *config.Config, log *logger.Logger, auditor sandbox.Auditor) (*sandbox.Sandbox, error) {
	return sandbox.New(sandbox.Options{
		AllowedDirectories: cfg.AllowedDirectories,
		HomeDir:            cfg.HomeDir,
		Logger:             log,
		Auditor:            auditor,
	})
}

// expandHome expands a leading ~ in paths read from the config file.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
