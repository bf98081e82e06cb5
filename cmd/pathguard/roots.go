package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codefionn/pathguard/internal/config"
	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "List the configured allowed directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}

		sb, err := sandbox.New(sandbox.Options{HomeDir: cfg.HomeDir, Logger: logger.NewWriter(logger.LevelNone, nil, "")})
		if err != nil {
			return err
		}
		printRoots(cmd.OutOrStdout(), sb, cfg.AllowedDirectories)
		return nil
	},
}

var rootsAddCmd = &cobra.Command{
	Use:   "add directory",
	Short: "Add an allowed directory to the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}

		// Store the canonical location so the file does not depend on the
		// directory the command ran in.
		sb, err := sandbox.New(sandbox.Options{HomeDir: cfg.HomeDir, Logger: logger.NewWriter(logger.LevelNone, nil, "")})
		if err != nil {
			return err
		}
		root, err := sb.AddAllowedDirectory(args[0])
		if err != nil {
			return err
		}

		added := false
		err = config.Update(cmd.Context(), configPath(), func(c *config.Config) error {
			added = c.AddAllowedDirectory(root.Path)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		if !added {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is already allowed\n", root.Path)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", root.Path)
		return nil
	},
}

var rootsRemoveCmd = &cobra.Command{
	Use:   "remove directory",
	Short: "Remove an allowed directory from the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		errNotListed := fmt.Errorf("%s is not listed in %s", args[0], configPath())
		err := config.Update(cmd.Context(), configPath(), func(c *config.Config) error {
			if !c.RemoveAllowedDirectory(args[0]) {
				return errNotListed
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rootsCmd)
	rootsCmd.AddCommand(rootsAddCmd, rootsRemoveCmd)
}

// printRoots adds each directory to sb and prints where it resolves to.
func printRoots(w io.Writer, sb *sandbox.Sandbox, dirs []string) {
	if len(dirs) == 0 {
		fmt.Fprintln(w, "No allowed directories configured")
		return
	}
	for _, dir := range dirs {
		root, err := sb.AddAllowedDirectory(dir)
		if err != nil {
			fmt.Fprintf(w, "%s %s: %v\n", color.RedString("INVALID"), dir, err)
			continue
		}
		if root.Path != dir {
			fmt.Fprintf(w, "%s -> %s\n", dir, root.Path)
			continue
		}
		fmt.Fprintln(w, dir)
	}
}
