package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/codefionn/pathguard/internal/logger"
	"github.com/codefionn/pathguard/internal/sandbox"
)

var (
	checkCwd string
	checkDir bool
)

var checkCmd = &cobra.Command{
	Use:   "check path...",
	Short: "Report whether paths would be allowed",
	Long: `Resolve each path the way the tools do and print the decision. Paths are
relative to --cwd, or to the first allowed directory. Exits non-zero if any
path is denied.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkCwd, "cwd", "", "Working directory to resolve relative paths against")
	checkCmd.Flags().BoolVar(&checkDir, "dir", false, "Require each path to be an existing directory")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	sb, err := newSandbox(cfg, logger.NewWriter(logger.LevelNone, nil, ""), nil)
	if err != nil {
		return err
	}
	if checkCwd != "" {
		if _, err := sb.ChangeCwd(checkCwd); err != nil {
			return fmt.Errorf("invalid --cwd: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if f, ok := out.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		color.NoColor = true
	}

	denied := checkPaths(out, sb, args, checkDir)
	if denied > 0 {
		return fmt.Errorf("%d of %d paths denied", denied, len(args))
	}
	return nil
}

// checkPaths prints one line per path and returns the number of denials.
func checkPaths(w io.Writer, sb *sandbox.Sandbox, paths []string, dirOnly bool) int {
	denied := 0
	for _, p := range paths {
		var (
			vp  sandbox.ValidatedPath
			err error
		)
		if dirOnly {
			vp, err = sb.ResolveDirectory(p)
		} else {
			vp, err = sb.Resolve(p)
		}

		if err != nil {
			denied++
			fmt.Fprintf(w, "%s %s: %v\n", color.RedString("DENY "), p, err)
			continue
		}

		target := vp.Path()
		switch {
		case !vp.Exists():
			target += color.YellowString(" (does not exist)")
		case vp.Real() != vp.Path():
			target += " -> " + vp.Real()
		}
		fmt.Fprintf(w, "%s %s\n", color.GreenString("ALLOW"), target)
	}
	return denied
}
