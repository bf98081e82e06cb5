package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/codefionn/pathguard/internal/sandbox"
)

var (
	landlockRW         []string
	landlockRO         []string
	landlockBestEffort bool
)

// landlockExecCmd is started by the terminal tool in place of the real
// command. It restricts itself and then execs the command.
var landlockExecCmd = &cobra.Command{
	Use:    sandbox.LandlockExecCommand + " [flags] -- path argv0 [args...]",
	Hidden: true,
	Args:   cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.ArgsLenAtDash() != 0 {
			return errors.New("the command must follow --")
		}
		return sandbox.RestrictAndExec(sandbox.LandlockExecRequest{
			ReadWrite:  landlockRW,
			ReadOnly:   landlockRO,
			BestEffort: landlockBestEffort,
			Path:       args[0],
			Argv:       args[1:],
		})
	},
}

func init() {
	rootCmd.AddCommand(landlockExecCmd)
	landlockExecCmd.Flags().StringArrayVar(&landlockRW, "rw", nil, "Read-write path")
	landlockExecCmd.Flags().StringArrayVar(&landlockRO, "ro", nil, "Read-only path")
	landlockExecCmd.Flags().BoolVar(&landlockBestEffort, "best-effort", false, "Accept a weaker ruleset on older kernels")
}
