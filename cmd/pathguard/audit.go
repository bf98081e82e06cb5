package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codefionn/pathguard/internal/audit"
	"github.com/codefionn/pathguard/internal/logger"
)

var (
	auditLimit  int
	auditDenied bool
	auditPrune  bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent sandbox decisions from the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		if cfg.AuditDBPath == "" {
			return errors.New("audit log is disabled (set audit_db_path in the config)")
		}

		store, err := audit.Open(expandHome(cfg.AuditDBPath), audit.DefaultRetention, logger.NewSlog(nil))
		if err != nil {
			return err
		}
		defer store.Close()

		if auditPrune {
			n, err := store.Prune(audit.DefaultRetention)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries\n", n)
			return nil
		}

		entries, err := store.Recent(auditLimit, auditDenied)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, e := range entries {
			status := color.GreenString("ALLOW")
			if !e.Allowed {
				status = color.RedString("DENY ")
			}
			line := fmt.Sprintf("%s %s %-24s %s", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), status, e.Operation, e.Requested)
			if e.Kind != "" {
				line += " [" + e.Kind + "]"
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 50, "Number of entries to show")
	auditCmd.Flags().BoolVar(&auditDenied, "denied", false, "Only show denied decisions")
	auditCmd.Flags().BoolVar(&auditPrune, "prune", false, "Delete entries older than the retention period and exit")
}
