package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/heritage-dao/heritage/internal/daemon"
	"github.com/heritage-dao/heritage/internal/infra/audit"
)

func init() {
	auditCmd.Flags().Uint64Var(&auditTarget, "target", 0, "Only show events about this proposal id")
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 50, "Maximum number of events")
	rootCmd.AddCommand(auditCmd)
}

var (
	auditTarget uint64
	auditLimit  int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the persistent audit log, newest first",
	Long: `Show the persistent audit log, newest first. Each row's data hash is
recomputed; rows that no longer match are marked TAMPERED.
Requires the sqlite storage backend.`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	if d.DB == nil {
		return fmt.Errorf("audit log requires the sqlite storage backend (have %q)", d.Config.Storage.Backend)
	}
	events, err := d.DB.RecentAudit(cmd.Context(), auditTarget, auditLimit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No audit events recorded.")
		return nil
	}
	return writeAuditTable(os.Stdout, audit.Check(events))
}

func writeAuditTable(w io.Writer, rows []audit.Checked) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "TIME\tTYPE\tSEVERITY\tACTOR\tTARGET\tHASH\tDETAILS")
	for _, r := range rows {
		hash := "ok"
		if !r.Verified {
			hash = "TAMPERED"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.Timestamp.Local().Format(timeLayout),
			r.Type,
			r.Severity,
			r.Actor,
			r.TargetID,
			hash,
			r.Details,
		)
	}
	return tw.Flush()
}
