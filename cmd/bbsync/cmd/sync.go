package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ssargent/bbsync/pkg/record"
	"github.com/ssargent/bbsync/pkg/sync"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync [db-name...]",
	Short: "Run a sync pass against the device image",
	Long: `Run one sync pass for each named database, or for the databases in the
sync section of the configuration. Every change is printed and accepted;
the cache and idmap files in the state directory are updated.

Examples:
  bbsync sync
  bbsync sync Memos "Address Book"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbNames := args
		if len(dbNames) == 0 {
			dbNames = container.Config().Sync.Databases
		}

		engine, err := container.Engine()
		if err != nil {
			return err
		}

		h := sync.HandlerFunc(func(_ context.Context, c sync.Change, r record.Record) error {
			desc := ""
			if r != nil {
				desc = r.Description()
			}
			cmd.Printf("  %-8s 0x%08x  %-24s %s\n", c.Type, c.RecordID, c.UID, desc)
			return nil
		})

		for _, dbName := range dbNames {
			cmd.Printf("%s:\n", dbName)
			res, err := engine.Sync(cmd.Context(), dbName, h)
			if err != nil {
				return err
			}
			cmd.Printf("  %d changes, %d applied, %d failed (session %s)\n",
				len(res.Changes), len(res.Applied), len(res.Failed), res.SessionID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
