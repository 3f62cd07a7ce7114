package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/record"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <db-name> <file>",
	Short: "Load captured record bodies into the device image",
	Long: `Load a hex dump capture ("sep: N" or "rep: N" lines followed by hex
lines) into the device image. Every endpoint block becomes one record of
the named database, marked dirty as if it had been edited on the handheld.
Blocks that do not parse as a record are skipped.

Example:
  bbsync import Memos capture.txt --endpoint 2`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbName := args[0]
		endpoint, _ := cmd.Flags().GetInt("endpoint")

		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		chunks, err := buffer.LoadHexDump(f)
		if err != nil {
			return err
		}

		dev, err := container.Device()
		if err != nil {
			return err
		}
		log := container.Logger()

		imported := 0
		for i, chunk := range chunks {
			if endpoint >= 0 && chunk.Endpoint != endpoint {
				continue
			}
			rec, err := record.New(dbName)
			if err != nil {
				return err
			}
			body := chunk.Data.Bytes()
			if err := record.Parse(rec, body, dev.Converter()); err != nil {
				log.Warn("block skipped", "block", i, "endpoint", chunk.Endpoint, "error", err)
				continue
			}
			rid, err := dev.PutRaw(cmd.Context(), dbName, 0, 0, body)
			if err != nil {
				return fmt.Errorf("block %d: %w", i, err)
			}
			cmd.Printf("0x%08x  %s\n", rid, rec.Description())
			imported++
		}
		cmd.Printf("Imported %d of %d blocks into %s\n", imported, len(chunks), dbName)
		return nil
	},
}

// recordsCmd represents the records command
var recordsCmd = &cobra.Command{
	Use:   "records <db-name>",
	Short: "List the records of a database in the device image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbName := args[0]
		asJSON, _ := cmd.Flags().GetBool("json")

		dev, err := container.Device()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		dbID, err := dev.GetDBID(ctx, dbName)
		if err != nil {
			return err
		}
		entries, err := dev.Entries(ctx, dbName)
		if err != nil {
			return err
		}

		for _, e := range entries {
			rec, err := record.New(dbName)
			if err != nil {
				return err
			}
			dirty := " "
			if e.Dirty {
				dirty = "*"
			}
			if err := dev.GetRecord(ctx, dbID, e.Index, rec); err != nil {
				cmd.Printf("%5d %s 0x%08x  <%v>\n", e.Index, dirty, e.RecordID, err)
				continue
			}
			if asJSON {
				if err := printJSON(cmd, rec); err != nil {
					return err
				}
				continue
			}
			cmd.Printf("%5d %s 0x%08x  %s\n", e.Index, dirty, e.RecordID, rec.Description())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(recordsCmd)
	importCmd.Flags().Int("endpoint", -1, "Only import blocks from this endpoint (-1 for all)")
	recordsCmd.Flags().Bool("json", false, "Print full records as JSON")
}
