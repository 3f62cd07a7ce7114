package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/catalog"
	"github.com/ssargent/bbsync/pkg/codec"
	"github.com/ssargent/bbsync/pkg/record"
	"github.com/ssargent/bbsync/pkg/statetable"
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Hex dump a binary file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return buffer.DumpHex(cmd.OutOrStdout(), data)
	},
}

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse <db-name> <file>",
	Short: "Parse a raw record body",
	Long: `Parse a raw record body of the named database and print the decoded
record as JSON.

Example:
  bbsync parse Memos memo.bin
  bbsync parse "Address Book" contact.bin`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := record.New(args[0])
		if err != nil {
			return fmt.Errorf("%w (known: %v)", err, record.DBNames())
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		conv, err := codec.NewConverter(container.Config().Charset)
		if err != nil {
			return err
		}
		if err := record.Parse(rec, data, conv); err != nil {
			return err
		}

		cmd.Printf("%s: %s\n", rec.DBName(), rec.Description())
		return printJSON(cmd, rec)
	},
}

// statetableCmd represents the statetable command
var statetableCmd = &cobra.Command{
	Use:   "statetable <file>",
	Short: "Parse a record state table blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		table := statetable.New()
		table.Parse(data)
		return table.Dump(cmd.OutOrStdout())
	},
}

// dbdbCmd represents the dbdb command
var dbdbCmd = &cobra.Command{
	Use:   "dbdb <file>",
	Short: "Parse a database database blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var dbdb catalog.DatabaseDatabase
		if err := dbdb.Parse(data); err != nil {
			return err
		}
		return dbdb.Dump(cmd.OutOrStdout())
	},
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(statetableCmd)
	rootCmd.AddCommand(dbdbCmd)
}
