// Package database implements offline database management subcommands.
// They must not be run against a directory a live server owns.
package database

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/marmos91/bufferdb/internal/bytesize"
	"github.com/marmos91/bufferdb/internal/cli/output"
	"github.com/marmos91/bufferdb/pkg/config"
	"github.com/marmos91/bufferdb/pkg/datadir"
	"github.com/marmos91/bufferdb/pkg/db"
	"github.com/marmos91/bufferdb/pkg/registry"
	"github.com/marmos91/bufferdb/pkg/wal"
	"github.com/spf13/cobra"
)

// Cmd is the database subcommand.
var Cmd = &cobra.Command{
	Use:     "database",
	Aliases: []string{"db"},
	Short:   "Manage databases on disk",
}

var listOutput string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List databases and their WAL size",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty database",
	Long: `Create an empty database directory with an initial WAL segment.

HTTP writes address database <org>_<bucket>, so create it under that name.

Examples:
  bufferdb database create acme_telegraf`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|json|yaml)")
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(createCmd)
}

// Info describes one database directory.
type Info struct {
	Name     string `json:"name" yaml:"name"`
	Segments int    `json:"segments" yaml:"segments"`
	Bytes    int64  `json:"bytes" yaml:"bytes"`
}

// List is the table form of list.
type List []Info

func (l List) Headers() []string { return []string{"NAME", "SEGMENTS", "WAL SIZE"} }

func (l List) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, i := range l {
		rows = append(rows, []string{i.Name, strconv.Itoa(i.Segments), bytesize.ByteSize(i.Bytes).String()})
	}
	return rows
}

func root(cmd *cobra.Command) (string, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	return datadir.Resolve(cfg.DBDir)
}

// Scan lists the databases under root.
func Scan(root string) (List, error) {
	dirs, err := registry.WALDirs(root)
	if err != nil {
		return nil, err
	}
	list := make(List, 0, len(dirs))
	for _, dir := range dirs {
		segs, err := wal.Segments(dir)
		if err != nil {
			return nil, err
		}
		info := Info{Name: filepath.Base(dir), Segments: len(segs)}
		for _, s := range segs {
			info.Bytes += s.Size
		}
		list = append(list, info)
	}
	return list, nil
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
	}
	dir, err := root(cmd)
	if err != nil {
		return err
	}
	list, err := Scan(dir)
	if err != nil {
		return err
	}
	if len(list) == 0 && format == output.FormatTable {
		fmt.Fprintf(cmd.OutOrStdout(), "No databases in %s\n", dir)
		return nil
	}
	return output.NewPrinter(cmd.OutOrStdout(), format).Print(list)
}

func runCreate(cmd *cobra.Command, args []string) error {
	dir, err := root(cmd)
	if err != nil {
		return err
	}
	path, err := db.Create(dir, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Database %s created at %s\n", args[0], path)
	return nil
}
