package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marmos91/bufferdb/internal/cli/output"
	"github.com/marmos91/bufferdb/pkg/backup"
	"github.com/marmos91/bufferdb/pkg/datadir"
	"github.com/spf13/cobra"
)

var (
	backupBucket      string
	backupPrefix      string
	backupRegion      string
	backupEndpoint    string
	backupPathStyle   bool
	backupConcurrency int
)

var backupCmd = &cobra.Command{
	Use:   "backup <database>",
	Short: "Upload a database WAL to S3",
	Long: `Upload the WAL segments of a database to an S3 bucket.

Objects are written to <prefix><database>/<segment>. Sealed segments already
present with the same size are skipped. Credentials come from the standard
AWS chain, or from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.

Examples:
  bufferdb backup acme_telegraf --bucket backups
  bufferdb backup acme_telegraf --bucket backups --prefix prod/ --endpoint http://localhost:9000 --path-style`,
	Args: cobra.ExactArgs(1),
	RunE: runBackup,
}

func init() {
	backupCmd.Flags().StringVar(&backupBucket, "bucket", "", "S3 bucket (required)")
	backupCmd.Flags().StringVar(&backupPrefix, "prefix", "", "Key prefix, e.g. prod/")
	backupCmd.Flags().StringVar(&backupRegion, "region", "", "AWS region (default: SDK chain)")
	backupCmd.Flags().StringVar(&backupEndpoint, "endpoint", "", "S3-compatible endpoint URL")
	backupCmd.Flags().BoolVar(&backupPathStyle, "path-style", false, "Use path-style addressing")
	backupCmd.Flags().IntVar(&backupConcurrency, "concurrency", backup.DefaultConcurrency, "Parallel uploads")
	_ = backupCmd.MarkFlagRequired("bucket")
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	root, err := datadir.Resolve(cfg.DBDir)
	if err != nil {
		return err
	}
	dir := filepath.Join(root, args[0])
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return fmt.Errorf("database %q not found in %s", args[0], root)
	}

	store, err := backup.NewS3StoreFromConfig(cmd.Context(), backup.S3Config{
		Bucket:          backupBucket,
		Region:          backupRegion,
		Endpoint:        backupEndpoint,
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		ForcePathStyle:  backupPathStyle,
	})
	if err != nil {
		return err
	}

	res, err := backup.New(store, backupPrefix, backupConcurrency).Run(cmd.Context(), dir)
	if err != nil {
		return fmt.Errorf("backup %s: %w", args[0], err)
	}

	table := output.NewTableData("SEGMENT", "RESULT")
	for _, s := range res.Uploaded {
		table.AddRow(s, "uploaded")
	}
	for _, s := range res.Skipped {
		table.AddRow(s, "skipped")
	}
	out := cmd.OutOrStdout()
	if err := output.PrintTable(out, table); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d uploaded, %d skipped, %d bytes in %s\n",
		len(res.Uploaded), len(res.Skipped), res.Bytes, res.Duration.Round(time.Millisecond))
	return nil
}
