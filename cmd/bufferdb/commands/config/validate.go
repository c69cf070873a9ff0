package config

import (
	"fmt"

	"github.com/marmos91/bufferdb/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the bufferdb configuration file.

Checks for syntax errors, missing required fields, malformed bind
addresses and out of range values.

Examples:
  bufferdb config validate
  bufferdb config validate --config /etc/bufferdb/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.GRPC.BindAddr == cfg.HTTP.BindAddr {
		warnings = append(warnings, "grpc.bind_addr and http.bind_addr are equal; the second bind will fail")
	}
	if cfg.DBDir == "" {
		warnings = append(warnings, "db_dir not set; $HOME/.bufferdb will be used")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	fmt.Fprintf(out, "\nConfiguration summary:\n")
	fmt.Fprintf(out, "  gRPC address:  %s\n", cfg.GRPC.BindAddr)
	fmt.Fprintf(out, "  HTTP address:  %s\n", cfg.HTTP.BindAddr)
	fmt.Fprintf(out, "  Workers:       %d\n", cfg.Executor.Workers)
	fmt.Fprintf(out, "  Log level:     %s\n", cfg.Logging.Level)
	return nil
}
