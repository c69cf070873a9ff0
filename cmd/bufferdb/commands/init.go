package commands

import (
	"fmt"

	"github.com/marmos91/bufferdb/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample bufferdb configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/bufferdb/config.yaml.
Use --config to specify a custom path.

Examples:
  bufferdb init
  bufferdb init --config /etc/bufferdb/config.yaml
  bufferdb init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()

	var err error
	if configPath != "" {
		err = config.InitConfigToPath(configPath, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Edit the configuration file to set db_dir and the bind addresses")
	fmt.Fprintln(out, "  2. Create a database with: bufferdb database create <org>_<bucket>")
	fmt.Fprintf(out, "  3. Start the server with: bufferdb start --config %s\n", configPath)
	return nil
}
