package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/qube-forensics/sealcheck/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config <command>",
	Short: "Manage sealcheck configuration",
	Long: `Manage sealcheck configuration.

Configuration is read from ./sealcheck.yaml (or --config) and then from
SEALCHECK_* environment variables, e.g. SEALCHECK_VERIFY_ALGORITHM=blake3.

Available commands:
  show          - Show the effective configuration
  init [<path>] - Write a default configuration file`,
	DisableFlagsInUseLine: true,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return outputJSON(cfg)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [<path>]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultFileName
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.Save(path, config.Default()); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
