package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}

		settings := viper.AllSettings()
		if store, ok := settings["store"].(map[string]any); ok {
			if token, ok := store["auth_token"].(string); ok && token != "" {
				store["auth_token"] = "********"
			}
		}

		data, err := yaml.Marshal(settings)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if used := viper.ConfigFileUsed(); used != "" {
			_, _ = fmt.Fprintf(out, "# config file: %s\n", used)
		}
		_, err = out.Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}
