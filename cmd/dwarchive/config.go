package main

import (
	"fmt"
	"os"

	"dwarchive/pkg/config"
	"dwarchive/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage dwarchive configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (DWARCHIVE_*)
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file with the default values. The file is created
as .dwarchive.yaml in the current directory unless --config names another
path.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = ".dwarchive.yaml"
		}
		if err := initConfigFile(path); err != nil {
			return err
		}
		ui.PrintSuccess("Configuration file created: " + path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging the configuration file, the
environment and the defaults. The session cookie is masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			return err
		}
		data, err := renderConfig(cfg)
		if err != nil {
			return err
		}
		source := configFile
		if source == "" {
			source = "(default locations)"
		}
		ui.PrintInfo("Configuration file", source)
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func initConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}
	return config.DefaultConfig().Save(path)
}

// renderConfig formats cfg as YAML with the session cookie masked
func renderConfig(cfg *config.Config) ([]byte, error) {
	display := *cfg
	if token := display.Site.SessionCookie; token != "" {
		if len(token) > 8 {
			display.Site.SessionCookie = token[:4] + "..." + token[len(token)-4:]
		} else {
			display.Site.SessionCookie = "***"
		}
	}
	data, err := yaml.Marshal(&display)
	if err != nil {
		return nil, fmt.Errorf("failed to format configuration: %w", err)
	}
	return data, nil
}
