package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/lens/internal/config"
)

var flagRepoConfig bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage lens configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagRepoConfig {
			path, err := config.SaveRepo(flagRoot, config.Default())
			if err != nil {
				return withCode(ExitRuntimeError, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file created at %s\n", path)
			return nil
		}

		path, err := config.ConfigPath()
		if err != nil {
			return withCode(ExitRuntimeError, err)
		}
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Config file already exists at %s\n", path)
			return nil
		}
		if err := config.Save(config.Default()); err != nil {
			return withCode(ExitRuntimeError, fmt.Errorf("writing config: %w", err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config file created at %s\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a global configuration value",
	Long:  "Set a global configuration value. Keys: " + strings.Join(config.Keys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile()
		if err != nil {
			return err
		}
		if err := config.SetField(&cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return withCode(ExitRuntimeError, fmt.Errorf("saving config: %w", err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
		return nil
	},
}

var configShowYAML bool

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagRoot, nil)
		if err != nil {
			return err
		}

		var data []byte
		if configShowYAML {
			data, err = yaml.Marshal(cfg)
		} else {
			data, err = json.MarshalIndent(cfg, "", "  ")
		}
		if err != nil {
			return withCode(ExitRuntimeError, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(string(data), "\n"))
		return nil
	},
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	configInitCmd.Flags().BoolVar(&flagRepoConfig, "repo", false, "Write "+config.RepoFileName+" in --root instead of the global file")
	configInitCmd.Flags().StringVar(&flagRoot, "root", ".", "Repository root")
	configShowCmd.Flags().StringVar(&flagRoot, "root", ".", "Repository root whose "+config.RepoFileName+" is merged")
	configShowCmd.Flags().BoolVar(&configShowYAML, "yaml", false, "Print YAML instead of JSON")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
}
