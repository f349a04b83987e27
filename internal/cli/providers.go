package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/lens/internal/config"
	"github.com/dshills/lens/internal/providers"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect LLM providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List supported providers",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range providers.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

var providersDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the configured provider accepts requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]string{"provider": flagProvider, "model": flagModel, "cache.enabled": "false"}
		return invoke(scope{Root: flagRoot, Overrides: overrides}, func(cfg config.Config, r providers.Reviewer) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Checking %s (%s)...\n", cfg.Provider, cfg.Model)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			_, err := r.Review(ctx, providers.ReviewRequest{
				SystemPrompt: "Respond with exactly: []",
				UserPrompt:   "ping",
				MaxTokens:    10,
			})
			if err != nil {
				if providers.IsAuthError(err) {
					return withCode(ExitAuthError, err)
				}
				return withCode(ExitRuntimeError, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s is configured and responding\n", cfg.Provider)
			return nil
		})
	},
}

func init() {
	providersDoctorCmd.Flags().StringVar(&flagProvider, "provider", "", "Provider to check")
	providersDoctorCmd.Flags().StringVar(&flagModel, "model", "", "Model to check")
	providersDoctorCmd.Flags().StringVar(&flagRoot, "root", ".", "Repository root whose "+config.RepoFileName+" is merged")
	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersDoctorCmd)
}
