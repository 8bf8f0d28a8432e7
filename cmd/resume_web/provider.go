package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jonathan/resume-optimizer/internal/state"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/spf13/cobra"
)

var (
	providerName     string
	providerModel    string
	providerAPIKey   string
	providerEndpoint string
)

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Connect, inspect or disconnect the AI provider",
}

var providerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the providers and models the backend supports",
	Args:  cobra.NoArgs,
	RunE:  localCommand(runProviderList),
}

var providerConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Test and store an AI provider configuration",
	Long: `Test a provider configuration against the backend and store it when the test passes.

The API key can be passed with --api-key or through the PROVIDER_API_KEY environment variable.`,
	Args: cobra.NoArgs,
	RunE: localCommand(runProviderConnect),
}

var providerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored provider with the key masked",
	Args:  cobra.NoArgs,
	RunE:  localCommand(runProviderShow),
}

var providerDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Forget the stored provider and key",
	Args:  cobra.NoArgs,
	RunE:  localCommand(runProviderDisconnect),
}

func init() {
	providerConnectCmd.Flags().StringVarP(&providerName, "provider", "p", "", "Provider id, e.g. openai or anthropic")
	providerConnectCmd.Flags().StringVarP(&providerModel, "model", "m", "", "Model name")
	providerConnectCmd.Flags().StringVar(&providerAPIKey, "api-key", "", "Provider API key (optional, defaults to PROVIDER_API_KEY env var)")
	providerConnectCmd.Flags().StringVar(&providerEndpoint, "endpoint", "", "OpenAI-compatible endpoint for the custom provider")

	providerCmd.AddCommand(providerListCmd, providerConnectCmd, providerShowCmd, providerDisconnectCmd)
	rootCmd.AddCommand(providerCmd)
}

func runProviderList(ctx context.Context, env *localEnv, _ []string) error {
	catalog, err := env.backend.Providers(ctx)
	if err != nil || len(catalog) == 0 {
		if err != nil {
			env.logger.Warn("provider catalog unavailable, showing built-in list", "error", err)
		}
		catalog = types.DefaultCatalog()
	}
	env.printer.PrintCatalog(catalog)
	return nil
}

func runProviderConnect(ctx context.Context, env *localEnv, _ []string) error {
	key := providerAPIKey
	if key == "" {
		key = os.Getenv("PROVIDER_API_KEY")
	}
	return connectProvider(ctx, env, types.ProviderConfig{
		Provider:       types.Provider(strings.ToLower(strings.TrimSpace(providerName))),
		Model:          strings.TrimSpace(providerModel),
		APIKey:         strings.TrimSpace(key),
		CustomEndpoint: strings.TrimSpace(providerEndpoint),
	})
}

// connectProvider stores cfg only after the backend accepts it.
func connectProvider(ctx context.Context, env *localEnv, cfg types.ProviderConfig) error {
	if !cfg.Complete() {
		return fmt.Errorf("%w: --provider, --model and --api-key are required", state.ErrIncompleteProvider)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid provider configuration: %w", err)
	}

	resp, err := env.backend.TestConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	env.printer.PrintConnectionTest(resp)
	if !resp.OK() {
		return errors.New("the provider rejected this configuration; nothing was saved")
	}

	if err := env.store.SetProvider(ctx, localOwner, cfg); err != nil {
		return err
	}
	env.printer.PrintProvider(&cfg)
	return nil
}

func runProviderShow(ctx context.Context, env *localEnv, _ []string) error {
	doc, err := env.document(ctx)
	if err != nil {
		return err
	}
	env.printer.PrintProvider(doc.Provider)
	return nil
}

func runProviderDisconnect(ctx context.Context, env *localEnv, _ []string) error {
	if err := env.store.DisconnectProvider(ctx, localOwner); err != nil {
		return err
	}
	fmt.Fprintln(env.out, "Provider disconnected")
	return nil
}
