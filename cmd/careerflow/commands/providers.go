package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/biodoia/gocareerflow/internal/providers"
	"github.com/spf13/cobra"
)

// ProvidersCmd rappresenta il comando providers
var ProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Manage AI providers",
	Long: `Manage the configured AI providers.

This command allows you to list the configured providers and test
their connectivity through the gateway.`,
	Example: `  # List all providers
  careerflow providers list

  # Test a single provider
  careerflow providers test gemini

  # Test all available providers
  careerflow providers test --all`,
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured providers",
	Long:  `Display the configured AI providers with availability and priority.`,
	Example: `  # List all providers
  careerflow providers list

  # List with JSON output
  careerflow providers list --json`,
	RunE: runProvidersList,
}

var providersTestCmd = &cobra.Command{
	Use:   "test [provider-name]",
	Short: "Test provider connectivity",
	Long:  `Send a minimal prompt to a provider and report the outcome.`,
	Example: `  # Test a single provider
  careerflow providers test gemini

  # Test all available providers
  careerflow providers test --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProvidersTest,
}

var (
	jsonOutput bool
	testAll    bool
)

func init() {
	providersListCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	providersTestCmd.Flags().BoolVar(&testAll, "all", false, "Test all available providers")

	ProvidersCmd.AddCommand(providersListCmd)
	ProvidersCmd.AddCommand(providersTestCmd)
}

func runProvidersList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("failed to build provider registry: %w", err)
	}

	descriptors := registry.Descriptors()

	if jsonOutput {
		return printJSON(descriptors)
	}

	return printProvidersTable(descriptors)
}

func runProvidersTest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("failed to build provider registry: %w", err)
	}

	if testAll {
		descriptors := registry.Descriptors()
		fmt.Printf("Testing %d providers...\n\n", len(descriptors))

		for _, d := range descriptors {
			testProvider(registry, d.Name)
		}
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("provider name required (or use --all)")
	}

	return testProvider(registry, args[0])
}

// testProvider invia un prompt minimo a un singolo provider
func testProvider(registry *providers.Registry, name string) error {
	provider, err := registry.Get(name)
	if err != nil {
		return fmt.Errorf("provider not found: %s", name)
	}

	fmt.Printf("Testing provider: %s\n", provider.Name())
	fmt.Printf("  Priority: %d\n", provider.Priority())

	if !provider.Available() {
		fmt.Println("  Result: SKIPPED (no API key configured)")
		fmt.Println()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	result, err := provider.Send(ctx, "Reply with the single word: OK", providers.Settings{MaxTokens: 8})
	latency := time.Since(start)

	if err != nil {
		fmt.Printf("  Result: FAILED (%v)\n", err)
		fmt.Println()
		return nil
	}

	fmt.Printf("  Latency: %dms\n", latency.Milliseconds())
	fmt.Printf("  Response: %q\n", result.Text)
	fmt.Println("  Result: OK")
	fmt.Println()

	return nil
}

func printProvidersTable(descriptors []providers.Descriptor) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tAVAILABLE\tPRIORITY\tUSES\tOK\tFAILED")
	fmt.Fprintln(w, "----\t---------\t--------\t----\t--\t------")

	for _, d := range descriptors {
		available := "no"
		if d.Available {
			available = "yes"
		}

		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n", d.Name, available, d.Priority, d.Uses, d.Successes, d.Failures)
	}

	return w.Flush()
}
