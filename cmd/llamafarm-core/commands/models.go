package commands

import (
	"context"
	"fmt"

	"github.com/llamafarm/llamafarm-core/internal/provider"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models reachable from the process environment's provider credentials",
	Long: `models registers providers from the same environment variables
(ANTHROPIC_API_KEY, OPENAI_API_KEY, ARK_API_KEY) a running "serve"
would, then lists every model each exposes. It does not talk to a
running server — this reflects what the current environment, not a
running process, has credentials for.`,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	reg, err := provider.InitializeFromEnv(context.Background())
	if err != nil {
		return err
	}

	models := reg.AllModels()
	if len(models) == 0 {
		fmt.Println("no providers have credentials in the current environment")
		return nil
	}

	for _, m := range models {
		fmt.Printf("%s/%s  (context=%d, tools=%v, vision=%v)\n", m.ProviderID, m.ID, m.ContextLength, m.SupportsTools, m.SupportsVision)
	}
	return nil
}
