package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/mselser95/hyperdrive-amm/internal/app"
	"github.com/mselser95/hyperdrive-amm/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the AMM service",
	Long: `Starts the AMM service, which will:
1. Load pool parameters from the configured TOML file
2. Serve the trading and quoting REST API
3. Stream committed operations over websocket at /ws
4. Mint due checkpoints in the background so matured positions settle

Pool parameters are immutable once the service is running.`,
	RunE: runServer,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("pool-config", "p", "", "Path to the pool parameter file (overrides POOL_CONFIG_PATH)")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load .env
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found\n")
	}

	// Load config
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create logger
	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Get flags
	poolConfigPath, _ := cmd.Flags().GetString("pool-config")

	// Create app with options
	opts := &app.Options{
		PoolConfigPath: poolConfigPath,
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	// Run app
	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
