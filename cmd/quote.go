package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/mselser95/hyperdrive-amm/internal/ledger"
	"github.com/mselser95/hyperdrive-amm/internal/pool"
	"github.com/mselser95/hyperdrive-amm/internal/vault"
	"github.com/mselser95/hyperdrive-amm/pkg/config"
	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Preview trades against a freshly seeded pool",
	Long: `Seeds an in-memory pool from the configured parameter file and prints
trade previews without starting the service.

Useful for sanity-checking pool parameters before deploying: the command
shows the resulting fixed rate, the bond proceeds of an open long, the
deposit required for an open short, and the maximum trade sizes.`,
	RunE: runQuote,
}

var (
	quoteContribution string
	quoteAPR          string
	quoteBase         string
	quoteBonds        string
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVarP(&quoteContribution, "contribution", "c", "100000", "Initial LP contribution in base")
	quoteCmd.Flags().StringVarP(&quoteAPR, "apr", "a", "0.05", "Target fixed rate at initialization")
	quoteCmd.Flags().StringVarP(&quoteBase, "base", "b", "10000", "Base amount for the open long preview")
	quoteCmd.Flags().StringVarP(&quoteBonds, "bonds", "y", "10000", "Bond amount for the open short preview")
}

func runQuote(cmd *cobra.Command, args []string) error {
	// Load .env
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found\n")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	poolCfg, err := config.LoadPoolFile(cfg.PoolConfigPath)
	if err != nil {
		return fmt.Errorf("load pool file: %w", err)
	}

	contribution, err := fixedpoint.Parse(quoteContribution)
	if err != nil {
		return fmt.Errorf("invalid contribution: %w", err)
	}
	apr, err := fixedpoint.Parse(quoteAPR)
	if err != nil {
		return fmt.Errorf("invalid apr: %w", err)
	}
	base, err := fixedpoint.Parse(quoteBase)
	if err != nil {
		return fmt.Errorf("invalid base: %w", err)
	}
	bonds, err := fixedpoint.Parse(quoteBonds)
	if err != nil {
		return fmt.Errorf("invalid bonds: %w", err)
	}

	initialPrice, err := fixedpoint.Parse(cfg.VaultInitialSharePrice)
	if err != nil {
		return fmt.Errorf("parse VAULT_INITIAL_SHARE_PRICE: %w", err)
	}
	vaultAPR, err := fixedpoint.Parse(cfg.VaultAPR)
	if err != nil {
		return fmt.Errorf("parse VAULT_APR: %w", err)
	}

	src := vault.NewMockSource(initialPrice, vaultAPR, time.Now)
	p, err := pool.New(pool.Options{
		Config: poolCfg,
		Vault:  src,
		Ledger: ledger.NewMemoryLedger(),
		Logger: logger,
		Now:    time.Now,
	})
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}

	ctx := context.Background()
	lp := common.HexToAddress("0x0000000000000000000000000000000000000001")

	lpShares, err := p.Initialize(ctx, lp, contribution, apr)
	if err != nil {
		return fmt.Errorf("initialize pool: %w", err)
	}

	spotPrice, err := p.SpotPrice(ctx)
	if err != nil {
		return fmt.Errorf("spot price: %w", err)
	}
	spotRate, err := p.SpotRate(ctx)
	if err != nil {
		return fmt.Errorf("spot rate: %w", err)
	}

	fmt.Printf("=== Pool Preview ===\n\n")
	fmt.Printf("Pool Config:   %s\n", cfg.PoolConfigPath)
	fmt.Printf("Contribution:  %s base\n", contribution)
	fmt.Printf("LP Shares:     %s\n", lpShares)
	fmt.Printf("Spot Price:    %s\n", spotPrice)
	fmt.Printf("Fixed Rate:    %s\n\n", spotRate)

	longQuote, err := p.PreviewOpenLong(ctx, base)
	if err != nil {
		return fmt.Errorf("preview open long: %w", err)
	}
	fmt.Printf("Open Long (%s base):\n", base)
	fmt.Printf("  Bond Proceeds: %s\n", longQuote.Amount)
	fmt.Printf("  Maturity:      %s\n\n", time.Unix(longQuote.MaturityTime, 0).UTC().Format(time.RFC3339))

	shortQuote, err := p.PreviewOpenShort(ctx, bonds)
	if err != nil {
		return fmt.Errorf("preview open short: %w", err)
	}
	fmt.Printf("Open Short (%s bonds):\n", bonds)
	fmt.Printf("  Base Deposit:  %s\n", shortQuote.Amount)
	fmt.Printf("  Maturity:      %s\n\n", time.Unix(shortQuote.MaturityTime, 0).UTC().Format(time.RFC3339))

	maxLong, err := p.MaxOpenLong(ctx)
	if err != nil {
		return fmt.Errorf("max open long: %w", err)
	}
	maxShort, err := p.MaxOpenShort(ctx)
	if err != nil {
		return fmt.Errorf("max open short: %w", err)
	}
	fmt.Printf("Max Open Long:  %s base\n", maxLong)
	fmt.Printf("Max Open Short: %s bonds\n", maxShort)

	return nil
}
