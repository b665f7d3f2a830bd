package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/investor/broker"
	"github.com/rustyeddy/investor/config"
	"github.com/rustyeddy/investor/journal"
	"github.com/rustyeddy/investor/permit"
	"github.com/rustyeddy/investor/store"
)

var rootCmd = &cobra.Command{
	Use:   "investor",
	Short: "An automated trading account with paper and live execution",
	Long: `Investor operates an automated trading account.

It decodes a trading policy's decisions into brokerage operations,
keeps an authoritative ledger of cash and positions, enforces trading
permissions before any order executes, and persists account state
durably across restarts.

Orders execute against a simulated paper account by default; live
execution through a brokerage gateway must be enabled explicitly.`,
}

var cfgPath string

// Execute runs the root command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (YAML)")

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgPath)
}

func openStore(cfg *config.Config) *store.Store {
	return store.New(cfg.Account.StatePath)
}

func openJournal(cfg *config.Config) (journal.Journal, error) {
	if cfg.Account.JournalPath == "" {
		return journal.Noop{}, nil
	}
	return journal.NewSQLite(cfg.Account.JournalPath)
}

func configuredGate(cfg *config.Config) *permit.Gate {
	return permit.NewGate(permit.Set{
		broker.Buy:        cfg.Permissions.Buy,
		broker.Sell:       cfg.Permissions.Sell,
		broker.ShortSell:  cfg.Permissions.ShortSell,
		broker.BuyToCover: cfg.Permissions.BuyToCover,
	})
}
