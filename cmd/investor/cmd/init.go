package cmd

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/investor/broker/paper"
	"github.com/rustyeddy/investor/market"
	"github.com/rustyeddy/investor/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new paper account with a starting balance",
	Long: `Create and persist a fresh paper trading account.

Refuses to overwrite an existing account file, including a corrupted
one, unless --force is given.

Example:
  investor init --balance 100000`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var (
	initBalance string
	initForce   bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initBalance, "balance", "", "starting cash balance (required)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "replace an existing or corrupted account file")
	initCmd.MarkFlagRequired("balance")
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	deposit, err := decimal.NewFromString(initBalance)
	if err != nil {
		return fmt.Errorf("invalid balance %q: %w", initBalance, err)
	}

	db := openStore(cfg)
	if db.Exists() && !initForce {
		if _, err := db.Load(); errors.Is(err, store.ErrCorrupted) {
			return fmt.Errorf("%w; rerun with --force to discard it", err)
		}
		return fmt.Errorf("account file %s already exists; rerun with --force to replace it", db.Path())
	}

	b, err := paper.Init(db, deposit, market.NewQuoteStore(), nil)
	if err != nil {
		return err
	}

	acct, _ := b.GetAccount(cmd.Context())
	fmt.Printf("Account initialized: cash $%s\n", acct.Cash)
	fmt.Printf("State file: %s\n", db.Path())
	return nil
}
