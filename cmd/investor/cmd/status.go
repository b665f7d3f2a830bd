package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/investor/journal"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show account balance, positions and recent trades",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var statusTrades int

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().IntVar(&statusTrades, "trades", 10, "number of recent trades to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg).Load()
	if err != nil {
		return err
	}

	fmt.Printf("Cash:     $%s\n", st.Cash)
	fmt.Printf("Deposit:  $%s\n", st.Deposit)
	fmt.Printf("Realized: $%s\n", st.Realized)

	if len(st.Positions) == 0 {
		fmt.Println("\nNo open positions")
	} else {
		fmt.Println("\nPositions:")
		for sym, p := range st.Positions {
			if p.LongShares > 0 {
				fmt.Printf("  %-6s long  %6d @ $%s\n", sym, p.LongShares, p.LongAvgCost)
			}
			if p.ShortShares > 0 {
				fmt.Printf("  %-6s short %6d @ $%s\n", sym, p.ShortShares, p.ShortAvgCost)
			}
		}
	}

	if cfg.Account.JournalPath == "" {
		return nil
	}
	j, err := journal.NewSQLite(cfg.Account.JournalPath)
	if err != nil {
		return err
	}
	defer j.Close()

	trades, err := j.RecentTrades(statusTrades)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		return nil
	}

	fmt.Println("\nRecent trades:")
	for _, tr := range trades {
		pl := "-"
		if tr.RealizedPL != nil {
			pl = "$" + tr.RealizedPL.String()
		}
		fmt.Printf("  %s  %-12s %-6s %5d @ $%-10s pnl %s\n",
			tr.Order.Time.Format("2006-01-02 15:04"),
			tr.Order.Kind, tr.Order.Symbol, tr.Order.Shares, tr.Order.Price, pl)
	}
	return nil
}
