package cmd

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/investor/broker"
	"github.com/rustyeddy/investor/broker/gateway"
	"github.com/rustyeddy/investor/broker/paper"
	"github.com/rustyeddy/investor/market"
)

var (
	tradeSymbol string
	tradeShares int64
	tradePrice  string
)

func newTradeCmd(use, short string, kind broker.OrderKind) *cobra.Command {
	c := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrade(cmd, kind)
		},
	}
	c.Flags().StringVar(&tradeSymbol, "symbol", "", "symbol to trade (required)")
	c.Flags().Int64Var(&tradeShares, "shares", 0, "number of shares (required)")
	c.Flags().StringVar(&tradePrice, "price", "", "execution price; omit to use the current quote")
	c.MarkFlagRequired("symbol")
	c.MarkFlagRequired("shares")
	return c
}

func init() {
	rootCmd.AddCommand(
		newTradeCmd("buy", "Buy shares in the paper account", broker.Buy),
		newTradeCmd("sell", "Sell shares from the paper account", broker.Sell),
		newTradeCmd("short", "Short-sell shares in the paper account", broker.ShortSell),
		newTradeCmd("cover", "Buy to cover a short position", broker.BuyToCover),
	)
}

func runTrade(cmd *cobra.Command, kind broker.OrderKind) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var price decimal.Decimal
	quotes := market.QuoteSource(market.NewQuoteStore())
	if tradePrice != "" {
		if price, err = decimal.NewFromString(tradePrice); err != nil {
			return fmt.Errorf("invalid price %q: %w", tradePrice, err)
		}
	} else {
		// no override, so the fill price comes from a live gateway quote
		sess, err := gateway.Dial(gateway.Config{
			Host:        cfg.Live.Host,
			Port:        cfg.Live.Port,
			ClientID:    cfg.Live.ClientID,
			DialTimeout: cfg.Live.Timeout.Std(),
		})
		if err != nil {
			return fmt.Errorf("no --price given and gateway unreachable: %w", err)
		}
		defer sess.Close()
		quotes = sessionQuotes{sess}
	}

	j, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer j.Close()

	b, err := paper.Open(openStore(cfg), quotes, j)
	if err != nil {
		return err
	}

	order := broker.Order{
		Symbol: tradeSymbol,
		Kind:   kind,
		Shares: tradeShares,
		Price:  price,
		Time:   time.Now().UTC(),
	}
	if err := configuredGate(cfg).Check(order); err != nil {
		return err
	}

	rec, err := b.Execute(cmd.Context(), order)
	if err != nil {
		return err
	}

	fmt.Printf("%s %d %s at $%s\n", kind, rec.Order.Shares, rec.Order.Symbol, rec.Order.Price)
	if rec.RealizedPL != nil {
		fmt.Printf("Realized P&L: $%s\n", rec.RealizedPL)
	}
	fmt.Printf("Cash: $%s\n", rec.ResultingCash)
	return nil
}
