package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/investor/bot"
	"github.com/rustyeddy/investor/broker"
	"github.com/rustyeddy/investor/broker/gateway"
	"github.com/rustyeddy/investor/broker/live"
	"github.com/rustyeddy/investor/broker/paper"
	"github.com/rustyeddy/investor/config"
	"github.com/rustyeddy/investor/journal"
	"github.com/rustyeddy/investor/market"
	"github.com/rustyeddy/investor/policy"
	"github.com/rustyeddy/investor/strategies"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the decision loop against the configured account",
	Long: `Run polls quotes for the watchlist, asks the chosen strategy for
decisions, and submits the permitted ones. Paper mode executes against the
local simulated account using gateway quotes; --live routes orders through
the brokerage gateway instead (execution stays read-only unless enabled in
the configuration).`,
	Args: cobra.NoArgs,
	RunE: runBot,
}

var (
	runStrategy string
	runLive     bool
	runSymbols  []string
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runStrategy, "strategy", "threshold", "strategy to run (threshold|policy)")
	runCmd.Flags().BoolVar(&runLive, "live", false, "trade through the brokerage gateway instead of the paper account")
	runCmd.Flags().StringSliceVar(&runSymbols, "symbols", nil, "watchlist override, comma separated")
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	symbols := cfg.Bot.Symbols
	if len(runSymbols) > 0 {
		symbols = runSymbols
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no watchlist: set bot.symbols in the config or pass --symbols")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gate := configuredGate(cfg)

	j, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer j.Close()

	sess, err := gateway.Dial(gateway.Config{
		Host:        cfg.Live.Host,
		Port:        cfg.Live.Port,
		ClientID:    cfg.Live.ClientID,
		DialTimeout: cfg.Live.Timeout.Std(),
	})
	if err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}
	defer sess.Close()

	var b broker.Broker
	if runLive {
		conn := buildConnector(cfg, sess, j)
		if err := conn.Connect(ctx, gate); err != nil {
			return err
		}
		b = conn
	} else {
		pb, err := paper.Open(openStore(cfg), sessionQuotes{sess}, j)
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no account at %s, create one with `investor init`", cfg.Account.StatePath)
		}
		if err != nil {
			return err
		}
		b = pb
	}

	strat, cleanup, err := buildStrategy(cfg, symbols)
	if err != nil {
		return err
	}
	defer cleanup()

	runner, err := bot.NewRunner(bot.Config{
		Symbols:        symbols,
		PollInterval:   cfg.Bot.PollInterval.Std(),
		OrderShares:    cfg.Bot.OrderShares,
		MaxOrderShares: cfg.Bot.MaxOrderShares,
	}, strat, gate, b, j)
	if err != nil {
		return err
	}

	return runner.Run(ctx)
}

func buildConnector(cfg *config.Config, sess live.Session, j journal.Journal) *live.Connector {
	opts := []live.Option{
		live.WithTimeout(cfg.Live.Timeout.Std()),
		live.WithJournal(j),
	}
	if cfg.Live.Execution {
		opts = append(opts, live.WithExecution())
	}
	return live.NewConnector(sess, opts...)
}

func buildStrategy(cfg *config.Config, symbols []string) (strategies.Strategy, func(), error) {
	none := func() {}
	switch runStrategy {
	case "threshold":
		buy, err := decimal.NewFromString(cfg.Bot.BuyThreshold)
		if err != nil {
			return nil, none, fmt.Errorf("bot.buy_threshold: %w", err)
		}
		sell, err := decimal.NewFromString(cfg.Bot.SellThreshold)
		if err != nil {
			return nil, none, fmt.Errorf("bot.sell_threshold: %w", err)
		}
		strat, err := strategies.NewThreshold(buy, sell)
		if err != nil {
			return nil, none, err
		}
		return strat, none, nil

	case "policy":
		if cfg.Bot.ModelPath == "" {
			return nil, none, fmt.Errorf("policy strategy needs bot.model_path")
		}
		obsLen := 1 + len(symbols)*(2+cfg.Bot.PriceWindow)
		model, err := policy.NewONNX(cfg.Bot.ModelPath, obsLen, len(symbols), strategies.ActionCount)
		if err != nil {
			return nil, none, err
		}
		strat, err := strategies.NewPolicyStrategy(model, symbols, cfg.Bot.PriceWindow)
		if err != nil {
			model.Close()
			return nil, none, err
		}
		return strat, func() { model.Close() }, nil

	default:
		return nil, none, fmt.Errorf("unknown strategy %q, want threshold or policy", runStrategy)
	}
}

// sessionQuotes lets the paper broker price fills from gateway quotes.
type sessionQuotes struct {
	sess *gateway.Session
}

func (q sessionQuotes) GetQuote(ctx context.Context, symbol string) (market.Quote, error) {
	return q.sess.Quote(ctx, symbol)
}

var _ market.QuoteSource = sessionQuotes{}
