// Package cli wires the bot together and serves the interactive menu.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/uomi-testnet/uomi-bot/internal/adapters/accounts"
	"github.com/uomi-testnet/uomi-bot/internal/adapters/chain"
	"github.com/uomi-testnet/uomi-bot/internal/adapters/journal"
	"github.com/uomi-testnet/uomi-bot/internal/adapters/results"
	"github.com/uomi-testnet/uomi-bot/internal/config"
	"github.com/uomi-testnet/uomi-bot/internal/core/catalog"
	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
	"github.com/uomi-testnet/uomi-bot/internal/core/service"
	"github.com/uomi-testnet/uomi-bot/internal/observability"
	"github.com/uomi-testnet/uomi-bot/pkg/version"
)

// journalMaxAge bounds how long an unresolved journal entry is kept.
const journalMaxAge = 24 * time.Hour

var rootCmd = &cobra.Command{
	Use:   "uomi-bot",
	Short: "Interactive wallet automation for the UOMI testnet",
	Long: `uomi-bot drives a set of wallets through swaps, wrap/unwrap cycles and
liquidity provisioning on the UOMI Finney testnet.

Keys are read from accounts.txt (one per line) and optional proxies from
proxies.txt. Everything else is configured through the environment or a
.env file.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(version.GetBuildInfo())
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.GetFullVersionString())
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print build information as JSON")
	rootCmd.AddCommand(versionCmd)
}

// runBot performs the startup checks, then hands over to the menu loop. Any
// error returned here is a startup failure.
func runBot(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat, out)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, version.GetBanner())

	if _, err := os.Stat(cfg.AccountsFile); err != nil {
		return fmt.Errorf("account file not found: %w", err)
	}
	source := accounts.NewFileSource(cfg.AccountsFile, cfg.ProxiesFile, logger)

	logger.WithField("rpc", cfg.RPCURL).Info("🔄 Connecting to RPC...")
	conn, err := chain.Dial(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.WithField("chain_id", cfg.ChainID.String()).Info("✅ Connected")

	j := journal.NewWithDir(cfg.JournalDir)
	report, err := journal.Recover(ctx, conn, j, journalMaxAge, logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to recover transaction journal")
	} else if report != (journal.RecoveryReport{}) {
		logger.WithFields(logrus.Fields{
			"confirmed": report.Confirmed,
			"reverted":  report.Reverted,
			"pending":   report.Pending,
			"expired":   report.Expired,
		}).Info("Recovered transaction journal")
	}
	chainID := cfg.ChainID.String()
	client := journal.Track(conn, j, chainID, logger)

	var recorder domain.Recorder
	if cfg.MetricsAddr != "" {
		metrics := observability.NewMetrics("")
		recorder = metrics
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.WithError(err).Warn("Metrics server stopped")
			}
		}()
		logger.WithField("addr", cfg.MetricsAddr).Info("Serving metrics")
	}

	var sink domain.ResultSink = results.NewMemorySink()
	if cfg.Redis.Enabled {
		redisSink, err := results.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, keeping results in memory")
		} else {
			defer redisSink.Close()
			sink = redisSink
		}
	}

	dialer := &journaledDialer{
		inner:   chain.NewProxyDialer(cfg),
		journal: j,
		chainID: chainID,
		logger:  logger,
	}
	defer dialer.inner.Close()

	balances := NewBalanceTable(client, cfg.Assets, out)
	orch := service.NewOrchestrator(service.Options{
		Config:   cfg,
		Accounts: source,
		Catalog:  catalog.New(cfg, client),
		Dialer:   dialer,
		Balances: balances,
		Events:   NewEventLogger(logger, cfg.ExplorerTxURL),
		Results:  sink,
		Metrics:  recorder,
	})

	app := NewApp(AppOptions{
		Runner:   orch,
		Accounts: source,
		Balances: balances,
		In:       in,
		Out:      out,
		Logger:   logger,
	})
	return app.Loop(ctx)
}

// journaledDialer journals transactions sent through proxied connections too.
type journaledDialer struct {
	inner   *chain.ProxyDialer
	journal *journal.Journal
	chainID string
	logger  logrus.FieldLogger
}

func (d *journaledDialer) DialProxy(ctx context.Context, proxy domain.ProxyRef) (domain.ChainClient, error) {
	client, err := d.inner.DialProxy(ctx, proxy)
	if err != nil {
		return nil, err
	}
	return journal.Track(client, d.journal, d.chainID, d.logger), nil
}
