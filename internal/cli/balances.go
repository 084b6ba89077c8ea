package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

// BalanceTable prints the balance of every configured asset per account.
type BalanceTable struct {
	chain  domain.ChainClient
	assets []domain.Asset
	out    io.Writer
}

// NewBalanceTable creates a reporter reading from chain.
func NewBalanceTable(chain domain.ChainClient, assets []domain.Asset, out io.Writer) *BalanceTable {
	return &BalanceTable{chain: chain, assets: assets, out: out}
}

// ReportBalances implements domain.BalanceReporter. Balances that cannot be read
// are shown as "error" and reported in the returned error.
func (b *BalanceTable) ReportBalances(ctx context.Context, accounts []domain.Account) error {
	tw := tabwriter.NewWriter(b.out, 0, 0, 2, ' ', 0)

	header := []string{"#", "Account"}
	for _, a := range b.assets {
		header = append(header, a.Symbol)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	var errs []error
	for _, acct := range accounts {
		cells, err := b.row(ctx, acct)
		if err != nil {
			errs = append(errs, err)
		}
		row := append([]string{fmt.Sprint(acct.Index + 1), acct.Short()}, cells...)
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write balances: %w", err)
	}
	return errors.Join(errs...)
}

// row reads all asset balances of acct concurrently.
func (b *BalanceTable) row(ctx context.Context, acct domain.Account) ([]string, error) {
	cells := make([]string, len(b.assets))
	errs := make([]error, len(b.assets))

	var g errgroup.Group
	for i, asset := range b.assets {
		g.Go(func() error {
			bal, err := b.chain.Balance(ctx, acct.Address, asset)
			if err != nil {
				cells[i] = "error"
				errs[i] = fmt.Errorf("failed to get %s balance for %s: %w", asset.Symbol, acct.Short(), err)
				return nil
			}
			cells[i] = formatBalance(bal)
			return nil
		})
	}
	_ = g.Wait()

	return cells, errors.Join(errs...)
}

func formatBalance(b domain.Balance) string {
	if b.Amount == nil {
		return "0.0000"
	}
	return decimal.NewFromBigInt(b.Amount, -int32(b.Decimals)).StringFixed(4)
}
