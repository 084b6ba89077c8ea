package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
	"github.com/uomi-testnet/uomi-bot/internal/core/service"
)

// Menu options.
const (
	optionSwap = iota + 1
	optionWrap
	optionUnwrap
	optionAuto
	optionLiquidity
	optionAll
	optionRepetitions
	optionBalances
	optionExit
)

var menuModes = map[int]domain.RunMode{
	optionSwap:      domain.ModeSwap,
	optionWrap:      domain.ModeWrap,
	optionUnwrap:    domain.ModeUnwrap,
	optionAuto:      domain.ModeAuto,
	optionLiquidity: domain.ModeLiquidity,
	optionAll:       domain.ModeAll,
}

const menuText = `
Menu:
 1. Swap UOMI
 2. Wrap UOMI
 3. Unwrap WUOMI
 4. Auto Wrap + Unwrap
 5. Add Liquidity
 6. Run Everything
 7. Set Repetition Count
 8. Show Balances
 9. Exit
`

// Runner executes a RunPlan.
type Runner interface {
	Run(ctx context.Context, plan domain.RunPlan) (*domain.RunSummary, error)
}

var _ Runner = (*service.Orchestrator)(nil)

// App is the interactive menu loop.
type App struct {
	runner   Runner
	accounts domain.AccountSource
	balances domain.BalanceReporter
	prompter *Prompter
	out      io.Writer
	logger   logrus.FieldLogger
	rand     *rand.Rand

	repetitions int
}

// AppOptions configures an App.
type AppOptions struct {
	Runner   Runner
	Accounts domain.AccountSource
	Balances domain.BalanceReporter
	In       io.Reader
	Out      io.Writer
	Logger   logrus.FieldLogger
	Rand     *rand.Rand
}

// NewApp creates the menu loop.
func NewApp(opts AppOptions) *App {
	r := opts.Rand
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &App{
		runner:   opts.Runner,
		accounts: opts.Accounts,
		balances: opts.Balances,
		prompter: NewPrompter(opts.In, opts.Out),
		out:      opts.Out,
		logger:   opts.Logger,
		rand:     r,
	}
}

// Loop asks for the repetition count, then serves the menu until Exit or end of input.
func (a *App) Loop(ctx context.Context) error {
	if err := a.askRepetitions(); err != nil {
		return ignoreEOF(err)
	}

	for {
		fmt.Fprint(a.out, menuText)
		choice, err := a.prompter.Int("Choose an option (1-9): ", optionSwap, optionExit)
		if err != nil {
			return ignoreEOF(err)
		}

		switch choice {
		case optionRepetitions:
			if err := a.askRepetitions(); err != nil {
				return ignoreEOF(err)
			}
		case optionBalances:
			a.showBalances(ctx)
		case optionExit:
			fmt.Fprintln(a.out, "Goodbye!")
			return nil
		default:
			if err := a.runMode(ctx, menuModes[choice]); err != nil {
				return ignoreEOF(err)
			}
		}
	}
}

func (a *App) askRepetitions() error {
	n, err := a.prompter.Int("How many times do you want to repeat each action? ", 1, 0)
	if err != nil {
		return err
	}
	a.repetitions = n
	fmt.Fprintf(a.out, "Repetition count set to %d\n", n)
	return nil
}

func (a *App) runMode(ctx context.Context, mode domain.RunMode) error {
	plan := domain.RunPlan{Mode: mode, Repetitions: a.repetitions}

	if mode.UsesProxy() {
		proxy, err := a.chooseProxy()
		if err != nil {
			return err
		}
		plan.Proxy = proxy
	}

	summary, err := a.runner.Run(ctx, plan)
	if err != nil {
		a.logger.WithError(err).Errorf("❌ %s run failed", mode)
		return nil
	}
	fmt.Fprintf(a.out, "\n%s finished: %d confirmed, %d skipped, %d failed\n", mode, summary.Confirmed, summary.Skipped, summary.Failed)
	return nil
}

// chooseProxy offers a random proxy when the proxy file has any.
func (a *App) chooseProxy() (domain.ProxyRef, error) {
	proxies, err := a.accounts.LoadProxies()
	if err != nil {
		a.logger.WithError(err).Warn("Failed to load proxies, running without proxy")
		return "", nil
	}
	if len(proxies) == 0 {
		a.logger.Info("No proxies found, running without proxy")
		return "", nil
	}

	fmt.Fprintln(a.out, "Proxy Options:\n 1. Run With Private Proxy\n 2. Run Without Proxy")
	choice, err := a.prompter.Int("Choose (1-2): ", 1, 2)
	if err != nil {
		return "", err
	}
	if choice == 2 {
		return "", nil
	}

	proxy := proxies[a.rand.IntN(len(proxies))]
	shown := string(proxy)
	if len(shown) > 15 {
		shown = shown[:15] + "..."
	}
	a.logger.Infof("Using proxy: %s", shown)
	return proxy, nil
}

func (a *App) showBalances(ctx context.Context) {
	creds, err := a.accounts.LoadAccounts()
	if err != nil {
		a.logger.WithError(err).Error("❌ Failed to load accounts")
		return
	}

	accounts := make([]domain.Account, 0, len(creds))
	for i, c := range creds {
		acct, err := c.Account(i)
		if err != nil {
			a.logger.WithField("account", i+1).WithError(err).Warn("Skipping invalid credential")
			continue
		}
		accounts = append(accounts, acct)
	}
	if len(accounts) == 0 {
		a.logger.Error("❌ " + domain.ErrNoAccounts.Error())
		return
	}

	if err := a.balances.ReportBalances(ctx, accounts); err != nil {
		a.logger.WithError(err).Warn("Some balances could not be read")
	}
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
