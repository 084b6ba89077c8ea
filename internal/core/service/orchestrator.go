package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/uomi-testnet/uomi-bot/internal/config"
	"github.com/uomi-testnet/uomi-bot/internal/core/catalog"
	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

// allSteps is the step order of an "all" run.
var allSteps = []domain.RunStep{
	domain.StepBalances,
	domain.StepSwaps,
	domain.StepWrap,
	domain.StepUnwrap,
	domain.StepAuto,
	domain.StepLiquidity,
	domain.StepBalances,
}

// Options configures an Orchestrator. Config, Accounts and Catalog are required.
type Options struct {
	Config   config.Config
	Accounts domain.AccountSource
	Catalog  *catalog.Catalog

	Dialer   domain.Dialer
	Balances domain.BalanceReporter
	Events   domain.EventSink
	Results  domain.ResultSink
	Metrics  domain.Recorder
	Sleeper  domain.Sleeper
	Rand     *rand.Rand
	Now      func() time.Time
	NewRunID func() string
}

// Orchestrator runs a RunPlan against every loaded account, one action at a time.
type Orchestrator struct {
	cfg      config.Config
	accounts domain.AccountSource
	catalog  *catalog.Catalog
	dialer   domain.Dialer
	balances domain.BalanceReporter
	events   domain.EventSink
	results  domain.ResultSink
	metrics  domain.Recorder
	sleeper  domain.Sleeper
	rand     *rand.Rand
	now      func() time.Time
	newRunID func() string
}

// NewOrchestrator creates an orchestrator, filling unset collaborators with no-ops.
func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		cfg:      opts.Config,
		accounts: opts.Accounts,
		catalog:  opts.Catalog,
		dialer:   opts.Dialer,
		balances: opts.Balances,
		events:   opts.Events,
		results:  opts.Results,
		metrics:  opts.Metrics,
		sleeper:  opts.Sleeper,
		rand:     opts.Rand,
		now:      opts.Now,
		newRunID: opts.NewRunID,
	}
	if o.events == nil {
		o.events = discardEvents{}
	}
	if o.results == nil {
		o.results = discardResults{}
	}
	if o.metrics == nil {
		o.metrics = discardMetrics{}
	}
	if o.sleeper == nil {
		o.sleeper = domain.SleeperFunc(time.Sleep)
	}
	if o.rand == nil {
		seed := uint64(time.Now().UnixNano())
		o.rand = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newRunID == nil {
		o.newRunID = uuid.NewString
	}
	return o
}

// slot is one loaded credential and the account derived from it.
type slot struct {
	account domain.Account
	err     error
}

// run carries the state of a single Run call.
type run struct {
	plan    domain.RunPlan
	slots   []slot
	summary *domain.RunSummary
}

// Run executes plan and returns the summary of every attempted action. Individual
// action failures never abort the run; only setup errors are returned.
func (o *Orchestrator) Run(ctx context.Context, plan domain.RunPlan) (*domain.RunSummary, error) {
	if plan.Repetitions < 1 {
		return nil, fmt.Errorf("repetitions must be positive, got %d", plan.Repetitions)
	}

	creds, err := o.accounts.LoadAccounts()
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	if len(creds) == 0 {
		return nil, domain.ErrNoAccounts
	}

	r := &run{
		plan:  plan,
		slots: make([]slot, len(creds)),
		summary: &domain.RunSummary{
			RunID:     o.newRunID(),
			Mode:      plan.Mode,
			StartedAt: o.now(),
		},
	}
	for i, cred := range creds {
		acct, err := cred.Account(i)
		r.slots[i] = slot{account: acct, err: err}
		if err != nil {
			o.warn(nil, domain.OperationKind(0), fmt.Sprintf("Account #%d: %v", i+1, err))
		}
	}

	o.metrics.ObserveRun(plan.Mode)
	o.info(fmt.Sprintf("Starting %s run %s for %d account(s), %d repetition(s)", plan.Mode, r.summary.RunID, len(creds), plan.Repetitions))

	switch plan.Mode {
	case domain.ModeSwap:
		o.runStep(ctx, r, domain.StepSwaps)
	case domain.ModeWrap:
		o.runStep(ctx, r, domain.StepWrap)
	case domain.ModeUnwrap:
		o.runStep(ctx, r, domain.StepUnwrap)
	case domain.ModeAuto:
		o.runStep(ctx, r, domain.StepAuto)
	case domain.ModeLiquidity:
		o.runStep(ctx, r, domain.StepLiquidity)
	case domain.ModeAll:
		for i, step := range allSteps {
			if i > 0 {
				o.sleeper.Sleep(o.cfg.StepDelay)
			}
			o.runStep(ctx, r, step)
		}
	default:
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownRunMode, int(plan.Mode))
	}

	s := r.summary
	s.FinishedAt = o.now()
	if err := o.results.Finish(ctx, s); err != nil {
		o.warn(nil, domain.OperationKind(0), fmt.Sprintf("Failed to store run summary: %v", err))
	}
	o.info(fmt.Sprintf("Run %s complete: %d confirmed, %d skipped, %d failed", s.RunID, s.Confirmed, s.Skipped, s.Failed))

	return s, nil
}

func (o *Orchestrator) runStep(ctx context.Context, r *run, step domain.RunStep) {
	r.summary.Steps = append(r.summary.Steps, step)

	switch step {
	case domain.StepBalances:
		o.reportBalances(ctx, r)
	case domain.StepSwaps:
		o.runSwaps(ctx, r)
	case domain.StepWrap, domain.StepUnwrap, domain.StepAuto:
		o.runWrapCycle(ctx, r, step)
	case domain.StepLiquidity:
		o.runLiquidity(ctx, r)
	}
}

func (o *Orchestrator) reportBalances(ctx context.Context, r *run) {
	if o.balances == nil {
		return
	}
	accounts := make([]domain.Account, 0, len(r.slots))
	for _, s := range r.slots {
		if s.err == nil {
			accounts = append(accounts, s.account)
		}
	}
	if len(accounts) == 0 {
		return
	}
	if err := o.balances.ReportBalances(ctx, accounts); err != nil {
		o.warn(nil, domain.OperationKind(0), fmt.Sprintf("Failed to report balances: %v", err))
	}
}

// runSwaps performs R swaps per account into a random target, pausing between
// successive swaps but not after the last one.
func (o *Orchestrator) runSwaps(ctx context.Context, r *run) {
	reps := r.plan.Repetitions
	wrapped := o.cfg.MustAsset(o.cfg.WrappedAsset)

	remaining := 0
	for _, s := range r.slots {
		if s.err == nil {
			remaining += reps
		}
	}

	for _, s := range r.slots {
		for i := 0; i < reps; i++ {
			target := o.cfg.MustAsset(o.cfg.SwapTargets[o.rand.IntN(len(o.cfg.SwapTargets))])
			spec := domain.OperationSpec{
				Kind:    domain.KindSwap,
				Account: s.account,
				TokenA:  wrapped,
				TokenB:  target,
				AmountA: catalog.ToBaseUnits(drawAmount(o.rand, o.cfg.SwapAmount), 18),
			}
			if s.err != nil {
				o.execute(ctx, r, o.catalog, s, spec)
				continue
			}

			o.progress(s.account.Address, spec.Kind, fmt.Sprintf("Swap %d/%d: %s %s -> %s", i+1, reps, catalog.FormatUnits(spec.AmountA, 18), o.cfg.NativeSymbol, target.Symbol))
			o.execute(ctx, r, o.catalog, s, spec)

			remaining--
			if remaining > 0 {
				o.sleeper.Sleep(drawDelay(o.rand, o.cfg.SwapDelay))
			}
		}
	}
}

// runWrapCycle drives the wrap, unwrap and auto steps. Auto unwraps the amount it
// just wrapped.
func (o *Orchestrator) runWrapCycle(ctx context.Context, r *run, step domain.RunStep) {
	reps := r.plan.Repetitions

	for _, s := range r.slots {
		for i := 0; i < reps; i++ {
			last := i == reps-1
			amount := catalog.ToBaseUnits(drawAmount(o.rand, o.cfg.WrapAmount), 18)
			wrap := domain.OperationSpec{Kind: domain.KindWrap, Account: s.account, AmountA: amount}
			unwrap := domain.OperationSpec{Kind: domain.KindUnwrap, Account: s.account, AmountA: amount}

			if s.err != nil {
				switch step {
				case domain.StepWrap:
					o.execute(ctx, r, o.catalog, s, wrap)
				case domain.StepUnwrap:
					o.execute(ctx, r, o.catalog, s, unwrap)
				case domain.StepAuto:
					o.execute(ctx, r, o.catalog, s, wrap)
					o.execute(ctx, r, o.catalog, s, unwrap)
				}
				continue
			}

			human := catalog.FormatUnits(amount, 18)
			switch step {
			case domain.StepWrap:
				o.progress(s.account.Address, domain.KindWrap, fmt.Sprintf("Wrap %d/%d: %s %s", i+1, reps, human, o.cfg.NativeSymbol))
				o.execute(ctx, r, o.catalog, s, wrap)
				if !last {
					o.sleeper.Sleep(o.cfg.RepeatDelay)
				}
			case domain.StepUnwrap:
				o.progress(s.account.Address, domain.KindUnwrap, fmt.Sprintf("Unwrap %d/%d: %s %s", i+1, reps, human, o.cfg.WrappedAsset))
				o.execute(ctx, r, o.catalog, s, unwrap)
				if !last {
					o.sleeper.Sleep(o.cfg.RepeatDelay)
				}
			case domain.StepAuto:
				o.progress(s.account.Address, domain.KindWrap, fmt.Sprintf("Auto %d/%d: wrap then unwrap %s", i+1, reps, human))
				o.execute(ctx, r, o.catalog, s, wrap)
				o.sleeper.Sleep(o.cfg.RepeatDelay)
				o.execute(ctx, r, o.catalog, s, unwrap)
				if !last {
					o.sleeper.Sleep(o.cfg.RepeatDelay)
				}
			}
		}
	}
}

// runLiquidity adds liquidity to every configured pair from one randomly chosen
// account, optionally through a proxy.
func (o *Orchestrator) runLiquidity(ctx context.Context, r *run) {
	s := r.slots[o.rand.IntN(len(r.slots))]
	reps := r.plan.Repetitions

	cat := o.catalog
	if r.plan.Proxy != "" && o.dialer != nil {
		client, err := o.dialer.DialProxy(ctx, r.plan.Proxy)
		if err != nil {
			o.warn(nil, domain.KindAddLiquidity, fmt.Sprintf("Failed to connect through proxy, using direct connection: %v", err))
		} else {
			cat = cat.WithChain(client)
			o.info("Using proxy for liquidity transactions")
		}
	}

	for i := 0; i < reps; i++ {
		if s.err == nil {
			o.progress(s.account.Address, domain.KindAddLiquidity, fmt.Sprintf("Liquidity iteration %d/%d", i+1, reps))
		}

		for _, pair := range o.cfg.LiquidityPairs {
			if !pair.Amount.IsPositive() {
				continue
			}
			spec := domain.OperationSpec{
				Kind:    domain.KindAddLiquidity,
				Account: s.account,
				TokenA:  o.cfg.MustAsset(pair.TokenA),
				TokenB:  o.cfg.MustAsset(pair.TokenB),
				Amount:  pair.Amount,
			}
			o.execute(ctx, r, cat, s, spec)
		}

		if s.err == nil {
			o.sleeper.Sleep(drawDelay(o.rand, o.cfg.LiquidityDelay))
		}
	}
}

// execute drives one spec through its state machine and records the result.
func (o *Orchestrator) execute(ctx context.Context, r *run, cat *catalog.Catalog, s slot, spec domain.OperationSpec) domain.ActionResult {
	res := domain.ActionResult{
		Seq:       len(r.summary.Results) + 1,
		Account:   s.account.Address,
		Kind:      spec.Kind,
		Label:     spec.Label(),
		StartedAt: o.now(),
	}

	if s.err != nil {
		res.Err = &domain.PreconditionError{Reason: "invalid credential", Err: s.err}
		return o.finish(ctx, r, res)
	}

	state := domain.StatePending
	transition := func(next domain.State) {
		o.emit(domain.Event{
			Level:   domain.LevelDebug,
			Account: &res.Account,
			Kind:    spec.Kind,
			Message: fmt.Sprintf("%s: %s -> %s", res.Label, state, next),
		})
		state = next
	}

	if spec.Kind == domain.KindSwap {
		transition(domain.StateQuoting)
	}

	calls, err := cat.Plan(ctx, spec)
	if err == nil {
		for _, call := range calls {
			var hash common.Hash
			hash, err = o.submit(ctx, cat.Chain(), s.account, spec.Kind, call, transition)
			if hash != (common.Hash{}) {
				res.TxHashes = append(res.TxHashes, hash)
			}
			if err != nil {
				break
			}
		}
	}

	res.Err = err
	return o.finish(ctx, r, res)
}

// submit sends one call and waits for its receipt.
func (o *Orchestrator) submit(ctx context.Context, chain domain.ChainClient, acct domain.Account, kind domain.OperationKind, call domain.Call, transition func(domain.State)) (common.Hash, error) {
	transition(domain.StateSubmitting)

	gas, err := catalog.ResolveGas(ctx, chain, acct.Address, call)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to prepare %s: %w", call.Label, err)
	}

	hash, err := chain.Submit(ctx, acct, call, gas)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send %s: %w", call.Label, err)
	}
	o.emit(domain.Event{
		Level:   domain.LevelInfo,
		Account: &acct.Address,
		Kind:    kind,
		Message: fmt.Sprintf("%s sent", call.Label),
		TxHash:  &hash,
	})

	transition(domain.StateAwaitingConfirmation)
	sentAt := o.now()
	receipt, err := chain.WaitForConfirmation(ctx, hash)
	if err != nil {
		return hash, fmt.Errorf("failed to confirm %s: %w", call.Label, err)
	}
	o.metrics.ObserveConfirmation(kind, o.now().Sub(sentAt))

	if !receipt.Succeeded() {
		return hash, &domain.RevertError{TxHash: hash, Label: call.Label}
	}
	return hash, nil
}

// finish classifies res, stores it and reports it.
func (o *Orchestrator) finish(ctx context.Context, r *run, res domain.ActionResult) domain.ActionResult {
	res.Outcome, res.State = domain.Classify(res.Err)
	res.FinishedAt = o.now()

	var pe *domain.PreconditionError
	switch {
	case errors.As(res.Err, &pe):
		res.Reason = pe.Reason
	case res.Err != nil:
		res.Reason = res.Err.Error()
	}

	r.summary.Add(res)
	o.metrics.ObserveAction(res.Kind, res.Outcome, reasonCode(res.Err))
	if err := o.results.Record(ctx, r.summary.RunID, res); err != nil {
		o.warn(nil, res.Kind, fmt.Sprintf("Failed to store result: %v", err))
	}

	e := domain.Event{Account: &res.Account, Kind: res.Kind}
	if n := len(res.TxHashes); n > 0 {
		e.TxHash = &res.TxHashes[n-1]
	}
	name := res.Label
	if name != res.Kind.String() {
		name = res.Kind.String() + " " + name
	}
	switch res.Outcome {
	case domain.OutcomeSuccess:
		e.Level = domain.LevelSuccess
		e.Message = name + " confirmed"
	case domain.OutcomeSkipped:
		e.Level = domain.LevelWarning
		e.Message = fmt.Sprintf("Skipping %s: %s", name, res.Reason)
	default:
		e.Level = domain.LevelError
		e.Message = fmt.Sprintf("%s failed: %s", name, res.Reason)
	}
	o.emit(e)

	return res
}

// reasonCode reduces an action error to a low-cardinality metrics label.
func reasonCode(err error) string {
	var (
		pe *domain.PreconditionError
		re *domain.RevertError
		te *domain.TimeoutError
		ne *domain.NetworkError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrInvalidCredential):
		return "invalid_credential"
	case errors.As(err, &pe):
		return "precondition"
	case errors.As(err, &re):
		return "reverted"
	case errors.As(err, &te):
		return "timeout"
	case errors.As(err, &ne):
		return "network"
	default:
		return "error"
	}
}

func (o *Orchestrator) emit(e domain.Event) {
	if e.Time.IsZero() {
		e.Time = o.now()
	}
	o.events.Emit(e)
}

func (o *Orchestrator) progress(addr common.Address, kind domain.OperationKind, msg string) {
	o.emit(domain.Event{Level: domain.LevelInfo, Account: &addr, Kind: kind, Message: msg})
}

func (o *Orchestrator) info(msg string) {
	o.emit(domain.Event{Level: domain.LevelInfo, Message: msg})
}

func (o *Orchestrator) warn(addr *common.Address, kind domain.OperationKind, msg string) {
	o.emit(domain.Event{Level: domain.LevelWarning, Account: addr, Kind: kind, Message: msg})
}

type discardEvents struct{}

func (discardEvents) Emit(domain.Event) {}

type discardResults struct{}

func (discardResults) Record(context.Context, string, domain.ActionResult) error { return nil }
func (discardResults) Finish(context.Context, *domain.RunSummary) error         { return nil }

type discardMetrics struct{}

func (discardMetrics) ObserveAction(domain.OperationKind, domain.Outcome, string) {}
func (discardMetrics) ObserveConfirmation(domain.OperationKind, time.Duration)    {}
func (discardMetrics) ObserveRun(domain.RunMode)                                  {}
