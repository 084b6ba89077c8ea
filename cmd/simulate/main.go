// Command simulate runs one bot mode against an in-memory chain and prints the
// recorded results as JSON.
//
//	simulate [mode] [repetitions]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/uomi-testnet/uomi-bot/internal/adapters/accounts"
	"github.com/uomi-testnet/uomi-bot/internal/adapters/chain/sim"
	"github.com/uomi-testnet/uomi-bot/internal/adapters/results"
	"github.com/uomi-testnet/uomi-bot/internal/cli"
	"github.com/uomi-testnet/uomi-bot/internal/config"
	"github.com/uomi-testnet/uomi-bot/internal/core/catalog"
	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
	"github.com/uomi-testnet/uomi-bot/internal/core/service"
)

// devKey is the first well-known development key, used when no account file exists.
const devKey = domain.Credential("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")

type devAccounts struct{}

func (devAccounts) LoadAccounts() ([]domain.Credential, error) {
	return []domain.Credential{devKey}, nil
}

func (devAccounts) LoadProxies() ([]domain.ProxyRef, error) { return nil, nil }

type output struct {
	Summary results.Summary  `json:"summary"`
	Records []results.Record `json:"records"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 1. Parse mode and repetitions
	mode := domain.ModeAll
	if len(os.Args) > 1 {
		if mode, err = domain.ParseRunMode(os.Args[1]); err != nil {
			log.Fatal(err)
		}
	}
	repetitions := cfg.DefaultRepeats
	if len(os.Args) > 2 {
		if repetitions, err = strconv.Atoi(os.Args[2]); err != nil {
			log.Fatalf("Invalid repetitions: %v", err)
		}
	}

	logger, err := cli.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		log.Fatal(err)
	}

	// 2. Fund every account on a fresh simulated chain
	var source domain.AccountSource = devAccounts{}
	if _, err := os.Stat(cfg.AccountsFile); err == nil {
		source = accounts.NewFileSource(cfg.AccountsFile, cfg.ProxiesFile, logger)
	}
	creds, err := source.LoadAccounts()
	if err != nil {
		log.Fatalf("Failed to load accounts: %v", err)
	}

	chain := sim.New(cfg.ChainID).WithContracts(cfg.MustAsset(cfg.WrappedAsset).Address, cfg.Contracts.Router)
	funding := new(big.Int).Mul(big.NewInt(100), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	for i, c := range creds {
		acct, err := c.Account(i)
		if err != nil {
			continue
		}
		for _, asset := range cfg.Assets {
			chain.SetBalance(acct.Address, asset, funding)
		}
	}

	// 3. Run without pacing delays
	memory := results.NewMemorySink()
	var sink domain.ResultSink = memory
	var stored *results.RedisSink
	if cfg.Redis.Enabled {
		if stored, err = results.ConnectRedis(context.Background(), cfg.Redis); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer stored.Close()
		sink = stored
	}

	orch := service.NewOrchestrator(service.Options{
		Config:   cfg,
		Accounts: source,
		Catalog:  catalog.New(cfg, chain),
		Balances: cli.NewBalanceTable(chain, cfg.Assets, os.Stderr),
		Events:   cli.NewEventLogger(logger, cfg.ExplorerTxURL),
		Results:  sink,
		Sleeper:  domain.SleeperFunc(func(time.Duration) {}),
	})

	log.Printf("Simulating %s x%d for %d account(s)...", mode, repetitions, len(creds))
	summary, err := orch.Run(context.Background(), domain.RunPlan{Mode: mode, Repetitions: repetitions})
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	// 4. Print output, read back from Redis when it holds the results
	records := memory.Records(summary.RunID)
	if stored != nil {
		if records, err = stored.Results(context.Background(), summary.RunID); err != nil {
			log.Fatalf("Failed to read results: %v", err)
		}
	}
	data, err := json.MarshalIndent(output{
		Summary: results.NewSummary(summary),
		Records: records,
	}, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal results: %v", err)
	}
	fmt.Println(string(data))
}
