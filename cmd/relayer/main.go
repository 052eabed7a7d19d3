package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/shopspring/decimal"

	"github.com/ducx-network/peer-rewards/api"
	"github.com/ducx-network/peer-rewards/chain"
	"github.com/ducx-network/peer-rewards/config"
	"github.com/ducx-network/peer-rewards/rates"
	"github.com/ducx-network/peer-rewards/rewards"
	"github.com/ducx-network/peer-rewards/storage"
	"github.com/ducx-network/peer-rewards/tasks"
)

func main() {
	configFileName := flag.String("config", "/etc/peer-rewards/config.json", "Peer rewards configuration file")
	flag.Parse()

	_ = godotenv.Load()

	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if err := run(log, *configFileName); err != nil {
		log.Error("relayer exited", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, configFileName string) error {
	log.Info("using config file", "path", configFileName)

	cfg, err := config.LoadConfig(configFileName)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	enodes, err := cfg.LoadEnodes()
	if err != nil {
		return fmt.Errorf("could not load enodes: %w", err)
	}
	log.Info("loaded configured peers", "count", len(enodes))

	store, err := storage.NewDBStorage(cfg.DataStorageFilePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := chain.Dial(ctx, cfg.ChainConfig.JSONRPCURLs)
	if err != nil {
		return fmt.Errorf("failed to connect to the chain: %w", err)
	}

	key, fundingAddr, err := chain.LoadKey(
		cfg.ChainConfig.PrivateKeyStorePath,
		cfg.ChainConfig.PrivateKeyPassphrasePath,
	)
	if err != nil {
		return err
	}
	log.Info("funding account loaded", "address", fundingAddr.Hex())

	multisender, err := chain.NewMultisender(cfg.ChainConfig.MultisenderAddress)
	if err != nil {
		return err
	}

	gasPrice, ok := new(big.Int).SetString(cfg.ChainConfig.GasPriceWei, 10)
	if !ok {
		return fmt.Errorf("invalid GasPriceWei %q", cfg.ChainConfig.GasPriceWei)
	}

	defaultUSD, err := decimal.NewFromString(cfg.RewardConfig.DefaultUSDRewardAmount)
	if err != nil {
		return fmt.Errorf("invalid DefaultUSDRewardAmount: %w", err)
	}
	defaultInterest := defaultUSD.Div(decimal.NewFromInt(100))

	clock := clockwork.NewRealClock()

	accounting := rewards.NewAccounting(rewards.AccountingConfig{
		Logger:   log,
		Store:    store,
		Rates:    rates.NewClient(cfg.RewardConfig.RatesURL, 15*time.Second),
		Currency: cfg.RewardConfig.RewardCurrency,
	})

	aggregator := rewards.NewAggregator(rewards.AggregatorConfig{
		Logger:           log,
		Store:            store,
		Accounting:       accounting,
		Enodes:           enodes,
		RewardMinPercent: cfg.RewardConfig.RewardMinPercent,
		DefaultInterest:  defaultInterest,
	})

	engine := rewards.NewEngine(rewards.EngineConfig{
		Logger:        log,
		Store:         store,
		Client:        client,
		Multisender:   multisender,
		Key:           key,
		FundingAddr:   fundingAddr,
		GasPriceWei:   gasPrice,
		InitialGas:    cfg.ChainConfig.InitialGas,
		GasPerAddress: cfg.ChainConfig.GasPerAddress,
		Clock:         clock,
	})

	liveness := rewards.NewLiveness(rewards.LivenessConfig{
		Logger:          log,
		Store:           store,
		JSONRPCURLs:     cfg.ChainConfig.JSONRPCURLs,
		Enodes:          enodes,
		Timeout:         time.Duration(cfg.LivenessConfig.PingTimeoutSeconds) * time.Second,
		MaxRetries:      cfg.LivenessConfig.PingMaxRetries,
		DefaultInterest: defaultInterest,
		Clock:           clock,
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		tasks.StartLivenessLoop(ctx, clock,
			time.Duration(cfg.LivenessConfig.PingIntervalMins)*time.Minute, log, liveness)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		tasks.StartPendingCheckLoop(ctx, clock,
			time.Duration(cfg.SchedulerConfig.PendingCheckSeconds)*time.Second, log, engine)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		tasks.StartWaitingCheckLoop(ctx, clock,
			time.Duration(cfg.SchedulerConfig.WaitingCheckMins)*time.Minute, log, engine)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		tasks.StartAddressBackfillLoop(ctx, clock,
			time.Duration(cfg.SchedulerConfig.AddressBackfillMins)*time.Minute, log, store)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		tasks.StartDailyAirdropLoop(ctx, clock, cfg.SchedulerConfig.RewardsHour, log, aggregator, engine)
	}()

	if cfg.APIConfig.ServerPort != 0 {
		router := api.NewRouter(&api.Handler{
			Log:              log,
			Storage:          store,
			Accounting:       accounting,
			RewardMinPercent: cfg.RewardConfig.RewardMinPercent,
		})
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.APIConfig.ServerPort),
			Handler: router,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("API server running", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("API server failed", "err", err)
				cancel()
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	<-ctx.Done()
	log.Info("shutting down")
	wg.Wait()
	log.Info("all loops stopped")
	return nil
}
