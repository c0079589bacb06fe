package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rentchain/rental-client/internal/chain"
	"github.com/rentchain/rental-client/internal/config"
	"github.com/rentchain/rental-client/internal/handlers/httphandlers"
	"github.com/rentchain/rental-client/internal/interfaces"
	"github.com/rentchain/rental-client/internal/lib"
	"github.com/rentchain/rental-client/internal/notify"
	"github.com/rentchain/rental-client/internal/orchestrator"
	"github.com/rentchain/rental-client/internal/repositories/cache"
	"github.com/rentchain/rental-client/internal/repositories/contracts"
	"github.com/rentchain/rental-client/internal/resources/balance"
	"github.com/rentchain/rental-client/internal/resources/rental"
	"github.com/rentchain/rental-client/internal/resources/vault"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const notificationHistory = 100

func main() {
	err := start()
	if err != nil {
		panic(err)
	}
}

func start() error {
	if err := config.LoadEnvFile(".env"); err != nil {
		return err
	}

	var cfg config.Config
	err := config.LoadConfig(&cfg, &os.Args)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg, cfg.Log.LevelApp)
	if err != nil {
		return err
	}
	chainLog, err := newLogger(cfg, cfg.Log.LevelChain)
	if err != nil {
		return err
	}
	httpLog, err := newLogger(cfg, cfg.Log.LevelHTTP)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Infof("rental client %s", config.BuildVersion)
	log.Infof("config: %+v", cfg.GetSanitized())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-shutdownChan
		log.Warnf("Received signal: %s", s)
		cancel()

		s = <-shutdownChan
		log.Warnf("Received signal: %s. Forcing exit...", s)
		os.Exit(1)
	}()

	registry, err := contracts.NewRegistry(cfg.ContractAddresses(), cfg.ContractDecimals())
	if err != nil {
		return err
	}

	// wallet stays a nil interface without keys, the gateway then reports WalletUnavailable
	var wallet chain.Wallet
	if cfg.HasWallet() {
		keyed, err := newKeyedWallet(ctx, cfg, chainLog.Named("WALLET"))
		if err != nil {
			return err
		}
		defer keyed.Close()
		log.Infof("wallet account: %s", keyed.Address().Hex())
		wallet = keyed
	} else {
		log.Warn("no wallet key configured, running read-only")
	}

	hub := notify.NewHub(notificationHistory, log.Named("NOTIFY"))
	session := chain.NewSessionStore()
	registry.SetSigner(session)

	gateway := chain.NewGateway(cfg.NetworkDescriptor(), wallet, session, hub, chain.GatewayConfig{
		ReadsPerSecond: cfg.RPC.ReadsPerSecond,
		ReadBurst:      cfg.RPC.ReadBurst,
	}, chainLog.Named("GATEWAY"))

	tracker := balance.NewTracker(gateway, registry, cfg.Contracts.TokenSymbol, cfg.Polling.Balance, log.Named("TRACKER"))
	reconciler := vault.NewReconciler(gateway, registry, vault.Config{
		Interval:    cfg.Polling.Vault,
		APYPercent:  decimal.NewFromFloat(cfg.Vault.APYPercent),
		DaysAssumed: cfg.Vault.DaysAssumed,
	}, log.Named("VAULT"))

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	records := cache.NewRecords(store, cfg.Cache.TTL, log.Named("CACHE"))
	defer func() {
		_ = records.Close()
	}()

	fetchLog := log.Named("FETCH")
	fetcher := rental.NewFetcher(gateway, registry, records, rental.NewStatusMonitor(fetchLog), cfg.Fetch.Concurrency, fetchLog)

	orch := orchestrator.NewOrchestrator(gateway, registry, tracker, reconciler, fetcher, hub, orchestrator.Config{
		Confirmations:       cfg.Tx.Confirmations,
		StrongConfirmations: cfg.Tx.StrongConfirmations,
		WaitTimeout:         cfg.Tx.Timeout,
	}, log.Named("ORCH"))

	// balance polling follows the session, views of the previous account are dropped
	session.OnChange(func(prev, next chain.Session) {
		if !next.IsConnected {
			<-tracker.Stop()
			tracker.Reset()
			<-reconciler.Close()
			return
		}
		if !prev.IsConnected || prev.Address != next.Address {
			<-reconciler.Close()
			tracker.Start(ctx, next.Address)
		}
	})
	gateway.OnReload(func() {
		log.Warn("wallet changed network, dropping account views")
		tracker.Reset()
		<-reconciler.Close()
	})

	handl := httphandlers.NewHTTPHandler(ctx, gateway, registry, tracker, reconciler, fetcher, orch, hub, &cfg, httpLog.Named("HTTP"))
	server := &http.Server{
		Addr:              cfg.Web.Address,
		Handler:           handl,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if wallet != nil {
		if _, err := gateway.Connect(ctx); err != nil {
			log.Warnf("wallet connect failed: %s", err)
		} else if !gateway.EnsureNetwork(ctx, cfg.Network.ChainID) {
			log.Warnf("wallet is not on %s", cfg.Network.Name)
		}
	}

	watcher := newEventWatcher(ctx, cfg, registry, fetcher, chainLog.Named("EVENTS"))

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gateway.Run(gCtx)
	})
	if watcher != nil {
		g.Go(func() error {
			watcher.Start(gCtx)
			<-watcher.Done()
			if err := watcher.Err(); err != nil {
				log.Errorf("event watcher stopped: %s", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		log.Infof("http server is listening: %s", cfg.Web.Address)
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	<-tracker.Stop()
	<-reconciler.Close()
	log.Infof("App exited due to %s", ctx.Err())

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newLogger(cfg config.Config, level string) (*lib.Logger, error) {
	var filePath string
	if cfg.Log.FolderPath != "" {
		filePath = filepath.Join(cfg.Log.FolderPath, "rental-client.log")
	}
	return lib.NewLogger(lib.LoggerConfig{
		Level:    level,
		Color:    cfg.Log.Color,
		IsProd:   cfg.Log.IsProd,
		JSON:     cfg.Log.JSON,
		FilePath: filePath,
	})
}

func newKeyedWallet(ctx context.Context, cfg config.Config, log interfaces.ILogger) (*chain.KeyedWallet, error) {
	var (
		keys chain.KeySource
		err  error
	)
	if cfg.Wallet.Mnemonic != "" {
		keys, err = chain.NewMnemonicSource(cfg.Wallet.Mnemonic)
	} else {
		keys, err = chain.NewPrivateKeySource(cfg.Wallet.PrivateKey)
	}
	if err != nil {
		return nil, err
	}

	wallet, err := chain.NewKeyedWallet(keys, cfg.Wallet.AccountIndex, chain.DefaultDialer, chain.KeyedWalletConfig{
		LegacyTx:            cfg.Wallet.LegacyTx,
		ReceiptPollInterval: cfg.Tx.ReceiptPoll,
	}, log)
	if err != nil {
		return nil, err
	}

	chainID, err := wallet.Attach(ctx, cfg.Network.RPCURL)
	if err != nil {
		return nil, err
	}
	log.Infof("wallet attached to chain %d", chainID)
	return wallet, nil
}

func newStore(ctx context.Context, cfg config.Config) (cache.Store, error) {
	if cfg.Cache.RedisURL == "" {
		return cache.NewMemoryStore(), nil
	}
	return cache.NewRedisStore(ctx, cfg.Cache.RedisURL, cfg.Cache.Prefix)
}

// newEventWatcher watches property and agreement events and drops the cached records they touch.
// The watcher has its own node connection, nil when the node cannot be reached.
func newEventWatcher(ctx context.Context, cfg config.Config, registry *contracts.Registry, fetcher *rental.Fetcher, log interfaces.ILogger) *lib.Task {
	client, err := contracts.DialContext(ctx, cfg.Network.RPCURL)
	if err != nil {
		log.Warnf("event watcher disabled: %s", err)
		return nil
	}
	watcher := contracts.NewEventWatcher(
		client,
		registry,
		[]contracts.Name{contracts.PropertyRegistry, contracts.AgreementFactory, contracts.AgreementNFT},
		cfg.Polling.Events,
		cfg.Polling.EventsRetries,
		func(ctx context.Context, ev contracts.ContractEvent) {
			log.Debugf("%s.%s %v", ev.Contract, ev.Name, ev.EntityID)
			fetcher.Invalidate(ctx, ev)
		},
		log,
	)
	log.Infof("watching contract events through %s", client.URL())
	return lib.NewTask(watcher, "event-watcher")
}
