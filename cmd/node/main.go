package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/poolbook/params"
	"github.com/uhyunpark/poolbook/pkg/api"
	"github.com/uhyunpark/poolbook/pkg/crypto"
	"github.com/uhyunpark/poolbook/pkg/engine"
	"github.com/uhyunpark/poolbook/pkg/engine/token"
	"github.com/uhyunpark/poolbook/pkg/storage"
	"github.com/uhyunpark/poolbook/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (optionally tee to a file)
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Node.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.Node.LogFile)
	} else {
		logger, err = util.NewLogger()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Pair engine ----
	stock := token.NewFungible(common.HexToAddress(cfg.Pair.StockAddr), cfg.Pair.StockSymbol)
	money := token.NewFungible(common.HexToAddress(cfg.Pair.MoneyAddr), cfg.Pair.MoneySymbol)
	pairAddr := common.HexToAddress(cfg.Pair.PairAddr)

	ledger := token.NewLedger()
	pair, err := engine.NewPair(engine.Config{
		Stock:    stock,
		Money:    money,
		PairAddr: pairAddr,
		FeeBPS:   cfg.Pair.FeeBPS,
		RefExp:   cfg.Pair.RefExp,
		HopLimit: cfg.Pair.HopLimit,
	}, ledger, sugar)
	if err != nil {
		sugar.Fatalw("pair_init_failed", "err", err)
	}
	sugar.Infow("pair_initialized",
		"stock", stock.Symbol,
		"money", money.Symbol,
		"custody", pairAddr.Hex(),
		"fee_bps", cfg.Pair.FeeBPS)

	// ---- Persistence ----
	store, err := storage.NewPebbleStore(cfg.Node.DataDir)
	if err != nil {
		sugar.Fatalw("store_open_failed", "dir", cfg.Node.DataDir, "err", err)
	}
	defer store.Close()

	if st, ok, err := store.LoadState(); err != nil {
		sugar.Fatalw("state_load_failed", "err", err)
	} else if ok {
		pair.RestoreState(st)
		rs, rm, _ := pair.GetReserves()
		sugar.Infow("state_restored",
			"reserve_stock", rs.Dec(),
			"reserve_money", rm.Dec(),
			"shares", pair.TotalShares().Dec())
	} else {
		sugar.Info("fresh_state")
	}

	seq := uint64(0)
	if last, ok, err := store.LastSeq(); err != nil {
		sugar.Fatalw("seq_load_failed", "err", err)
	} else if ok {
		seq = last
		sugar.Infow("event_log_resumed", "last_seq", seq)
	}

	// Human-readable event tail, alongside the binary journal
	var journal storage.Journal = storage.NewNopJournal()
	if cfg.Node.JournalFile != "" {
		fj, err := storage.NewFileJournal(cfg.Node.JournalFile)
		if err != nil {
			sugar.Fatalw("journal_open_failed", "file", cfg.Node.JournalFile, "err", err)
		}
		defer fj.Close()
		journal = fj
	}

	// ---- API Server ----
	intents := crypto.NewIntentSigner(crypto.Domain{
		Name:    "PoolBook",
		Version: "1",
		ChainID: big.NewInt(cfg.Node.ChainID),
		Pair:    pairAddr,
	})
	apiServer := api.NewServer(pair, intents, util.RealClock{}, sugar, cfg.Node.Faucet)

	// Fan every engine event out to the journal, the event log and the
	// websocket feed. Hooks run while the pair lock is held, so seq needs
	// no extra synchronization — but they must not call back into the
	// pair. Snapshotting happens on the persister goroutine instead,
	// nudged once per mutating call.
	mutated := make(chan struct{}, 1)
	pair.OnEvent = func(e engine.Event) {
		seq++
		rec := storage.RecordOf(seq, e)
		if err := store.AppendEvent(rec); err != nil {
			sugar.Errorw("event_append_failed", "seq", seq, "err", err)
		}
		journal.Append(fmt.Sprintf("%d %s %x", seq, rec.Kind, rec.Payload))
		apiServer.OnPairEvent(seq, e)
	}
	pair.OnMutate = func() {
		select {
		case mutated <- struct{}{}:
		default:
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-mutated:
				if err := store.SaveState(pair.State()); err != nil {
					sugar.Errorw("state_save_failed", "err", err)
				}
				apiServer.BroadcastBook(true)
				apiServer.BroadcastBook(false)
			}
		}
	}()

	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.Node.APIAddr)
		if err := apiServer.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("node_started",
		"pair", fmt.Sprintf("%s/%s", stock.Symbol, money.Symbol),
		"api_addr", cfg.Node.APIAddr,
		"chain_id", cfg.Node.ChainID,
		"faucet", cfg.Node.Faucet)

	<-ctx.Done()
	sugar.Info("shutting_down")
}
