package storage

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/poolbook/pkg/engine"
	"github.com/uhyunpark/poolbook/pkg/engine/price"
	"github.com/uhyunpark/poolbook/pkg/engine/token"
)

func buildPair(t *testing.T) (*engine.Pair, *token.Ledger, engine.Config) {
	t.Helper()
	cfg := engine.Config{
		Stock:    token.NewFungible(common.HexToAddress("0x01"), "ABC"),
		Money:    token.NewFungible(common.HexToAddress("0x02"), "USD"),
		PairAddr: common.HexToAddress("0x0000000000000000000000000000000000aaaaaa"),
	}
	ledger := token.NewLedger()
	p, err := engine.NewPair(cfg, ledger, nil)
	if err != nil {
		t.Fatalf("new pair: %v", err)
	}
	return p, ledger, cfg
}

// populate gives the pair a pool position and one resting sell.
func populate(t *testing.T, p *engine.Pair, ledger *token.Ledger, cfg engine.Config) {
	t.Helper()
	lp := common.HexToAddress("0x10")
	maker := common.HexToAddress("0x11")

	ledger.Issue(cfg.Stock, cfg.PairAddr, uint256.NewInt(10_000))
	ledger.Issue(cfg.Money, cfg.PairAddr, uint256.NewInt(1_000_000))
	if _, _, err := p.Mint(lp); err != nil {
		t.Fatalf("mint: %v", err)
	}

	ledger.Issue(cfg.Stock, cfg.PairAddr, uint256.NewInt(50))
	pr := price.Encode(20_000_000, 18) // 200
	if _, err := p.AddLimitOrder(maker, false, uint256.NewInt(50), pr, 1, nil); err != nil {
		t.Fatalf("limit order: %v", err)
	}
}

func TestStateRoundTrip(t *testing.T) {
	p, ledger, cfg := buildPair(t)
	populate(t, p, ledger, cfg)

	store, err := NewPebbleStore(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := store.SaveState(p.State()); err != nil {
		t.Fatalf("save: %v", err)
	}
	st, ok, err := store.LoadState()
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}

	// restore into a fresh pair over a fresh ledger
	p2, err := engine.NewPair(cfg, token.NewLedger(), nil)
	if err != nil {
		t.Fatalf("new pair: %v", err)
	}
	p2.RestoreState(st)

	rs, rm, firstSell := p2.GetReserves()
	if rs.Uint64() != 10_000 || rm.Uint64() != 1_000_000 {
		t.Errorf("reserves = (%s, %s), want (10000, 1000000)", rs.Dec(), rm.Dec())
	}
	if firstSell != 1 {
		t.Errorf("first sell id = %d, want 1", firstSell)
	}
	bs, _, _ := p2.GetBooked()
	if bs.Uint64() != 50 {
		t.Errorf("booked stock = %s, want 50", bs.Dec())
	}
	if got := p2.ShareBalance(common.HexToAddress("0x10")); got.Uint64() != 99_000 {
		t.Errorf("lp shares = %s, want 99000", got.Dec())
	}

	// restored orders remain tradeable
	lg := p2.Ledger()
	lg.Issue(cfg.Money, cfg.PairAddr, uint256.NewInt(2_000))
	if _, err := p2.AddMarketOrder(common.HexToAddress("0x12"), cfg.Money, uint256.NewInt(2_000)); err != nil {
		t.Fatalf("market order after restore: %v", err)
	}
}

func TestLoadStateMissing(t *testing.T) {
	store, err := NewPebbleStore(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	_, ok, err := store.LoadState()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Error("expected no state in fresh store")
	}
}

func TestEventJournal(t *testing.T) {
	for name, open := range map[string]func(t *testing.T) Store{
		"pebble": func(t *testing.T) Store {
			s, err := NewPebbleStore(filepath.Join(t.TempDir(), "db"))
			if err != nil {
				t.Fatalf("open store: %v", err)
			}
			return s
		},
		"memory": func(t *testing.T) Store { return NewInMemoryStore() },
	} {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			defer store.Close()

			if _, ok, _ := store.LastSeq(); ok {
				t.Fatal("fresh store reports a last sequence")
			}

			ev := engine.SyncEvent{
				ReserveStock: uint256.NewInt(100),
				ReserveMoney: uint256.NewInt(10_000),
			}
			for seq := uint64(1); seq <= 3; seq++ {
				if err := store.AppendEvent(RecordOf(seq, ev)); err != nil {
					t.Fatalf("append %d: %v", seq, err)
				}
			}

			last, ok, err := store.LastSeq()
			if err != nil || !ok || last != 3 {
				t.Fatalf("last seq = %d ok=%v err=%v, want 3", last, ok, err)
			}

			recs, err := store.Events(2)
			if err != nil {
				t.Fatalf("events: %v", err)
			}
			if len(recs) != 2 {
				t.Fatalf("got %d records, want 2", len(recs))
			}
			if recs[0].Seq != 2 || recs[1].Seq != 3 {
				t.Errorf("sequences = %d,%d, want 2,3", recs[0].Seq, recs[1].Seq)
			}
			if recs[0].Kind != "Sync" {
				t.Errorf("kind = %q, want Sync", recs[0].Kind)
			}
			if recs[0].Payload != ev.Payload().Bytes32() {
				t.Error("payload mismatch after round trip")
			}
		})
	}
}
