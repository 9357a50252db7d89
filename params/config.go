package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Pair fixes the traded pair and matching parameters.
type Pair struct {
	StockSymbol string
	MoneySymbol string
	StockAddr   string // hex token address
	MoneyAddr   string
	PairAddr    string // custody address of the pair
	FeeBPS      uint64 // taker fee, basis points
	RefExp      int    // price reference exponent
	HopLimit    int    // order-list walk budget for hints
}

// Node holds process-level settings.
type Node struct {
	DataDir     string // pebble database directory
	JournalFile string // human-readable event tail, empty disables
	LogFile     string // structured log copy, empty = console only
	APIAddr     string // listen address for REST/WS
	ChainID     int64  // EIP-712 domain chain id
	Faucet      bool   // enable the devnet faucet endpoint
}

type Config struct {
	Pair Pair
	Node Node
}

func Default() Config {
	return Config{
		Pair: Pair{
			StockSymbol: "ABC",
			MoneySymbol: "USD",
			StockAddr:   "0x0000000000000000000000000000000000000a5c",
			MoneyAddr:   "0x0000000000000000000000000000000000000b5d",
			PairAddr:    "0x0000000000000000000000000000000000aaaaaa",
			FeeBPS:      30,
			RefExp:      23,
			HopLimit:    100,
		},
		Node: Node{
			DataDir:     "data/db",
			JournalFile: "data/events.log",
			LogFile:     "",
			APIAddr:     ":8080",
			ChainID:     1337,
			Faucet:      true,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and the
// environment. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Pair.StockSymbol = getEnv("PAIR_STOCK_SYMBOL", cfg.Pair.StockSymbol)
	cfg.Pair.MoneySymbol = getEnv("PAIR_MONEY_SYMBOL", cfg.Pair.MoneySymbol)
	cfg.Pair.StockAddr = getEnv("PAIR_STOCK_ADDR", cfg.Pair.StockAddr)
	cfg.Pair.MoneyAddr = getEnv("PAIR_MONEY_ADDR", cfg.Pair.MoneyAddr)
	cfg.Pair.PairAddr = getEnv("PAIR_ADDR", cfg.Pair.PairAddr)

	if v := os.Getenv("PAIR_FEE_BPS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Pair.FeeBPS = n
		}
	}
	if v := os.Getenv("PAIR_REF_EXP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pair.RefExp = n
		}
	}
	if v := os.Getenv("PAIR_HOP_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pair.HopLimit = n
		}
	}

	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.JournalFile = getEnv("EVENT_JOURNAL_FILE", cfg.Node.JournalFile)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)

	if v := os.Getenv("CHAIN_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Node.ChainID = n
		}
	}
	if v := os.Getenv("FAUCET"); v != "" {
		cfg.Node.Faucet = v == "true"
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
