// sign-order builds and signs order intents for the REST API. It prints the
// request body ready to POST, so orders can be placed with curl during
// development without a wallet frontend.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/uhyunpark/poolbook/params"
	"github.com/uhyunpark/poolbook/pkg/api"
	"github.com/uhyunpark/poolbook/pkg/crypto"
	"github.com/uhyunpark/poolbook/pkg/engine/price"
)

func main() {
	var (
		keyHex   = flag.String("key", "", "private key hex (generates a fresh key when empty)")
		kind     = flag.String("kind", "limit", "intent kind: limit, market, cancel, deposit")
		side     = flag.String("side", "buy", "order side: buy or sell")
		amount   = flag.String("amount", "100", "order amount (stock for limit/sell, money for market buy)")
		sig      = flag.Uint("sig", 10_000_000, "price significand, 8 decimal digits")
		exp      = flag.Uint("exp", 18, "price exponent, value = sig*10^(exp-23)")
		orderID  = flag.Uint("id", 1, "order id (unique per side; the id to remove for cancel)")
		tokenHex = flag.String("token", "", "token address for deposit")
		ttl      = flag.Duration("ttl", 5*time.Minute, "intent validity window")
	)
	flag.Parse()

	signer, err := loadOrGenerateKey(*keyHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "key: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Address:     %s\n", signer.Address().Hex())
	if *keyHex == "" {
		fmt.Fprintf(os.Stderr, "Private Key: %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
	}

	cfg := params.LoadFromEnv("")
	intents := crypto.NewIntentSigner(crypto.Domain{
		Name:    "PoolBook",
		Version: "1",
		ChainID: big.NewInt(cfg.Node.ChainID),
		Pair:    common.HexToAddress(cfg.Pair.PairAddr),
	})

	deadline := uint64(time.Now().Add(*ttl).Unix())
	isBuy := *side == "buy"
	amt, ok := new(big.Int).SetString(*amount, 10)
	if !ok {
		fmt.Fprintf(os.Stderr, "bad amount %q\n", *amount)
		os.Exit(1)
	}

	var body any
	switch *kind {
	case "limit":
		p := price.Encode(uint32(*sig), uint8(*exp))
		if err := p.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "price: %v\n", err)
			os.Exit(1)
		}
		intent := &crypto.LimitOrderIntent{
			IsBuy:    isBuy,
			Amount:   amt,
			Price:    uint32(p),
			OrderID:  uint32(*orderID),
			Deadline: deadline,
		}
		sigBytes, err := intents.SignLimitOrder(signer, intent)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sign: %v\n", err)
			os.Exit(1)
		}
		body = api.LimitOrderRequest{
			IsBuy:     isBuy,
			Amount:    amt.String(),
			Price:     uint32(p),
			OrderID:   uint32(*orderID),
			Deadline:  deadline,
			Signature: hexutil.Encode(sigBytes),
		}

	case "market":
		intent := &crypto.MarketOrderIntent{IsBuy: isBuy, Amount: amt, Deadline: deadline}
		sigBytes, err := intents.SignMarketOrder(signer, intent)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sign: %v\n", err)
			os.Exit(1)
		}
		body = api.MarketOrderRequest{
			IsBuy:     isBuy,
			Amount:    amt.String(),
			Deadline:  deadline,
			Signature: hexutil.Encode(sigBytes),
		}

	case "cancel":
		sideByte := uint64(0)
		if isBuy {
			sideByte = 1
		}
		word := uint64(*orderID)<<8 | sideByte
		intent := &crypto.CancelIntent{
			Entries:  []*big.Int{new(big.Int).SetUint64(word)},
			Deadline: deadline,
		}
		sigBytes, err := intents.SignCancel(signer, intent)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sign: %v\n", err)
			os.Exit(1)
		}
		body = api.CancelRequest{
			Entries:   []uint64{word},
			Deadline:  deadline,
			Signature: hexutil.Encode(sigBytes),
		}

	case "deposit":
		addr := *tokenHex
		if addr == "" {
			addr = cfg.Pair.MoneyAddr
		}
		intent := &crypto.DepositIntent{
			Token:    common.HexToAddress(addr),
			Amount:   amt,
			Deadline: deadline,
		}
		digest, err := intents.HashDeposit(intent)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash: %v\n", err)
			os.Exit(1)
		}
		sigBytes, err := signer.Sign(digest)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sign: %v\n", err)
			os.Exit(1)
		}
		body = api.DepositRequest{
			Token:     common.HexToAddress(addr).Hex(),
			Amount:    amt.String(),
			Deadline:  deadline,
			Signature: hexutil.Encode(sigBytes),
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown kind %q\n", *kind)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func loadOrGenerateKey(hex string) (*crypto.Signer, error) {
	if hex == "" {
		return crypto.GenerateKey()
	}
	return crypto.FromPrivateKeyHex(hex)
}
