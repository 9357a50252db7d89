package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Domain is the EIP-712 domain separator. The verifying contract slot holds
// the pair's custody address, so a signature for one pair cannot be replayed
// against another.
type Domain struct {
	Name    string
	Version string
	ChainID *big.Int
	Pair    common.Address
}

// DefaultDomain returns the domain for a pair instance.
func DefaultDomain(pair common.Address) Domain {
	return Domain{Name: "PoolBook", Version: "1", ChainID: big.NewInt(1337), Pair: pair}
}

// LimitOrderIntent is the typed message a user signs to place a limit order.
type LimitOrderIntent struct {
	IsBuy    bool
	Amount   *big.Int // stock units
	Price    uint32   // 32-bit packed price
	OrderID  uint32   // id hint; the engine assigns the first free id at or above it
	Deadline uint64   // unix seconds, 0 = no expiry
}

// MarketOrderIntent is the typed message for a market order; Amount is
// denominated in the input token (money for buys, stock for sells).
type MarketOrderIntent struct {
	IsBuy    bool
	Amount   *big.Int
	Deadline uint64
}

// CancelIntent removes resting orders. Entries holds (id<<8)|side words, one
// per order, matching the engine's batch-removal encoding.
type CancelIntent struct {
	Entries  []*big.Int
	Deadline uint64
}

// BurnIntent redeems liquidity shares; proceeds go to To.
type BurnIntent struct {
	Shares   *big.Int
	To       common.Address
	Deadline uint64
}

// DepositIntent moves the signer's tokens into the pair's custody ahead of
// an engine call.
type DepositIntent struct {
	Token    common.Address
	Amount   *big.Int
	Deadline uint64
}

// IntentSigner hashes exchange intents as EIP-712 typed data.
type IntentSigner struct {
	domain Domain
}

func NewIntentSigner(domain Domain) *IntentSigner {
	return &IntentSigner{domain: domain}
}

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

func (s *IntentSigner) typedDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              s.domain.Name,
		Version:           s.domain.Version,
		ChainId:           (*math.HexOrDecimal256)(s.domain.ChainID),
		VerifyingContract: s.domain.Pair.Hex(),
	}
}

func (s *IntentSigner) digest(primary string, types []apitypes.Type, msg apitypes.TypedDataMessage) ([]byte, error) {
	td := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			primary:        types,
		},
		PrimaryType: primary,
		Domain:      s.typedDomain(),
		Message:     msg,
	}
	domainSep, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}
	msgHash, err := td.HashStruct(primary, td.Message)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", primary, err)
	}
	raw := append([]byte("\x19\x01"), append(domainSep, msgHash...)...)
	return crypto.Keccak256(raw), nil
}

func boolWord(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// HashLimitOrder returns the signing digest for a limit order intent.
func (s *IntentSigner) HashLimitOrder(o *LimitOrderIntent) ([]byte, error) {
	return s.digest("LimitOrder", []apitypes.Type{
		{Name: "isBuy", Type: "uint8"},
		{Name: "amount", Type: "uint256"},
		{Name: "price", Type: "uint32"},
		{Name: "orderId", Type: "uint32"},
		{Name: "deadline", Type: "uint256"},
	}, apitypes.TypedDataMessage{
		"isBuy":    boolWord(o.IsBuy),
		"amount":   o.Amount.String(),
		"price":    fmt.Sprintf("%d", o.Price),
		"orderId":  fmt.Sprintf("%d", o.OrderID),
		"deadline": fmt.Sprintf("%d", o.Deadline),
	})
}

// HashMarketOrder returns the signing digest for a market order intent.
func (s *IntentSigner) HashMarketOrder(o *MarketOrderIntent) ([]byte, error) {
	return s.digest("MarketOrder", []apitypes.Type{
		{Name: "isBuy", Type: "uint8"},
		{Name: "amount", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}, apitypes.TypedDataMessage{
		"isBuy":    boolWord(o.IsBuy),
		"amount":   o.Amount.String(),
		"deadline": fmt.Sprintf("%d", o.Deadline),
	})
}

// HashCancel returns the signing digest for a cancel intent.
func (s *IntentSigner) HashCancel(c *CancelIntent) ([]byte, error) {
	entries := make([]interface{}, len(c.Entries))
	for i, e := range c.Entries {
		entries[i] = e.String()
	}
	return s.digest("Cancel", []apitypes.Type{
		{Name: "entries", Type: "uint256[]"},
		{Name: "deadline", Type: "uint256"},
	}, apitypes.TypedDataMessage{
		"entries":  entries,
		"deadline": fmt.Sprintf("%d", c.Deadline),
	})
}

// HashBurn returns the signing digest for a share redemption.
func (s *IntentSigner) HashBurn(b *BurnIntent) ([]byte, error) {
	return s.digest("Burn", []apitypes.Type{
		{Name: "shares", Type: "uint256"},
		{Name: "to", Type: "address"},
		{Name: "deadline", Type: "uint256"},
	}, apitypes.TypedDataMessage{
		"shares":   b.Shares.String(),
		"to":       b.To.Hex(),
		"deadline": fmt.Sprintf("%d", b.Deadline),
	})
}

// HashDeposit returns the signing digest for a custody deposit.
func (s *IntentSigner) HashDeposit(d *DepositIntent) ([]byte, error) {
	return s.digest("Deposit", []apitypes.Type{
		{Name: "token", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}, apitypes.TypedDataMessage{
		"token":    d.Token.Hex(),
		"amount":   d.Amount.String(),
		"deadline": fmt.Sprintf("%d", d.Deadline),
	})
}

// SignLimitOrder signs a limit order intent with the given key.
func (s *IntentSigner) SignLimitOrder(signer *Signer, o *LimitOrderIntent) ([]byte, error) {
	d, err := s.HashLimitOrder(o)
	if err != nil {
		return nil, err
	}
	return signer.Sign(d)
}

// SignMarketOrder signs a market order intent with the given key.
func (s *IntentSigner) SignMarketOrder(signer *Signer, o *MarketOrderIntent) ([]byte, error) {
	d, err := s.HashMarketOrder(o)
	if err != nil {
		return nil, err
	}
	return signer.Sign(d)
}

// SignCancel signs a cancel intent with the given key.
func (s *IntentSigner) SignCancel(signer *Signer, c *CancelIntent) ([]byte, error) {
	d, err := s.HashCancel(c)
	if err != nil {
		return nil, err
	}
	return signer.Sign(d)
}
