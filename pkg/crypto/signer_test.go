package crypto

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestGenerateKey(t *testing.T) {
	s, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if s.Address() == (common.Address{}) {
		t.Error("generated zero address")
	}
	if len(s.PrivateKeyHex()) != 64 {
		t.Errorf("private key hex length = %d, want 64", len(s.PrivateKeyHex()))
	}
}

func TestFromPrivateKeyHex(t *testing.T) {
	s1, _ := GenerateKey()

	s2, err := FromPrivateKeyHex(s1.PrivateKeyHex())
	if err != nil {
		t.Fatalf("load key: %v", err)
	}
	if s2.Address() != s1.Address() {
		t.Errorf("address = %s, want %s", s2.Address().Hex(), s1.Address().Hex())
	}

	// 0x prefix is accepted too
	s3, err := FromPrivateKeyHex("0x" + s1.PrivateKeyHex())
	if err != nil {
		t.Fatalf("load prefixed key: %v", err)
	}
	if s3.Address() != s1.Address() {
		t.Error("prefixed key yields different address")
	}

	if _, err := FromPrivateKeyHex("zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestSignAndRecover(t *testing.T) {
	s, _ := GenerateKey()
	digest := make([]byte, 32)
	digest[31] = 7

	sig, err := s.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length = %d, want 65", len(sig))
	}

	got, err := RecoverAddress(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != s.Address() {
		t.Errorf("recovered %s, want %s", got.Hex(), s.Address().Hex())
	}

	if !VerifySignature(s.Address(), digest, sig) {
		t.Error("verification failed for valid signature")
	}
	wrong := common.HexToAddress("0x01")
	if VerifySignature(wrong, digest, sig) {
		t.Error("verification passed for wrong address")
	}

	if _, err := s.Sign(digest[:31]); err == nil {
		t.Error("expected error for short digest")
	}
}

func TestLimitOrderIntentDigest(t *testing.T) {
	pair := common.HexToAddress("0x0000000000000000000000000000000000aaaaaa")
	is := NewIntentSigner(DefaultDomain(pair))

	o := &LimitOrderIntent{
		IsBuy:    true,
		Amount:   big.NewInt(100),
		Price:    0x90989680,
		OrderID:  1,
		Deadline: 1_700_000_000,
	}
	d1, err := is.HashLimitOrder(o)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if len(d1) != 32 {
		t.Fatalf("digest length = %d, want 32", len(d1))
	}

	// deterministic for identical intents
	d2, _ := is.HashLimitOrder(o)
	if string(d1) != string(d2) {
		t.Error("digest not deterministic")
	}

	// any field change moves the digest
	o2 := *o
	o2.OrderID = 2
	d3, _ := is.HashLimitOrder(&o2)
	if string(d1) == string(d3) {
		t.Error("digest ignores order id")
	}

	// a different pair domain moves the digest
	other := NewIntentSigner(DefaultDomain(common.HexToAddress("0x01")))
	d4, _ := other.HashLimitOrder(o)
	if string(d1) == string(d4) {
		t.Error("digest ignores domain")
	}
}

func TestIntentSignRoundTrip(t *testing.T) {
	pair := common.HexToAddress("0x0000000000000000000000000000000000aaaaaa")
	is := NewIntentSigner(DefaultDomain(pair))
	s, _ := GenerateKey()

	mo := &MarketOrderIntent{IsBuy: false, Amount: big.NewInt(5000), Deadline: 0}
	sig, err := is.SignMarketOrder(s, mo)
	if err != nil {
		t.Fatalf("sign market order: %v", err)
	}
	d, _ := is.HashMarketOrder(mo)
	if got, _ := RecoverAddress(d, sig); got != s.Address() {
		t.Errorf("recovered %s, want %s", got.Hex(), s.Address().Hex())
	}

	c := &CancelIntent{
		Entries:  []*big.Int{big.NewInt(1<<8 | 1), big.NewInt(2 << 8)},
		Deadline: 1_700_000_000,
	}
	sig, err = is.SignCancel(s, c)
	if err != nil {
		t.Fatalf("sign cancel: %v", err)
	}
	d, _ = is.HashCancel(c)
	if !VerifySignature(s.Address(), d, sig) {
		t.Error("cancel signature did not verify")
	}
}
