package loans

import (
	"errors"
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"notelend/core/state"
	"notelend/crypto"
	"notelend/storage"
)

func sampleTerms() *LoanTerms {
	return &LoanTerms{
		Lender:            [20]byte{0x01},
		LoanAmount:        big.NewInt(1_000),
		InterestRate:      500,
		Duration:          30 * 24 * 60 * 60,
		CollateralAddress: [20]byte{0x02},
		CollateralID:      7,
		Borrower:          [20]byte{0x03},
		Expiration:        2_000,
		Currency:          "NLD",
	}
}

func TestDigestBindsEveryField(t *testing.T) {
	domain := DefaultParams().Domain
	base := domain.Digest(sampleTerms())
	mutations := map[string]func(*LoanTerms){
		"lender":     func(t *LoanTerms) { t.Lender[0] = 0xFF },
		"amount":     func(t *LoanTerms) { t.LoanAmount = big.NewInt(1_001) },
		"rate":       func(t *LoanTerms) { t.InterestRate++ },
		"duration":   func(t *LoanTerms) { t.Duration++ },
		"collateral": func(t *LoanTerms) { t.CollateralID++ },
		"borrower":   func(t *LoanTerms) { t.Borrower[0] = 0xFF },
		"expiration": func(t *LoanTerms) { t.Expiration++ },
		"currency":   func(t *LoanTerms) { t.Currency = "USD" },
		"mode":       func(t *LoanTerms) { t.PriceLiquidation = true },
	}
	for name, mutate := range mutations {
		terms := sampleTerms()
		mutate(terms)
		if domain.Digest(terms) == base {
			t.Fatalf("%s does not affect the digest", name)
		}
	}
	other := domain
	other.ChainID = 99
	if other.Digest(sampleTerms()) == base {
		t.Fatalf("chain id does not affect the digest")
	}
}

func TestVerifierConsumesOnce(t *testing.T) {
	tx := state.NewManager(storage.NewMemDB()).Begin()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	signer := key.PubKey().Address().Raw()
	if err := tx.SetRole(state.RoleTermsSigner, signer[:]); err != nil {
		t.Fatalf("set role: %v", err)
	}
	domain := DefaultParams().Domain
	verifier := NewVerifier(domain, state.NewRoleView(tx, state.RoleTermsSigner), NewSignatureSet(tx))

	terms := sampleTerms()
	sig, err := SignTerms(domain, terms, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	auth, err := verifier.Verify(terms, sig, 1_000)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if auth.Signer != signer {
		t.Fatalf("unexpected signer %x", auth.Signer)
	}
	if _, err := verifier.Verify(terms, sig, 1_000); err != nil {
		t.Fatalf("verification alone must not consume: %v", err)
	}
	if err := verifier.Consume(auth, 1_000); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := verifier.Verify(terms, sig, 1_000); !errors.Is(err, ErrSignatureUsed) {
		t.Fatalf("expected signature used, got %v", err)
	}
	if err := verifier.Consume(auth, 1_001); !errors.Is(err, ErrSignatureUsed) {
		t.Fatalf("double consume must fail, got %v", err)
	}

	fresh := NewVerifier(domain, state.NewRoleView(tx, state.RoleTermsSigner), NewSignatureSet(state.NewManager(storage.NewMemDB()).Begin()))
	tampered := sampleTerms()
	tampered.LoanAmount = big.NewInt(5_000)
	if _, err := fresh.Verify(tampered, sig, 1_000); !errors.Is(err, ErrInvalidSigner) {
		t.Fatalf("tampered terms must not recover the signer, got %v", err)
	}
	if _, err := verifier.Verify(terms, sig[:64], 1_000); !errors.Is(err, ErrInvalidSigner) {
		t.Fatalf("short signature must be rejected, got %v", err)
	}
}

// malleate returns the (r, N-s, 1-v) twin of sig, which recovers the same
// signer over the same digest.
func malleate(sig []byte) []byte {
	n := ethcrypto.S256().Params().N
	s := new(big.Int).SetBytes(sig[32:64])
	out := make([]byte, len(sig))
	copy(out, sig[:32])
	new(big.Int).Sub(n, s).FillBytes(out[32:64])
	out[64] = 1 - sig[64]
	return out
}

func TestVerifierRejectsHighS(t *testing.T) {
	tx := state.NewManager(storage.NewMemDB()).Begin()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	signer := key.PubKey().Address().Raw()
	if err := tx.SetRole(state.RoleTermsSigner, signer[:]); err != nil {
		t.Fatalf("set role: %v", err)
	}
	domain := DefaultParams().Domain
	verifier := NewVerifier(domain, state.NewRoleView(tx, state.RoleTermsSigner), NewSignatureSet(tx))

	terms := sampleTerms()
	sig, err := SignTerms(domain, terms, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	twin := malleate(sig)
	if _, err := verifier.Verify(terms, twin, 1_000); !errors.Is(err, ErrInvalidSigner) {
		t.Fatalf("high-s signature must be rejected, got %v", err)
	}

	auth, err := verifier.Verify(terms, sig, 1_000)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := verifier.Consume(auth, 1_000); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := verifier.Verify(terms, twin, 1_000); !errors.Is(err, ErrInvalidSigner) {
		t.Fatalf("high-s twin of a consumed signature must stay rejected, got %v", err)
	}
}
