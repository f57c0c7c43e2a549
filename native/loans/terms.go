package loans

import (
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"notelend/crypto"
)

const (
	domainTypeSpec = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"
	termsTypeSpec  = "LoanTerms(address lender,uint256 loanAmount,uint256 interestRate,uint256 duration," +
		"address collateralAddress,uint256 collateralId,address borrower,uint256 expiration,string currency,bool priceLiquidation)"
)

var (
	domainTypeHash = ethcrypto.Keccak256([]byte(domainTypeSpec))
	termsTypeHash  = ethcrypto.Keccak256([]byte(termsTypeSpec))
)

// Domain binds signatures to one deployment of the loans module.
type Domain struct {
	Name              string
	Version           string
	ChainID           uint64
	VerifyingContract [20]byte
}

func wordUint(v uint64) []byte {
	return ethcommon.LeftPadBytes(new(big.Int).SetUint64(v).Bytes(), 32)
}

func wordBig(v *big.Int) []byte {
	if v == nil {
		return make([]byte, 32)
	}
	return ethcommon.LeftPadBytes(v.Bytes(), 32)
}

func wordAddress(a [20]byte) []byte {
	return ethcommon.LeftPadBytes(a[:], 32)
}

func wordBool(b bool) []byte {
	if b {
		return wordUint(1)
	}
	return wordUint(0)
}

// Separator returns the domain separator hash.
func (d Domain) Separator() ethcommon.Hash {
	return ethcrypto.Keccak256Hash(
		domainTypeHash,
		ethcrypto.Keccak256([]byte(d.Name)),
		ethcrypto.Keccak256([]byte(d.Version)),
		wordUint(d.ChainID),
		wordAddress(d.VerifyingContract),
	)
}

// StructHash returns the typed-data hash of the terms.
func (t *LoanTerms) StructHash() ethcommon.Hash {
	return ethcrypto.Keccak256Hash(
		termsTypeHash,
		wordAddress(t.Lender),
		wordBig(t.LoanAmount),
		wordUint(t.InterestRate),
		wordUint(t.Duration),
		wordAddress(t.CollateralAddress),
		wordUint(t.CollateralID),
		wordAddress(t.Borrower),
		wordUint(t.Expiration),
		ethcrypto.Keccak256([]byte(t.Currency)),
		wordBool(t.PriceLiquidation),
	)
}

// Digest returns the hash a signer commits to for terms within domain.
func (d Domain) Digest(t *LoanTerms) ethcommon.Hash {
	sep := d.Separator()
	structHash := t.StructHash()
	return ethcrypto.Keccak256Hash([]byte{0x19, 0x01}, sep[:], structHash[:])
}

// SignTerms produces a 65-byte signature over the terms digest.
func SignTerms(d Domain, t *LoanTerms, key *crypto.PrivateKey) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: terms required", ErrInvalidLoanTerms)
	}
	digest := d.Digest(t)
	return crypto.SignDigest(digest[:], key)
}

// RecoverTermsSigner returns the address that signed the terms.
func RecoverTermsSigner(d Domain, t *LoanTerms, sig []byte) ([20]byte, error) {
	digest := d.Digest(t)
	signer, err := crypto.RecoverAddress(digest[:], sig)
	if err != nil {
		return signer, fmt.Errorf("%w: %v", ErrInvalidSigner, err)
	}
	return signer, nil
}
