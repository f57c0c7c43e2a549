package crypto

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of an [R || S || V] secp256k1 signature.
const SignatureLength = 65

var (
	ErrSignatureLength    = errors.New("crypto: signature must be 65 bytes")
	ErrSignatureMalformed = errors.New("crypto: signature values out of range")
)

// SignDigest signs a 32-byte digest and returns a 65-byte signature with a
// recovery id of 0 or 1.
func SignDigest(digest []byte, key *PrivateKey) ([]byte, error) {
	if key == nil || key.PrivateKey == nil {
		return nil, errors.New("crypto: nil private key")
	}
	if len(digest) != 32 {
		return nil, fmt.Errorf("crypto: digest must be 32 bytes, got %d", len(digest))
	}
	return ethcrypto.Sign(digest, key.PrivateKey)
}

// NormalizeSignature copies sig and folds a 27/28 recovery id into 0/1.
// Signatures with a high S value are rejected so each authorisation has
// exactly one accepted byte encoding.
func NormalizeSignature(sig []byte) ([]byte, error) {
	if len(sig) != SignatureLength {
		return nil, ErrSignatureLength
	}
	out := make([]byte, SignatureLength)
	copy(out, sig)
	if out[64] >= 27 {
		out[64] -= 27
	}
	r := new(big.Int).SetBytes(out[:32])
	s := new(big.Int).SetBytes(out[32:64])
	if !ethcrypto.ValidateSignatureValues(out[64], r, s, true) {
		return nil, ErrSignatureMalformed
	}
	return out, nil
}

// RecoverAddress returns the raw address that produced sig over digest.
func RecoverAddress(digest, sig []byte) ([20]byte, error) {
	var out [20]byte
	normalized, err := NormalizeSignature(sig)
	if err != nil {
		return out, err
	}
	pub, err := ethcrypto.SigToPub(digest, normalized)
	if err != nil {
		return out, fmt.Errorf("crypto: recover public key: %w", err)
	}
	copy(out[:], ethcrypto.PubkeyToAddress(*pub).Bytes())
	return out, nil
}
