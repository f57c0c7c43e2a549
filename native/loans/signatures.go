package loans

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"

	"notelend/crypto"
)

// SignatureID content-addresses a signature for the replay set. The
// signature is normalised first so both recovery-id encodings of the same
// authorisation map to one id.
func SignatureID(sig []byte) ([32]byte, error) {
	normalized, err := crypto.NormalizeSignature(sig)
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: %v", ErrInvalidSigner, err)
	}
	return blake3.Sum256(normalized), nil
}

func usedSignatureKey(id [32]byte) []byte {
	return []byte("loans/sig/" + hex.EncodeToString(id[:]))
}

// SignatureSet is the append-only set of consumed authorisations.
type SignatureSet struct {
	store Storage
}

func NewSignatureSet(store Storage) *SignatureSet {
	return &SignatureSet{store: store}
}

// Contains reports whether id has been consumed.
func (s *SignatureSet) Contains(id [32]byte) (bool, error) {
	if s == nil || s.store == nil {
		return false, errNilState
	}
	return s.store.KVGet(usedSignatureKey(id), nil)
}

// Add records id as consumed at the given time.
func (s *SignatureSet) Add(id [32]byte, at uint64) error {
	used, err := s.Contains(id)
	if err != nil {
		return err
	}
	if used {
		return &SignatureUsedError{ID: id}
	}
	return s.store.KVPut(usedSignatureKey(id), at)
}

// SignerRegistry answers whether an address may authorise loan terms.
type SignerRegistry interface {
	IsAuthorizedSigner(addr [20]byte) (bool, error)
}

// Verifier authenticates signed terms. It does not judge the financial
// content of the terms.
type Verifier struct {
	domain  Domain
	signers SignerRegistry
	used    *SignatureSet
}

func NewVerifier(domain Domain, signers SignerRegistry, used *SignatureSet) *Verifier {
	return &Verifier{domain: domain, signers: signers, used: used}
}

// Verify checks expiry, replay and signer authority for terms at time now.
func (v *Verifier) Verify(terms *LoanTerms, sig []byte, now uint64) (Authorization, error) {
	var auth Authorization
	if v == nil || v.signers == nil || v.used == nil {
		return auth, errNilState
	}
	if terms == nil {
		return auth, fmt.Errorf("%w: terms required", ErrInvalidLoanTerms)
	}
	id, err := SignatureID(sig)
	if err != nil {
		return auth, err
	}
	if terms.Expiration <= now {
		return auth, fmt.Errorf("%w: expired at %d, now %d", ErrLoanTermsExpired, terms.Expiration, now)
	}
	used, err := v.used.Contains(id)
	if err != nil {
		return auth, err
	}
	if used {
		return auth, &SignatureUsedError{ID: id}
	}
	signer, err := RecoverTermsSigner(v.domain, terms, sig)
	if err != nil {
		return auth, err
	}
	ok, err := v.signers.IsAuthorizedSigner(signer)
	if err != nil {
		return auth, err
	}
	if !ok {
		return auth, fmt.Errorf("%w: %s is not an authorised terms signer", ErrInvalidSigner, crypto.FormatRaw(signer))
	}
	auth.Signer = signer
	auth.SignatureID = id
	return auth, nil
}

// Consume marks the authorisation's signature as spent.
func (v *Verifier) Consume(auth Authorization, now uint64) error {
	if v == nil || v.used == nil {
		return errNilState
	}
	return v.used.Add(auth.SignatureID, now)
}
