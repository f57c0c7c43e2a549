package notes

import (
	"fmt"
)

// Voucher confirms whether a note holder accepts a terms signer.
type Voucher interface {
	VouchesFor(signer [20]byte) (bool, error)
}

// ExternalHolder is an externally controlled account. It accepts any signer
// the protocol already authorises.
type ExternalHolder struct{}

func (ExternalHolder) VouchesFor([20]byte) (bool, error) { return true, nil }

// VaultHolder is a programmable holder that only accepts signers it has
// explicitly approved.
type VaultHolder struct {
	registry *Registry
	holder   [20]byte
}

func (v VaultHolder) VouchesFor(signer [20]byte) (bool, error) {
	var approved bool
	ok, err := v.registry.store.KVGet(approvedSignerKey(v.holder, signer), &approved)
	if err != nil {
		return false, err
	}
	return ok && approved, nil
}

// HolderProfile is stored for holders registered as programmable.
type HolderProfile struct {
	Programmable bool
}

func profileKey(holder [20]byte) []byte {
	return []byte(fmt.Sprintf("notes/holder/%x", holder[:]))
}

func approvedSignerKey(holder, signer [20]byte) []byte {
	return []byte(fmt.Sprintf("notes/holder/%x/signer/%x", holder[:], signer[:]))
}

// RegisterProgrammable marks holder as a programmable vault holder.
func (r *Registry) RegisterProgrammable(holder [20]byte) error {
	if r == nil || r.store == nil {
		return errNilStore
	}
	if holder == ([20]byte{}) {
		return ErrZeroAddress
	}
	return r.store.KVPut(profileKey(holder), HolderProfile{Programmable: true})
}

// IsProgrammable reports whether holder was registered as programmable.
func (r *Registry) IsProgrammable(holder [20]byte) (bool, error) {
	if r == nil || r.store == nil {
		return false, errNilStore
	}
	var profile HolderProfile
	ok, err := r.store.KVGet(profileKey(holder), &profile)
	if err != nil {
		return false, err
	}
	return ok && profile.Programmable, nil
}

// SetApprovedSigner records whether a programmable holder accepts signer.
func (r *Registry) SetApprovedSigner(holder, signer [20]byte, approved bool) error {
	programmable, err := r.IsProgrammable(holder)
	if err != nil {
		return err
	}
	if !programmable {
		return fmt.Errorf("notes: holder %x is not programmable", holder[:])
	}
	if !approved {
		return r.store.KVDelete(approvedSignerKey(holder, signer))
	}
	return r.store.KVPut(approvedSignerKey(holder, signer), true)
}

// VoucherFor resolves the vouching capability for holder.
func (r *Registry) VoucherFor(holder [20]byte) (Voucher, error) {
	programmable, err := r.IsProgrammable(holder)
	if err != nil {
		return nil, err
	}
	if programmable {
		return VaultHolder{registry: r, holder: holder}, nil
	}
	return ExternalHolder{}, nil
}
