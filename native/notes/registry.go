package notes

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind selects which side of a loan a note represents.
type Kind uint8

const (
	KindLender Kind = iota + 1
	KindBorrower
)

func (k Kind) Valid() bool {
	return k == KindLender || k == KindBorrower
}

func (k Kind) String() string {
	switch k {
	case KindLender:
		return "lender"
	case KindBorrower:
		return "borrower"
	default:
		return "unknown"
	}
}

// ParseKind accepts "lender" or "borrower".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lender":
		return KindLender, nil
	case "borrower":
		return KindBorrower, nil
	default:
		return 0, fmt.Errorf("notes: unknown note kind %q", s)
	}
}

var (
	ErrNoteExists   = errors.New("notes: note already minted")
	ErrNoteNotFound = errors.New("notes: note not found")
	ErrNotHolder    = errors.New("notes: caller does not hold note")
	ErrInvalidKind  = errors.New("notes: invalid note kind")
	ErrZeroAddress  = errors.New("notes: recipient must not be zero")
	errNilStore     = errors.New("notes: storage not configured")
)

// Storage is the subset of the state transaction used by the registry.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Registry records the holder of every outstanding lender and borrower note.
type Registry struct {
	store Storage
}

func NewRegistry(store Storage) *Registry {
	return &Registry{store: store}
}

func noteKey(kind Kind, loanID uint64) []byte {
	return []byte("notes/" + kind.String() + "/" + strconv.FormatUint(loanID, 10))
}

func (r *Registry) check(kind Kind) error {
	if r == nil || r.store == nil {
		return errNilStore
	}
	if !kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

// OwnerOf returns the holder of the note. The boolean is false when the note
// has not been minted or was burned.
func (r *Registry) OwnerOf(kind Kind, loanID uint64) ([20]byte, bool, error) {
	var owner [20]byte
	if err := r.check(kind); err != nil {
		return owner, false, err
	}
	ok, err := r.store.KVGet(noteKey(kind, loanID), &owner)
	if err != nil {
		return owner, false, err
	}
	return owner, ok, nil
}

// Mint issues a note for loanID to owner.
func (r *Registry) Mint(kind Kind, loanID uint64, owner [20]byte) error {
	if owner == ([20]byte{}) {
		return ErrZeroAddress
	}
	_, exists, err := r.OwnerOf(kind, loanID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s note for loan %d", ErrNoteExists, kind, loanID)
	}
	return r.store.KVPut(noteKey(kind, loanID), owner)
}

// Burn destroys the note.
func (r *Registry) Burn(kind Kind, loanID uint64) error {
	_, exists, err := r.OwnerOf(kind, loanID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s note for loan %d", ErrNoteNotFound, kind, loanID)
	}
	return r.store.KVDelete(noteKey(kind, loanID))
}

// Transfer hands the note from its current holder to to.
func (r *Registry) Transfer(kind Kind, loanID uint64, from, to [20]byte) error {
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	owner, exists, err := r.OwnerOf(kind, loanID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s note for loan %d", ErrNoteNotFound, kind, loanID)
	}
	if owner != from {
		return ErrNotHolder
	}
	return r.store.KVPut(noteKey(kind, loanID), to)
}
