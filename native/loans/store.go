package loans

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// Storage is the subset of the state transaction used by the loans module.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVRemove(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

var nextLoanIDKey = []byte("loans/next-id")

func loanKey(id uint64) []byte {
	return []byte("loans/record/" + strconv.FormatUint(id, 10))
}

func borrowerIndexKey(borrower [20]byte) []byte {
	return []byte(fmt.Sprintf("loans/borrower/%x", borrower[:]))
}

func encodeID(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

func (e *Engine) loadLoan(id uint64) (*Loan, bool, error) {
	loan := new(Loan)
	ok, err := e.state.KVGet(loanKey(id), loan)
	if err != nil || !ok {
		return nil, ok, err
	}
	loan.ensureDefaults()
	return loan, true, nil
}

func (e *Engine) putLoan(loan *Loan) error {
	return e.state.KVPut(loanKey(loan.ID), loan)
}

// allocateID returns the next loan id. Ids start at 1 and are never reused.
func (e *Engine) allocateID() (uint64, error) {
	var next uint64
	if _, err := e.state.KVGet(nextLoanIDKey, &next); err != nil {
		return 0, err
	}
	if next == 0 {
		next = 1
	}
	if err := e.state.KVPut(nextLoanIDKey, next+1); err != nil {
		return 0, err
	}
	return next, nil
}

// LoanCount returns the number of loan ids ever issued.
func (e *Engine) LoanCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	var next uint64
	if _, err := e.state.KVGet(nextLoanIDKey, &next); err != nil {
		return 0, err
	}
	if next == 0 {
		return 0, nil
	}
	return next - 1, nil
}

func (e *Engine) indexActive(borrower [20]byte, id uint64) error {
	return e.state.KVAppend(borrowerIndexKey(borrower), encodeID(id))
}

func (e *Engine) unindexActive(borrower [20]byte, id uint64) error {
	return e.state.KVRemove(borrowerIndexKey(borrower), encodeID(id))
}

// ActiveLoans lists the active loan ids originated by borrower in origination
// order.
func (e *Engine) ActiveLoans(borrower [20]byte) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var raw [][]byte
	if err := e.state.KVGetList(borrowerIndexKey(borrower), &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 8 {
			return nil, fmt.Errorf("loans: corrupt borrower index entry")
		}
		ids = append(ids, binary.BigEndian.Uint64(entry))
	}
	return ids, nil
}
