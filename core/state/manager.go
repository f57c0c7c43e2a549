package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"notelend/storage"
)

var (
	ErrTxClosed = errors.New("state: transaction already closed")
	errNilDB    = errors.New("state: database not configured")
)

// Manager owns the backing key-value store and hands out transactions that
// buffer writes until Commit.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a new write-buffering transaction.
func (m *Manager) Begin() *Tx {
	return &Tx{
		db:      m.db,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

// Close releases the underlying database.
func (m *Manager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

// Tx is an overlay over the database. Reads observe the transaction's own
// pending writes; nothing reaches the database until Commit, which applies
// every write in one batch.
type Tx struct {
	db      storage.Database
	writes  map[string][]byte
	deletes map[string]struct{}
	order   []string
	closed  bool
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (tx *Tx) get(hashed []byte) ([]byte, error) {
	if tx.closed {
		return nil, ErrTxClosed
	}
	k := string(hashed)
	if _, deleted := tx.deletes[k]; deleted {
		return nil, nil
	}
	if value, ok := tx.writes[k]; ok {
		return value, nil
	}
	if tx.db == nil {
		return nil, errNilDB
	}
	value, err := tx.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

func (tx *Tx) set(hashed []byte, value []byte) error {
	if tx.closed {
		return ErrTxClosed
	}
	k := string(hashed)
	delete(tx.deletes, k)
	if _, seen := tx.writes[k]; !seen {
		tx.order = append(tx.order, k)
	}
	tx.writes[k] = value
	return nil
}

func (tx *Tx) remove(hashed []byte) error {
	if tx.closed {
		return ErrTxClosed
	}
	k := string(hashed)
	if _, seen := tx.writes[k]; !seen {
		tx.order = append(tx.order, k)
	}
	delete(tx.writes, k)
	tx.deletes[k] = struct{}{}
	return nil
}

// Pending reports how many keys the transaction will touch on commit.
func (tx *Tx) Pending() int {
	return len(tx.order)
}

// Commit writes every buffered change atomically and closes the transaction.
func (tx *Tx) Commit() error {
	if tx.closed {
		return ErrTxClosed
	}
	if tx.db == nil {
		return errNilDB
	}
	batch := storage.NewBatch()
	for _, k := range tx.order {
		if _, deleted := tx.deletes[k]; deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), tx.writes[k])
	}
	if err := tx.db.Write(batch); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	tx.closed = true
	return nil
}

// Discard drops every buffered change. It is safe to call after Commit.
func (tx *Tx) Discard() {
	tx.writes = nil
	tx.deletes = nil
	tx.order = nil
	tx.closed = true
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (tx *Tx) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return tx.set(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (tx *Tx) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := tx.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (tx *Tx) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return tx.remove(kvKey(key))
}

func (tx *Tx) loadList(hashed []byte) ([][]byte, error) {
	data, err := tx.get(hashed)
	if err != nil {
		return nil, err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (tx *Tx) storeList(hashed []byte, list [][]byte) error {
	if len(list) == 0 {
		return tx.remove(hashed)
	}
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return tx.set(hashed, encoded)
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (tx *Tx) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	list, err := tx.loadList(hashed)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return tx.storeList(hashed, list)
}

// KVRemove deletes value from the list stored under key, preserving the order
// of the remaining entries.
func (tx *Tx) KVRemove(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	list, err := tx.loadList(hashed)
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, existing := range list {
		if !bytes.Equal(existing, value) {
			kept = append(kept, existing)
		}
	}
	return tx.storeList(hashed, kept)
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (tx *Tx) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := tx.get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

var rolePrefix = []byte("role:")

func roleKey(role string) []byte {
	buf := make([]byte, len(rolePrefix)+len(role))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role)
	return buf
}

// SetRole associates an address with the specified role. Duplicate assignments
// are ignored while the stored list remains sorted for determinism.
func (tx *Tx) SetRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	hashed := kvKey(roleKey(trimmed))
	members, err := tx.loadList(hashed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr...))
	sort.Slice(members, func(i, j int) bool {
		return bytes.Compare(members[i], members[j]) < 0
	})
	return tx.storeList(hashed, members)
}

// RevokeRole removes addr from role. Revoking an absent member is a no-op.
func (tx *Tx) RevokeRole(role string, addr []byte) error {
	return tx.KVRemove(roleKey(strings.TrimSpace(role)), addr)
}

// RoleMembers returns all addresses assigned to the provided role.
func (tx *Tx) RoleMembers(role string) ([][]byte, error) {
	members, err := tx.loadList(kvKey(roleKey(strings.TrimSpace(role))))
	if err != nil {
		return nil, err
	}
	if members == nil {
		return [][]byte{}, nil
	}
	return members, nil
}

// HasRole reports whether the provided address is associated with the
// specified role.
func (tx *Tx) HasRole(role string, addr []byte) (bool, error) {
	if len(addr) == 0 {
		return false, nil
	}
	members, err := tx.RoleMembers(role)
	if err != nil {
		return false, err
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return true, nil
		}
	}
	return false, nil
}
