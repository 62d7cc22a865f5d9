package cryptofolio

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Store is the durable storage of a ledger.
//
// Load returns false when nothing was ever saved. Save must replace the
// previous content atomically: a failed Save leaves the previous content
// readable.
type Store interface {
	Load() (data []byte, ok bool, err error)
	Save(data []byte) error
}

// Ledger represents the list of buy transactions entered by the user.
//
// In a Ledger transactions are kept in insertion order. Every mutation is
// persisted in full before it returns.
type Ledger struct {
	mu           sync.Mutex
	store        Store
	transactions []Transaction
	now          func() time.Time
	lastID       int64
}

// OpenLedger loads the ledger persisted in store, or an empty ledger if the
// store was never written.
func OpenLedger(store Store) (*Ledger, error) {
	l := &Ledger{store: store, now: time.Now}
	data, ok, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("cannot load ledger: %w", err)
	}
	if ok {
		txs, err := DecodeLedger(data)
		if err != nil {
			return nil, fmt.Errorf("cannot decode ledger: %w", err)
		}
		l.transactions = txs
		for _, tx := range txs {
			l.lastID = max(l.lastID, tx.ID)
		}
	}
	return l, nil
}

// Len returns the number of transactions.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.transactions)
}

// List returns a copy of the transactions in insertion order.
func (l *Ledger) List() []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.transactions)
}

// Reversed returns a copy of the transactions, latest added first.
func (l *Ledger) Reversed() []Transaction {
	txs := l.List()
	slices.Reverse(txs)
	return txs
}

// Get returns the transaction with that id.
func (l *Ledger) Get(id int64) (Transaction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.index(id)
	if i < 0 {
		return Transaction{}, false
	}
	return l.transactions[i], true
}

// Assets returns the distinct asset ids in order of first appearance.
func (l *Ledger) Assets() []string {
	return Assets(l.List())
}

// Assets returns the distinct asset ids of txs in order of first appearance.
func Assets(txs []Transaction) []string {
	var assets []string
	for _, tx := range txs {
		if !slices.Contains(assets, tx.Asset) {
			assets = append(assets, tx.Asset)
		}
	}
	return assets
}

// Add validates tx, assigns an id if it has none, appends it and persists
// the ledger. The stored transaction is returned.
func (l *Ledger) Add(tx Transaction) (Transaction, error) {
	if err := tx.Validate(); err != nil {
		return tx, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if tx.ID == 0 {
		tx.ID = l.nextID()
	} else if l.index(tx.ID) >= 0 {
		return tx, &ValidationError{Field: "id", Msg: fmt.Sprintf("transaction %d already exists", tx.ID)}
	}

	prev := l.transactions
	l.transactions = append(slices.Clip(prev), tx)
	if err := l.persist(); err != nil {
		l.transactions = prev
		return tx, err
	}
	l.lastID = max(l.lastID, tx.ID)
	return tx, nil
}

// Remove deletes the transaction with that id and persists the ledger.
// Removing an unknown id is a no-op.
func (l *Ledger) Remove(id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.index(id)
	if i < 0 {
		return nil
	}
	prev := l.transactions
	l.transactions = slices.Delete(slices.Clone(prev), i, i+1)
	if err := l.persist(); err != nil {
		l.transactions = prev
		return err
	}
	return nil
}

// nextID returns a creation timestamp that is strictly greater than any id
// handed out before.
func (l *Ledger) nextID() int64 {
	id := l.now().UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	return id
}

func (l *Ledger) index(id int64) int {
	return slices.IndexFunc(l.transactions, func(tx Transaction) bool { return tx.ID == id })
}

// persist writes the full ledger to the store.
func (l *Ledger) persist() error {
	data, err := EncodeLedger(l.transactions)
	if err != nil {
		return fmt.Errorf("cannot encode ledger: %w", err)
	}
	if err := l.store.Save(data); err != nil {
		return fmt.Errorf("cannot save ledger: %w", err)
	}
	return nil
}
