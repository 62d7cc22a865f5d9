package cryptofolio

import (
	"errors"
	"slices"
)

// EUR is a helper for test to create euro money from const
func EUR(v float64) Money { return M(v, "EUR") }

// buy is a helper for test to create a transaction from const.
func buy(id int64, on, asset string, amount, unitPrice float64) Transaction {
	tx := NewBuy(MustParseDate(on), asset, Q(amount), EUR(unitPrice))
	tx.ID = id
	return tx
}

// sameTransaction compares transactions by value, decimals may differ in
// representation after a round trip.
func sameTransaction(a, b Transaction) bool {
	return a.ID == b.ID && a.Asset == b.Asset && a.Amount.Equal(b.Amount) &&
		a.UnitPrice.Equal(b.UnitPrice) && a.Date == b.Date && a.Memo == b.Memo
}

// memStore is an in memory Store that can be told to fail.
type memStore struct {
	data  []byte
	saved bool
	saves int
	fail  error
}

func (s *memStore) Load() ([]byte, bool, error) {
	return slices.Clone(s.data), s.saved, nil
}

func (s *memStore) Save(data []byte) error {
	if s.fail != nil {
		return s.fail
	}
	s.data, s.saved = slices.Clone(data), true
	s.saves++
	return nil
}

var errDiskFull = errors.New("disk full")
