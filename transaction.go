package cryptofolio

import (
	"fmt"
	"strings"
)

// Transaction is a user-entered buy of a crypto asset.
//
// Transactions are never mutated once in a ledger, only removed.
type Transaction struct {
	ID        int64    `json:"id"`             // unique, creation time in epoch milliseconds
	Asset     string   `json:"asset"`          // price id of the asset (e.g. "bitcoin")
	Amount    Quantity `json:"amount"`         // units bought, positive
	UnitPrice Money    `json:"unitPrice"`      // fiat price paid per unit, positive
	Date      Date     `json:"date"`           // day of the purchase
	Memo      string   `json:"memo,omitempty"` // optional note
}

// NewBuy creates a transaction without an ID, the ledger assigns one on Add.
func NewBuy(on Date, asset string, amount Quantity, unitPrice Money) Transaction {
	return Transaction{Asset: asset, Amount: amount, UnitPrice: unitPrice, Date: on}
}

// Cost returns the fiat amount paid.
func (tx Transaction) Cost() Money { return tx.UnitPrice.Mul(tx.Amount) }

// Validate checks the transaction fields and returns the first failure as a
// *ValidationError.
func (tx Transaction) Validate() error {
	if strings.TrimSpace(tx.Asset) == "" {
		return &ValidationError{Field: "asset", Msg: "asset id is required"}
	}
	if !tx.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Msg: fmt.Sprintf("must be positive, got %s", tx.Amount)}
	}
	if !tx.UnitPrice.IsPositive() {
		return &ValidationError{Field: "unitPrice", Msg: fmt.Sprintf("must be positive, got %s", tx.UnitPrice.Decimal())}
	}
	if tx.Date.IsZero() {
		return &ValidationError{Field: "date", Msg: "date is required"}
	}
	if tx.ID < 0 {
		return &ValidationError{Field: "id", Msg: "must not be negative"}
	}
	return nil
}
