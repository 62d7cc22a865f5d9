package cryptofolio

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// LedgerVersion is the version of the persisted ledger document.
const LedgerVersion = 1

// ledgerDocument is the persisted form of a ledger.
type ledgerDocument struct {
	Version      int        `json:"version"`
	Transactions []txRecord `json:"transactions"`
}

// txRecord is the persisted form of a transaction.
//
// Unversioned ledgers used "assetId"/"coinId" and "price", they are read as
// aliases.
type txRecord struct {
	ID        int64            `json:"id"`
	Asset     string           `json:"asset"`
	Amount    decimal.Decimal  `json:"amount"`
	UnitPrice decimal.Decimal  `json:"unitPrice"`
	Currency  string           `json:"currency,omitempty"`
	Date      Date             `json:"date"`
	Memo      string           `json:"memo,omitempty"`
	AssetID   string           `json:"assetId,omitempty"`
	CoinID    string           `json:"coinId,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

func (r txRecord) transaction() Transaction {
	asset := r.Asset
	if asset == "" {
		asset = r.AssetID
	}
	if asset == "" {
		asset = r.CoinID
	}
	price := r.UnitPrice
	if price.IsZero() && r.Price != nil {
		price = *r.Price
	}
	return Transaction{
		ID:        r.ID,
		Asset:     asset,
		Amount:    Q(r.Amount),
		UnitPrice: M(price, r.Currency),
		Date:      r.Date,
		Memo:      r.Memo,
	}
}

func newTxRecord(tx Transaction) txRecord {
	return txRecord{
		ID:        tx.ID,
		Asset:     tx.Asset,
		Amount:    tx.Amount.Decimal(),
		UnitPrice: tx.UnitPrice.Decimal(),
		Currency:  tx.UnitPrice.Currency(),
		Date:      tx.Date,
		Memo:      tx.Memo,
	}
}

// EncodeLedger serializes transactions into a versioned json document.
func EncodeLedger(txs []Transaction) ([]byte, error) {
	doc := ledgerDocument{Version: LedgerVersion, Transactions: make([]txRecord, 0, len(txs))}
	for _, tx := range txs {
		doc.Transactions = append(doc.Transactions, newTxRecord(tx))
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeLedger parses a ledger document. It accepts the versioned document
// and the legacy bare json array of transactions. Every transaction is
// validated and ids must be unique.
func DecodeLedger(data []byte) ([]Transaction, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var records []txRecord
	if data[0] == '[' {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("invalid legacy ledger: %w", err)
		}
	} else {
		var doc ledgerDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid ledger: %w", err)
		}
		if doc.Version > LedgerVersion {
			return nil, fmt.Errorf("unsupported ledger version %d, want at most %d", doc.Version, LedgerVersion)
		}
		records = doc.Transactions
	}

	txs := make([]Transaction, 0, len(records))
	seen := make(map[int64]bool, len(records))
	for i, r := range records {
		tx := r.transaction()
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("transaction #%d: %w", i, err)
		}
		if tx.ID == 0 {
			return nil, fmt.Errorf("transaction #%d: missing id", i)
		}
		if seen[tx.ID] {
			return nil, fmt.Errorf("transaction #%d: duplicate id %d", i, tx.ID)
		}
		seen[tx.ID] = true
		txs = append(txs, tx)
	}
	return txs, nil
}
