// Package cryptofolio tracks a self-reported cryptocurrency portfolio against
// live market prices, and reads a snapshot of real exchange balances.
//
// The core functionalities include:
//   - Ledger Management: an append/remove-only record of buy transactions,
//     persisted in full after every mutation through an injected [Store].
//   - Reconciliation: a stateless engine that values each transaction against
//     spot prices ([ComputePnL]) and projects purchases onto a daily price
//     curve ([ProjectPurchasePoints]).
//   - Aggregation: pure functions shaping balances, positions and charts for
//     presentation ([BalanceRows], [Summarize], [NewChart]).
//   - Orchestration: the [Tracker] issues the remote calls of one pass with a
//     bounded timeout and feeds their results to the engine.
//
// Remote services live in their own packages: binance (signed account
// requests) and coingecko (spot and historical prices). This package serves
// as the foundational logic for the `folio` command-line tool and its HTTP
// server.
package cryptofolio
