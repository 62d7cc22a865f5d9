// Package renderer turns balances, holdings, transactions and charts into
// markdown documents.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/etnz/cryptofolio"
)

//go:embed *.md
var templates embed.FS

// RenderBalances renders exchange balances to a markdown string.
func RenderBalances(rows []cryptofolio.BalanceRow) string {
	partials := map[string]string{
		"balances_table": "balances_table.md",
	}
	return renderTemplate("balances", "balances.md", partials, newBalancesView(rows))
}

// RenderHoldings renders the valuation of the ledger to a markdown string.
func RenderHoldings(h cryptofolio.Holdings) string {
	partials := map[string]string{
		"holdings_summary":   "holdings_summary.md",
		"holdings_positions": "holdings_positions.md",
	}
	return renderTemplate("holdings", "holdings.md", partials, h)
}

// RenderTransactions renders the ledger transactions to a markdown string.
func RenderTransactions(txs []cryptofolio.Transaction) string {
	return renderTemplate("transactions", "transactions.md", nil, txs)
}

// RenderChart renders a price curve with its purchase marks to a markdown string.
func RenderChart(c cryptofolio.Chart) string {
	return renderTemplate("chart", "chart.md", nil, newChartView(c))
}

// Report is the full portfolio report.
type Report struct {
	On            cryptofolio.Date
	Holdings      cryptofolio.Holdings
	Balances      []cryptofolio.BalanceRow
	BalancesError string // why balances are missing, if they are
}

// RenderReport renders the full portfolio report to a markdown string.
func RenderReport(r Report) string {
	partials := map[string]string{
		"holdings_summary":   "holdings_summary.md",
		"holdings_positions": "holdings_positions.md",
		"balances_table":     "balances_table.md",
	}
	data := struct {
		Report
		BalancesView balancesView
	}{r, newBalancesView(r.Balances)}
	return renderTemplate("report", "report.md", partials, data)
}

// renderTemplate is a generic utility to render a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		content, err := fs.ReadFile(templates, file)
		if err != nil {
			return fmt.Sprintf("error reading partial template %q: %v", file, err)
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
