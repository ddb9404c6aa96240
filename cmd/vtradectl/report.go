package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"vtrade/internal/trading"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"
)

// formatMoney renders an amount in minor units of currency. Unknown codes
// fall back to the bare number followed by the code.
func formatMoney(amount int64, currency string) string {
	if money.GetCurrency(currency) == nil {
		return strconv.FormatInt(amount, 10) + " " + currency
	}
	return money.New(amount, currency).Display()
}

func formatPercent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}

func optMoney(v *int64, currency string) string {
	if v == nil {
		return "-"
	}
	return formatMoney(*v, currency)
}

// cell keeps user supplied text from breaking a markdown table row.
func cell(s string) string {
	return strings.NewReplacer("|", "\\|", "\n", " ").Replace(s)
}

func leaderboardMarkdown(entries []trading.RankedEntry, sortBy, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Leaderboard\n\nRanked by %s, %d portfolios.\n\n", sortBy, len(entries))
	if len(entries) == 0 {
		b.WriteString("_No portfolio has traded yet._\n")
		return b.String()
	}
	b.WriteString("| # | Trader | Total value | P/L | P/L % | Realized | Unrealized | Trades |\n")
	b.WriteString("|--:|---|--:|--:|--:|--:|--:|--:|\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s | %d/%d |\n",
			e.Rank,
			cell(e.DisplayName),
			formatMoney(e.TotalAssetValue, currency),
			formatMoney(e.ProfitLoss, currency),
			formatPercent(e.ProfitLossPercentage),
			formatMoney(e.RealizedProfitLoss, currency),
			formatMoney(e.UnrealizedProfitLoss, currency),
			e.SuccessfulTrades, e.TotalTransactions,
		)
	}
	return b.String()
}

func historyMarkdown(userID string, page trading.HistoryPage, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Transactions of %s\n\nPage %d of %d, %d in total.\n\n", cell(userID), page.Page, page.TotalPages, page.Total)
	if len(page.Transactions) == 0 {
		b.WriteString("_No transactions._\n")
		return b.String()
	}
	b.WriteString("| Executed | Side | Symbol | Qty | Price | Fee | Tax | Net | Avg cost | P/L |\n")
	b.WriteString("|---|---|---|--:|--:|--:|--:|--:|--:|--:|\n")
	for _, t := range page.Transactions {
		pl := optMoney(t.ProfitLoss, currency)
		if t.ProfitLossPercentage != nil {
			pl += " (" + formatPercent(*t.ProfitLossPercentage) + ")"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %s | %s | %s | %s | %s | %s |\n",
			t.ExecutedAt.UTC().Format("2006-01-02 15:04"),
			t.Type,
			cell(t.SymbolCode),
			t.Quantity,
			formatMoney(t.PricePerShare, currency),
			formatMoney(t.Fee, currency),
			formatMoney(t.Tax, currency),
			formatMoney(t.NetAmount, currency),
			optMoney(t.AverageCost, currency),
			pl,
		)
	}
	return b.String()
}

func printMarkdown(md string) {
	if *rawFlag {
		fmt.Print(md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(160))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Fprintf(os.Stderr, "render markdown: %v\n", err)
	fmt.Print(md)
}
