package backtest

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Report renders the run summary as a plain-text table for CLI output.
func (res *Result) Report() string {
	var b strings.Builder
	line := strings.Repeat("=", 50)
	b.WriteString(line + "\n")
	b.WriteString(fmt.Sprintf("%*s\n", (50+len("BACKTEST RESULTS"))/2, "BACKTEST RESULTS"))
	b.WriteString(line + "\n")
	b.WriteString(fmt.Sprintf("Total Return:     %8.2f%%\n", res.Metrics.TotalReturn*100))
	b.WriteString(fmt.Sprintf("Sharpe Ratio:     %8.2f\n", res.Metrics.SharpeRatio))
	b.WriteString(fmt.Sprintf("Max Drawdown:     %8.2f%%\n", res.Metrics.MaxDrawdown*100))
	b.WriteString(fmt.Sprintf("Win Rate:         %8.2f%%\n", res.Metrics.WinRate*100))
	if math.IsInf(res.Metrics.ProfitFactor, 1) {
		b.WriteString("Profit Factor:         inf\n")
	} else {
		b.WriteString(fmt.Sprintf("Profit Factor:    %8.2f\n", res.Metrics.ProfitFactor))
	}
	b.WriteString(fmt.Sprintf("Total Trades:     %8d\n", res.Metrics.TotalTrades))
	b.WriteString(fmt.Sprintf("Final Cash:       %8.2f\n", res.Portfolio.Cash))
	if len(res.Failures) > 0 {
		b.WriteString(strings.Repeat("-", 50) + "\n")
		symbols := make([]string, 0, len(res.Failures))
		for sym := range res.Failures {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		for _, sym := range symbols {
			b.WriteString(fmt.Sprintf("FAILED %s: %v\n", sym, res.Failures[sym]))
		}
	}
	b.WriteString(line + "\n")
	return b.String()
}
