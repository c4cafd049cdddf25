package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/orchestrator"
)

// DefaultCSVReporter implements CSV output functionality
type DefaultCSVReporter struct{}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

var rankingHeaders = []string{
	"Rank", "SL", "BE", "TS_Trigger", "TS_Step", "Score", "PnL_Total_%", "Improvement_%",
	"Win_Rate_%", "Profit_Factor", "Max_Drawdown_%", "Sharpe", "Recovery_Factor",
	"Trades", "Wins", "Losses",
}

// WriteRankingCSV writes every ranked candidate
func (r *DefaultCSVReporter) WriteRankingCSV(result *orchestrator.RunResult, path string) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(rankingHeaders); err != nil {
		return err
	}
	for _, row := range ToRankingRows(result, 0) {
		if err := w.Write([]string{
			strconv.Itoa(row.Rank),
			formatFloat(row.Params.SL),
			formatFloat(row.Params.BE),
			formatFloat(row.Params.TSTrigger),
			formatFloat(row.Params.TSStep),
			fmt.Sprintf("%.4f", row.Score),
			fmt.Sprintf("%.4f", row.PnLTotal),
			fmt.Sprintf("%.4f", row.Improvement),
			fmt.Sprintf("%.2f", row.WinRate),
			fmt.Sprintf("%.4f", row.ProfitFactor),
			fmt.Sprintf("%.4f", row.MaxDrawdown),
			fmt.Sprintf("%.4f", row.SharpeRatio),
			fmt.Sprintf("%.4f", row.RecoveryFactor),
			strconv.Itoa(row.TotalTrades),
			strconv.Itoa(row.WinningTrades),
			strconv.Itoa(row.LosingTrades),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

var tradeHeaders = []string{
	"Num", "Side", "Entry_Time", "Exit_Time", "Entry_Price", "Exit_Price",
	"Exit_Type", "PnL_%", "Original_PnL_%", "BE_Armed", "TS_Armed", "Bars_Held",
}

// WriteTradesCSV writes per-trade results followed by a summary row
func (r *DefaultCSVReporter) WriteTradesCSV(trades []backtest.TradeResult, path string) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(tradeHeaders); err != nil {
		return err
	}

	var totalPnL, totalOrigin float64
	exits := make(map[backtest.ExitType]int)
	for _, t := range trades {
		totalPnL += t.PnLPct
		totalOrigin += t.PnLPctOrigin
		exits[t.ExitType]++
		if err := w.Write([]string{
			strconv.Itoa(t.Num),
			string(t.Side),
			t.EntryTime.Format("2006-01-02 15:04:05"),
			t.ExitTime.Format("2006-01-02 15:04:05"),
			formatFloat(t.EntryPrice),
			formatFloat(t.ExitPrice),
			string(t.ExitType),
			fmt.Sprintf("%.4f", t.PnLPct),
			fmt.Sprintf("%.4f", t.PnLPctOrigin),
			strconv.FormatBool(t.BEArmed),
			strconv.FormatBool(t.TSArmed),
			strconv.Itoa(t.BarsHeld),
		}); err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("SUMMARY: trades=%d; pnl_total=%.4f%%; original_pnl_total=%.4f%%; exits=%s",
		len(trades), totalPnL, totalOrigin, formatExitCounts(exits))
	summaryRow := make([]string, len(tradeHeaders))
	summaryRow[len(summaryRow)-1] = summary
	if err := w.Write(summaryRow); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// formatExitCounts renders exit counts in a stable order
func formatExitCounts(counts map[backtest.ExitType]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, counts[backtest.ExitType(k)]))
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}

// WriteRankingCSV is a convenience wrapper around the default CSV reporter
func WriteRankingCSV(result *orchestrator.RunResult, path string) error {
	return NewDefaultCSVReporter().WriteRankingCSV(result, path)
}

// WriteTradesCSV is a convenience wrapper around the default CSV reporter
func WriteTradesCSV(trades []backtest.TradeResult, path string) error {
	return NewDefaultCSVReporter().WriteTradesCSV(trades, path)
}
