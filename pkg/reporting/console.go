package reporting

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/analysis"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/orchestrator"
)

// DefaultConsoleReporter renders results as tables
type DefaultConsoleReporter struct {
	out io.Writer
}

// NewDefaultConsoleReporter creates a console reporter writing to stdout
func NewDefaultConsoleReporter() *DefaultConsoleReporter {
	return &DefaultConsoleReporter{out: os.Stdout}
}

// NewConsoleReporterTo creates a console reporter writing to w
func NewConsoleReporterTo(w io.Writer) *DefaultConsoleReporter {
	return &DefaultConsoleReporter{out: w}
}

func (r *DefaultConsoleReporter) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

// OutputRun prints the run summary, the baseline comparison, the top
// candidates and any warnings
func (r *DefaultConsoleReporter) OutputRun(result *orchestrator.RunResult, topN int) {
	counts := ToCounts(result)
	status := "✅ completed"
	if result.Aborted {
		status = "⚠️ aborted (partial results)"
	}

	t := r.newTable("📊 OPTIMIZATION RUN")
	t.AppendRows([]table.Row{
		{"Run ID", result.RunID},
		{"Mode", string(result.Mode)},
		{"Objective", string(result.Objective)},
		{"Status", status},
		{"Evaluated", fmt.Sprintf("%d / %d", counts.Evaluated, counts.TotalCombinations)},
		{"Failed Evaluations", counts.FailedEvaluations},
		{"Rejected Tuples", counts.RejectedTuples},
		{"Skipped Trades", counts.SkippedTrades},
		{"Discarded Trades", counts.DiscardedTrades},
		{"Elapsed", result.Elapsed().Round(time.Millisecond).String()},
	})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, WidthMin: 20, Align: text.AlignLeft}})
	t.Render()

	if result.Baseline != nil {
		r.outputComparison(result.Baseline, result.Best)
	}
	r.outputRanking(result, topN)
	r.outputWarnings(result.Warnings)
	if len(result.SinkErrors) > 0 {
		t := r.newTable("❌ OUTPUT ERRORS")
		for _, e := range result.SinkErrors {
			t.AppendRow(table.Row{e})
		}
		t.Render()
	}
}

func (r *DefaultConsoleReporter) outputComparison(baseline, best *backtest.PortfolioMetrics) {
	base := baseline.Sanitized()
	var cand backtest.PortfolioMetrics
	label := "-"
	if best != nil {
		cand = best.Sanitized()
		label = cand.Params.String()
	}

	t := r.newTable("📏 BASELINE vs BEST")
	t.AppendHeader(table.Row{"Metric", "Baseline", label, "Delta"})
	rows := []struct {
		name          string
		before, after float64
	}{
		{"PnL Total %", base.PnLTotal, cand.PnLTotal},
		{"Win Rate %", base.WinRate, cand.WinRate},
		{"Max Drawdown %", base.MaxDrawdown, cand.MaxDrawdown},
		{"Profit Factor", base.ProfitFactor, cand.ProfitFactor},
		{"Sharpe Ratio", base.SharpeRatio, cand.SharpeRatio},
		{"Recovery Factor", base.RecoveryFactor, cand.RecoveryFactor},
	}
	for _, row := range rows {
		delta := ""
		if best != nil {
			delta = fmt.Sprintf("%+.2f", row.after-row.before)
		}
		t.AppendRow(table.Row{row.name, fmt.Sprintf("%.2f", row.before), fmt.Sprintf("%.2f", row.after), delta})
	}
	t.AppendSeparator()
	for _, exit := range exitOrder(base.ExitTypeCounts, cand.ExitTypeCounts) {
		t.AppendRow(table.Row{"Exits " + string(exit), base.ExitTypeCounts[exit], cand.ExitTypeCounts[exit], ""})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, WidthMin: 18, Align: text.AlignLeft}})
	t.Render()
}

func (r *DefaultConsoleReporter) outputRanking(result *orchestrator.RunResult, topN int) {
	rows := ToRankingRows(result, topN)
	if len(rows) == 0 {
		fmt.Fprintln(r.out, "⚠️ no candidates were evaluated")
		return
	}
	t := r.newTable(fmt.Sprintf("🏆 TOP %d BY %s", len(rows), result.Objective))
	t.AppendHeader(table.Row{"#", "SL", "BE", "TS Trig", "TS Step", "Score", "PnL %", "vs Base", "Win %", "PF", "DD %", "Trades"})
	for _, row := range rows {
		t.AppendRow(table.Row{
			row.Rank,
			formatFloat(row.Params.SL), formatFloat(row.Params.BE),
			formatFloat(row.Params.TSTrigger), formatFloat(row.Params.TSStep),
			fmt.Sprintf("%.3f", row.Score),
			fmt.Sprintf("%.2f", row.PnLTotal),
			fmt.Sprintf("%+.2f", row.Improvement),
			fmt.Sprintf("%.1f", row.WinRate),
			fmt.Sprintf("%.2f", row.ProfitFactor),
			fmt.Sprintf("%.2f", row.MaxDrawdown),
			row.TotalTrades,
		})
	}
	t.Render()
}

func (r *DefaultConsoleReporter) outputWarnings(warnings []analysis.Warning) {
	if len(warnings) == 0 {
		return
	}
	t := r.newTable("⚠️ RANGE WARNINGS")
	for _, w := range warnings {
		t.AppendRow(table.Row{string(w.Code), w.Human})
	}
	t.Render()
}

// OutputAnalysis prints the excursion statistics and the recommended ranges
func (r *DefaultConsoleReporter) OutputAnalysis(result *orchestrator.AnalysisResult) {
	a := result.Analysis

	t := r.newTable("🔍 EXCURSION ANALYSIS")
	t.AppendHeader(table.Row{"Series", "Mean", "Median", "Std", "Min", "Max", "P75", "P90"})
	for _, s := range []struct {
		name string
		sum  analysis.Summary
	}{
		{"Run-up %", a.Statistics.RunUp},
		{"Drawdown %", a.Statistics.Drawdown},
		{"PnL %", a.Statistics.PnL},
	} {
		t.AppendRow(table.Row{
			s.name,
			fmt.Sprintf("%.2f", s.sum.Mean), fmt.Sprintf("%.2f", s.sum.Median),
			fmt.Sprintf("%.2f", s.sum.Std), fmt.Sprintf("%.2f", s.sum.Min),
			fmt.Sprintf("%.2f", s.sum.Max),
			fmt.Sprintf("%.2f", s.sum.Percentiles[75]), fmt.Sprintf("%.2f", s.sum.Percentiles[90]),
		})
	}
	t.AppendFooter(table.Row{"Trades", a.TradeCount, "Source", result.Source, "Skipped", result.SkippedTrades, "", ""})
	t.Render()

	ranges := r.newTable("🧠 RECOMMENDED RANGES")
	ranges.AppendHeader(table.Row{"Profile", "SL", "BE", "TS Trigger", "TS Step", "Combinations"})
	for _, p := range analysis.Profiles {
		pr := a.Ranges[p]
		ranges.AppendRow(table.Row{
			string(p), pr.SL.String(), pr.BE.String(), pr.TSTrigger.String(), pr.TSStep.String(),
			a.Efficiency.Combinations[p],
		})
	}
	ranges.AppendFooter(table.Row{"TP levels", formatFloat(a.TPLevels.TP1), formatFloat(a.TPLevels.TP2), formatFloat(a.TPLevels.TP3), "gain", fmt.Sprintf("%.1fx", a.Efficiency.EfficiencyGain)})
	ranges.Render()

	r.outputWarnings(a.Warnings)
	if len(a.ValidationIssues) > 0 {
		issues := r.newTable("❗ DATA QUALITY")
		for _, issue := range a.ValidationIssues {
			issues.AppendRow(table.Row{issue})
		}
		issues.Render()
	}
}

// OutputSimulation prints every replayed trade and the comparison against
// the original exits
func (r *DefaultConsoleReporter) OutputSimulation(result *orchestrator.SimulationResult) {
	t := r.newTable("🎯 SIMULATION " + result.Params.String())
	t.AppendHeader(table.Row{"#", "Side", "Entry", "Exit", "Exit Type", "PnL %", "Original %", "Bars"})
	for _, tr := range result.Metrics.Trades {
		t.AppendRow(table.Row{
			tr.Num, string(tr.Side),
			tr.EntryTime.Format("2006-01-02 15:04"), tr.ExitTime.Format("2006-01-02 15:04"),
			string(tr.ExitType),
			fmt.Sprintf("%.2f", tr.PnLPct), fmt.Sprintf("%.2f", tr.PnLPctOrigin),
			tr.BarsHeld,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Skipped", result.SkippedTrades, "", ""})
	t.Render()

	r.outputComparison(result.Baseline, result.Metrics)
}

// exitOrder lists the exit types present in either distribution
func exitOrder(a, b map[backtest.ExitType]int) []backtest.ExitType {
	seen := make(map[backtest.ExitType]bool)
	for k := range a {
		seen[k] = true
	}
	for k := range b {
		seen[k] = true
	}
	out := make([]backtest.ExitType, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OutputRun is a convenience wrapper printing a run to stdout
func OutputRun(result *orchestrator.RunResult, topN int) {
	NewDefaultConsoleReporter().OutputRun(result, topN)
}
