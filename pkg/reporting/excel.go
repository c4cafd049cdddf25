package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/orchestrator"
)

// Sheet names of the run workbook
const (
	SummarySheet        = "Summary"
	RankingSheet        = "Ranking"
	BestTradesSheet     = "Best Trades"
	BaselineTradesSheet = "Baseline Trades"
	WarningsSheet       = "Warnings"
)

// percent values are already expressed in percent units
var percentFormat = `0.00"%"`

// DefaultExcelReporter implements Excel output functionality
type DefaultExcelReporter struct{}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

// WriteRunXLSX writes the run workbook: summary, ranking, per-trade results
// of the best candidate and the baseline, and range warnings
func (r *DefaultExcelReporter) WriteRunXLSX(result *orchestrator.RunResult, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	fx.SetSheetName(fx.GetSheetName(0), SummarySheet)
	for _, sheet := range []string{RankingSheet, BestTradesSheet, BaselineTradesSheet, WarningsSheet} {
		if _, err := fx.NewSheet(sheet); err != nil {
			return err
		}
	}

	styles, err := r.createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeSummarySheet(fx, SummarySheet, result, styles); err != nil {
		return err
	}
	if err := r.writeRankingSheet(fx, RankingSheet, result, styles); err != nil {
		return err
	}
	var best, baseline []backtest.TradeResult
	if result.Best != nil {
		best = result.Best.Trades
	}
	if result.Baseline != nil {
		baseline = result.Baseline.Trades
	}
	if err := r.writeTradesSheet(fx, BestTradesSheet, best, styles); err != nil {
		return err
	}
	if err := r.writeTradesSheet(fx, BaselineTradesSheet, baseline, styles); err != nil {
		return err
	}
	if err := r.writeWarningsSheet(fx, WarningsSheet, result, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

// WriteTradesXLSX writes a single-sheet workbook of per-trade results
func (r *DefaultExcelReporter) WriteTradesXLSX(trades []backtest.TradeResult, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()
	fx.SetSheetName(fx.GetSheetName(0), BestTradesSheet)

	styles, err := r.createExcelStyles(fx)
	if err != nil {
		return err
	}
	if err := r.writeTradesSheet(fx, BestTradesSheet, trades, styles); err != nil {
		return err
	}
	return fx.SaveAs(path)
}

func (r *DefaultExcelReporter) createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	lightBorder := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}

	// Header style - dark slate background with white text
	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{
		CustomNumFmt: &percentFormat,
		Alignment:    &excelize.Alignment{Horizontal: "right"},
		Border:       lightBorder,
	})
	if err != nil {
		return styles, err
	}

	styles.RedPercentStyle, err = fx.NewStyle(&excelize.Style{
		CustomNumFmt: &percentFormat,
		Font:         &excelize.Font{Color: "FF0000"},
		Alignment:    &excelize.Alignment{Horizontal: "right"},
		Border:       lightBorder,
	})
	if err != nil {
		return styles, err
	}

	styles.GreenPercentStyle, err = fx.NewStyle(&excelize.Style{
		CustomNumFmt: &percentFormat,
		Font:         &excelize.Font{Color: "008000"},
		Alignment:    &excelize.Alignment{Horizontal: "right"},
		Border:       lightBorder,
	})
	if err != nil {
		return styles, err
	}

	styles.PriceStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    4, // #,##0.00
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    lightBorder,
	})
	if err != nil {
		return styles, err
	}

	styles.BaseStyle, err = fx.NewStyle(&excelize.Style{Border: lightBorder})
	if err != nil {
		return styles, err
	}

	styles.SummaryStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 2},
			{Type: "right", Color: "000000", Style: 2},
			{Type: "top", Color: "000000", Style: 2},
			{Type: "bottom", Color: "000000", Style: 2},
		},
	})
	if err != nil {
		return styles, err
	}

	// Warning style (light amber background)
	styles.WarningStyle, err = fx.NewStyle(&excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFF4CC"}, Pattern: 1},
		Border: lightBorder,
	})
	if err != nil {
		return styles, err
	}

	return styles, nil
}

func (r *DefaultExcelReporter) writeHeaders(fx *excelize.File, sheet string, headers []string, styles ExcelStyles) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sheet, cell, h)
		fx.SetCellStyle(sheet, cell, cell, styles.HeaderStyle)
	}
}

func (r *DefaultExcelReporter) writeSummarySheet(fx *excelize.File, sheet string, result *orchestrator.RunResult, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "A", 28)
	fx.SetColWidth(sheet, "B", "C", 22)
	r.writeHeaders(fx, sheet, []string{"Metric", "Baseline", "Best"}, styles)

	counts := ToCounts(result)
	info := [][]interface{}{
		{"Run ID", result.RunID, ""},
		{"Mode", string(result.Mode), ""},
		{"Objective", string(result.Objective), ""},
		{"Total Combinations", counts.TotalCombinations, ""},
		{"Evaluated", counts.Evaluated, ""},
		{"Failed Evaluations", counts.FailedEvaluations, ""},
		{"Rejected Tuples", counts.RejectedTuples, ""},
		{"Skipped Trades", counts.SkippedTrades, ""},
		{"Discarded Trades", counts.DiscardedTrades, ""},
		{"Aborted", counts.Aborted, ""},
	}
	row := 2
	for _, values := range info {
		r.WriteTradeRow(fx, sheet, row, values, styles)
		row++
	}

	if result.Baseline == nil {
		return nil
	}
	base := result.Baseline.Sanitized()
	best := backtest.PortfolioMetrics{}
	bestLabel := "-"
	if result.Best != nil {
		best = result.Best.Sanitized()
		bestLabel = best.Params.String()
	}

	row++
	for _, values := range [][]interface{}{
		{"Parameters", "Original exits", bestLabel},
		{"PnL Total %", base.PnLTotal, best.PnLTotal},
		{"Win Rate %", base.WinRate, best.WinRate},
		{"Max Drawdown %", base.MaxDrawdown, best.MaxDrawdown},
		{"Profit Factor", base.ProfitFactor, best.ProfitFactor},
		{"Sharpe Ratio", base.SharpeRatio, best.SharpeRatio},
		{"Recovery Factor", base.RecoveryFactor, best.RecoveryFactor},
		{"Total Trades", base.TotalTrades, best.TotalTrades},
	} {
		r.WriteTradeRow(fx, sheet, row, values, styles)
		row++
	}

	row++
	cell, _ := excelize.CoordinatesToCellName(1, row)
	fx.SetCellValue(sheet, cell, "Exit Type Distribution")
	fx.SetCellStyle(sheet, cell, cell, styles.SummaryStyle)
	row++
	for _, exit := range []backtest.ExitType{backtest.ExitSL, backtest.ExitBESL, backtest.ExitTS, backtest.ExitSignal, backtest.ExitOriginal} {
		r.WriteTradeRow(fx, sheet, row, []interface{}{string(exit), base.ExitTypeCounts[exit], best.ExitTypeCounts[exit]}, styles)
		row++
	}
	return nil
}

func (r *DefaultExcelReporter) writeRankingSheet(fx *excelize.File, sheet string, result *orchestrator.RunResult, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "A", 8)
	fx.SetColWidth(sheet, "B", "E", 10)
	fx.SetColWidth(sheet, "F", "P", 14)
	r.writeHeaders(fx, sheet, rankingHeaders, styles)

	for i, rr := range ToRankingRows(result, 0) {
		row := i + 2
		values := []interface{}{
			rr.Rank, rr.Params.SL, rr.Params.BE, rr.Params.TSTrigger, rr.Params.TSStep,
			rr.Score, rr.PnLTotal, rr.Improvement, rr.WinRate, rr.ProfitFactor,
			rr.MaxDrawdown, rr.SharpeRatio, rr.RecoveryFactor,
			rr.TotalTrades, rr.WinningTrades, rr.LosingTrades,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			fx.SetCellValue(sheet, cell, v)
			style := styles.BaseStyle
			switch col {
			case 6, 7:
				style = signedStyle(v.(float64), styles)
			case 8, 10:
				style = styles.PercentStyle
			}
			fx.SetCellStyle(sheet, cell, cell, style)
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeTradesSheet(fx *excelize.File, sheet string, trades []backtest.TradeResult, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "B", 8)
	fx.SetColWidth(sheet, "C", "D", 20)
	fx.SetColWidth(sheet, "E", "F", 12)
	fx.SetColWidth(sheet, "G", "L", 12)
	r.writeHeaders(fx, sheet, tradeHeaders, styles)

	for i, t := range trades {
		row := i + 2
		values := []interface{}{
			t.Num, string(t.Side),
			t.EntryTime.Format("2006-01-02 15:04:05"), t.ExitTime.Format("2006-01-02 15:04:05"),
			t.EntryPrice, t.ExitPrice, string(t.ExitType),
			backtest.SanitizeFloat(t.PnLPct), backtest.SanitizeFloat(t.PnLPctOrigin),
			t.BEArmed, t.TSArmed, t.BarsHeld,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			fx.SetCellValue(sheet, cell, v)
			style := styles.BaseStyle
			switch col {
			case 4, 5:
				style = styles.PriceStyle
			case 7, 8:
				style = signedStyle(v.(float64), styles)
			}
			fx.SetCellStyle(sheet, cell, cell, style)
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeWarningsSheet(fx *excelize.File, sheet string, result *orchestrator.RunResult, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "A", 20)
	fx.SetColWidth(sheet, "B", "B", 12)
	fx.SetColWidth(sheet, "C", "C", 80)
	r.writeHeaders(fx, sheet, []string{"Code", "Value", "Message"}, styles)

	row := 2
	for _, w := range result.Warnings {
		r.writeStyledRow(fx, sheet, row, []interface{}{string(w.Code), w.Value, w.Human}, styles.WarningStyle)
		row++
	}
	for _, s := range result.Skipped {
		r.writeStyledRow(fx, sheet, row, []interface{}{"SKIPPED_TRADE", s.Num, s.Reason}, styles.WarningStyle)
		row++
	}
	for _, d := range result.Assembly.Discarded {
		r.writeStyledRow(fx, sheet, row, []interface{}{"DISCARDED_TRADE", d.TradeID, d.Reason}, styles.WarningStyle)
		row++
	}
	for _, e := range result.SinkErrors {
		r.writeStyledRow(fx, sheet, row, []interface{}{"SINK_ERROR", "", e}, styles.WarningStyle)
		row++
	}
	return nil
}

// WriteTradeRow writes a row with the base style
func (r *DefaultExcelReporter) WriteTradeRow(fx *excelize.File, sheet string, row int, values []interface{}, styles ExcelStyles) {
	r.writeStyledRow(fx, sheet, row, values, styles.BaseStyle)
}

func (r *DefaultExcelReporter) writeStyledRow(fx *excelize.File, sheet string, row int, values []interface{}, style int) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		fx.SetCellValue(sheet, cell, v)
		fx.SetCellStyle(sheet, cell, cell, style)
	}
}

func signedStyle(v float64, styles ExcelStyles) int {
	if v < 0 {
		return styles.RedPercentStyle
	}
	return styles.GreenPercentStyle
}

// WriteRunXLSX is a convenience wrapper around the default Excel reporter
func WriteRunXLSX(result *orchestrator.RunResult, path string) error {
	return NewDefaultExcelReporter().WriteRunXLSX(result, path)
}

// WriteTradesXLSX is a convenience wrapper around the default Excel reporter
func WriteTradesXLSX(trades []backtest.TradeResult, path string) error {
	return NewDefaultExcelReporter().WriteTradesXLSX(trades, path)
}
