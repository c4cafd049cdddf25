package reporting

import (
	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/orchestrator"
)

// Package reporting renders optimization, analysis and simulation results

// ConsoleReporter defines interface for console output
type ConsoleReporter interface {
	OutputRun(result *orchestrator.RunResult, topN int)
	OutputAnalysis(result *orchestrator.AnalysisResult)
	OutputSimulation(result *orchestrator.SimulationResult)
}

// FileReporter defines interface for file output
type FileReporter interface {
	WriteRankingCSV(result *orchestrator.RunResult, path string) error
	WriteTradesCSV(trades []backtest.TradeResult, path string) error
	WriteRunXLSX(result *orchestrator.RunResult, path string) error
	WriteBestJSON(result *orchestrator.RunResult, topN int, path string) error
}

// ExcelFormatter defines interface for Excel-specific formatting
type ExcelFormatter interface {
	WriteTradeRow(fx *excelize.File, sheet string, row int, values []interface{}, styles ExcelStyles)
}

// JSONFormatter defines interface for JSON output
type JSONFormatter interface {
	FormatRun(result *orchestrator.RunResult, topN int) ([]byte, error)
	FormatAnalysis(result *orchestrator.AnalysisResult) ([]byte, error)
}

// PathManager defines interface for output path management
type PathManager interface {
	GetRunOutputDir(baseDir, runID string) string
	EnsureDirectoryExists(path string) error
}

// Reporter combines all reporting interfaces
type Reporter interface {
	ConsoleReporter
	FileReporter
	JSONFormatter
	PathManager
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle       int
	PercentStyle      int
	PriceStyle        int
	BaseStyle         int
	RedPercentStyle   int
	GreenPercentStyle int
	SummaryStyle      int
	WarningStyle      int
}

// ReportingConfig holds configuration for reporting
type ReportingConfig struct {
	EnableConsole   bool
	EnableFiles     bool
	OutputDirectory string
	ExcelEnabled    bool
	CSVEnabled      bool
	JSONEnabled     bool
	TopN            int
}
