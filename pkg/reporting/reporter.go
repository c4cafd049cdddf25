package reporting

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/config"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/orchestrator"
)

// Output file names inside a run directory
const (
	TradesCSVFile     = "trades.csv"
	AnalysisFile      = "analysis.json"
	SimulationFile    = "simulation.json"
	SimulationCSVFile = "simulation_trades.csv"
)

// DefaultReporter implements the complete Reporter interface
type DefaultReporter struct {
	console *DefaultConsoleReporter
	csv     *DefaultCSVReporter
	excel   *DefaultExcelReporter
	json    *DefaultJSONFormatter
	paths   *DefaultPathManager
}

// NewDefaultReporter creates a new default reporter with all functionality
func NewDefaultReporter() *DefaultReporter {
	return &DefaultReporter{
		console: NewDefaultConsoleReporter(),
		csv:     NewDefaultCSVReporter(),
		excel:   NewDefaultExcelReporter(),
		json:    NewDefaultJSONFormatter(),
		paths:   NewDefaultPathManager(),
	}
}

// Console output methods
func (r *DefaultReporter) OutputRun(result *orchestrator.RunResult, topN int) {
	r.console.OutputRun(result, topN)
}

func (r *DefaultReporter) OutputAnalysis(result *orchestrator.AnalysisResult) {
	r.console.OutputAnalysis(result)
}

func (r *DefaultReporter) OutputSimulation(result *orchestrator.SimulationResult) {
	r.console.OutputSimulation(result)
}

// File output methods
func (r *DefaultReporter) WriteRankingCSV(result *orchestrator.RunResult, path string) error {
	return r.csv.WriteRankingCSV(result, path)
}

func (r *DefaultReporter) WriteTradesCSV(trades []backtest.TradeResult, path string) error {
	return r.csv.WriteTradesCSV(trades, path)
}

func (r *DefaultReporter) WriteRunXLSX(result *orchestrator.RunResult, path string) error {
	return r.excel.WriteRunXLSX(result, path)
}

func (r *DefaultReporter) WriteBestJSON(result *orchestrator.RunResult, topN int, path string) error {
	return WriteBestJSON(result, topN, path)
}

// JSON methods
func (r *DefaultReporter) FormatRun(result *orchestrator.RunResult, topN int) ([]byte, error) {
	return r.json.FormatRun(result, topN)
}

func (r *DefaultReporter) FormatAnalysis(result *orchestrator.AnalysisResult) ([]byte, error) {
	return r.json.FormatAnalysis(result)
}

// Path management methods
func (r *DefaultReporter) GetRunOutputDir(baseDir, runID string) string {
	return r.paths.GetRunOutputDir(baseDir, runID)
}

func (r *DefaultReporter) EnsureDirectoryExists(path string) error {
	return r.paths.EnsureDirectoryExists(path)
}

// NewReportingConfig derives the reporting settings from the output formats
func NewReportingConfig(cfg *config.OptimizerConfig) ReportingConfig {
	rc := ReportingConfig{
		EnableConsole:   cfg.HasFormat("console"),
		OutputDirectory: cfg.Output.Dir,
		JSONEnabled:     cfg.HasFormat("json"),
		CSVEnabled:      cfg.HasFormat("csv"),
		ExcelEnabled:    cfg.HasFormat("excel"),
		TopN:            cfg.Search.TopN,
	}
	rc.EnableFiles = rc.JSONEnabled || rc.CSVEnabled || rc.ExcelEnabled
	return rc
}

// ReportingManager provides a high-level interface for all reporting needs
type ReportingManager struct {
	reporter Reporter
	config   ReportingConfig
}

// NewReportingManager creates a new reporting manager with configuration
func NewReportingManager(cfg ReportingConfig) *ReportingManager {
	return &ReportingManager{
		reporter: NewDefaultReporter(),
		config:   cfg,
	}
}

// WithReporter replaces the underlying reporter
func (m *ReportingManager) WithReporter(r Reporter) *ReportingManager {
	m.reporter = r
	return m
}

// Sinks returns one orchestrator sink per enabled output
func (m *ReportingManager) Sinks() []orchestrator.Sink {
	var sinks []orchestrator.Sink
	if m.config.EnableConsole {
		sinks = append(sinks, &ConsoleSink{manager: m})
	}
	if m.config.EnableFiles {
		sinks = append(sinks, &FileSink{manager: m})
	}
	return sinks
}

// RunDir returns the output directory of a run
func (m *ReportingManager) RunDir(runID string) string {
	return m.reporter.GetRunOutputDir(m.config.OutputDirectory, runID)
}

// ReportRun writes every enabled file output of a run
func (m *ReportingManager) ReportRun(result *orchestrator.RunResult) error {
	if !m.config.EnableFiles {
		return nil
	}
	dir := m.RunDir(result.RunID)

	if m.config.JSONEnabled {
		if err := m.reporter.WriteBestJSON(result, m.config.TopN, filepath.Join(dir, config.BestParamsFile)); err != nil {
			return err
		}
	}
	if m.config.CSVEnabled {
		if err := m.reporter.WriteRankingCSV(result, filepath.Join(dir, config.RankingFile)); err != nil {
			return err
		}
		if result.Best != nil {
			if err := m.reporter.WriteTradesCSV(result.Best.Trades, filepath.Join(dir, TradesCSVFile)); err != nil {
				return err
			}
		}
	}
	if m.config.ExcelEnabled {
		if err := m.reporter.WriteRunXLSX(result, filepath.Join(dir, config.TradesWorkbook)); err != nil {
			return err
		}
	}
	log.Info().Str("dir", dir).Msg("💾 results written")
	return nil
}

// ReportAnalysis prints the analysis and writes it when JSON is enabled
func (m *ReportingManager) ReportAnalysis(result *orchestrator.AnalysisResult, dir string) error {
	if m.config.EnableConsole {
		m.reporter.OutputAnalysis(result)
	}
	if m.config.JSONEnabled && dir != "" {
		path := filepath.Join(dir, AnalysisFile)
		if err := WriteAnalysisJSON(result, path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("💾 analysis written")
	}
	return nil
}

// ReportSimulation prints the replay and writes its files
func (m *ReportingManager) ReportSimulation(result *orchestrator.SimulationResult, dir string) error {
	if m.config.EnableConsole {
		m.reporter.OutputSimulation(result)
	}
	if dir == "" {
		return nil
	}
	if m.config.JSONEnabled {
		if err := WriteSimulationJSON(result, filepath.Join(dir, SimulationFile)); err != nil {
			return err
		}
	}
	if m.config.CSVEnabled {
		if err := m.reporter.WriteTradesCSV(result.Metrics.Trades, filepath.Join(dir, SimulationCSVFile)); err != nil {
			return err
		}
	}
	return nil
}

// ConsoleSink prints run results as tables
type ConsoleSink struct {
	manager *ReportingManager
}

// Name implements orchestrator.Sink
func (s *ConsoleSink) Name() string { return "console" }

// Publish implements orchestrator.Sink
func (s *ConsoleSink) Publish(ctx context.Context, r *orchestrator.RunResult) error {
	s.manager.reporter.OutputRun(r, s.manager.config.TopN)
	return nil
}

// FileSink writes the JSON, CSV and XLSX outputs of a run
type FileSink struct {
	manager *ReportingManager
}

// Name implements orchestrator.Sink
func (s *FileSink) Name() string { return "files" }

// Publish implements orchestrator.Sink
func (s *FileSink) Publish(ctx context.Context, r *orchestrator.RunResult) error {
	return s.manager.ReportRun(r)
}
