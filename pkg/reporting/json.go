package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/orchestrator"
)

// DefaultJSONFormatter implements JSON output functionality
type DefaultJSONFormatter struct{}

// NewDefaultJSONFormatter creates a new JSON formatter
func NewDefaultJSONFormatter() *DefaultJSONFormatter {
	return &DefaultJSONFormatter{}
}

// FormatRun formats the best.json document of a run
func (f *DefaultJSONFormatter) FormatRun(result *orchestrator.RunResult, topN int) ([]byte, error) {
	return json.MarshalIndent(ToBestDocument(result, topN), "", "  ")
}

// FormatAnalysis formats the smart-range analysis together with its export
func (f *DefaultJSONFormatter) FormatAnalysis(result *orchestrator.AnalysisResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

// FormatSimulation formats a single-tuple replay including its trades
func (f *DefaultJSONFormatter) FormatSimulation(result *orchestrator.SimulationResult) ([]byte, error) {
	return json.MarshalIndent(ToSimulationDocument(result), "", "  ")
}

// PrintRun prints the best.json document to console
func (f *DefaultJSONFormatter) PrintRun(result *orchestrator.RunResult, topN int) {
	data, err := f.FormatRun(result, topN)
	if err != nil {
		fmt.Printf("❌ could not format result: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

// WriteBestJSON writes the best.json document of a run
func WriteBestJSON(result *orchestrator.RunResult, topN int, path string) error {
	data, err := NewDefaultJSONFormatter().FormatRun(result, topN)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// WriteAnalysisJSON writes the smart-range analysis
func WriteAnalysisJSON(result *orchestrator.AnalysisResult, path string) error {
	data, err := NewDefaultJSONFormatter().FormatAnalysis(result)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// WriteSimulationJSON writes a single-tuple replay
func WriteSimulationJSON(result *orchestrator.SimulationResult, path string) error {
	data, err := NewDefaultJSONFormatter().FormatSimulation(result)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
