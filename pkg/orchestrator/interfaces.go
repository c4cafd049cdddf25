package orchestrator

import (
	"context"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/config"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/data"
)

// Orchestrator coordinates loading, replay, search and result sinks
type Orchestrator interface {
	// Run executes a full optimization: baseline, search, ranking and sinks
	Run(ctx context.Context, cfg *config.OptimizerConfig) (*RunResult, error)

	// Analyze derives smart ranges from the trades' excursions
	Analyze(ctx context.Context, cfg *config.OptimizerConfig) (*AnalysisResult, error)

	// Simulate replays every trade under a single tuple
	Simulate(ctx context.Context, cfg *config.OptimizerConfig, p backtest.Params) (*SimulationResult, error)
}

// Workflow represents different execution workflows
type Workflow interface {
	// Execute runs the workflow and returns results
	Execute(ctx context.Context) (interface{}, error)

	// GetWorkflowType returns the type of workflow
	GetWorkflowType() WorkflowType
}

// WorkflowType represents different types of workflows
type WorkflowType string

const (
	WorkflowTypeOptimization WorkflowType = "optimization"
	WorkflowTypeAnalysis     WorkflowType = "analysis"
	WorkflowTypeSimulation   WorkflowType = "simulation"
)

// DatasetLoader reads candles and tradelist rows and selects trades
type DatasetLoader interface {
	Load(ctx context.Context, candlePath, tradePath string, sel data.Selection) (*data.Dataset, error)
}

// BacktestRunner turns a configuration into a ready evaluation session
type BacktestRunner interface {
	Prepare(ctx context.Context, cfg *config.OptimizerConfig) (*Session, error)
}

// Sink receives finished runs
type Sink interface {
	Name() string
	Publish(ctx context.Context, result *RunResult) error
}
