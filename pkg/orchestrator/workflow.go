package orchestrator

import (
	"context"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/backtest"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/config"
)

// OptimizationWorkflow represents an optimization workflow
type OptimizationWorkflow struct {
	orchestrator Orchestrator
	config       *config.OptimizerConfig
}

// NewOptimizationWorkflow creates a new optimization workflow
func NewOptimizationWorkflow(orchestrator Orchestrator, cfg *config.OptimizerConfig) Workflow {
	return &OptimizationWorkflow{orchestrator: orchestrator, config: cfg}
}

// Execute runs the optimization workflow
func (w *OptimizationWorkflow) Execute(ctx context.Context) (interface{}, error) {
	return w.orchestrator.Run(ctx, w.config)
}

// GetWorkflowType returns the workflow type
func (w *OptimizationWorkflow) GetWorkflowType() WorkflowType {
	return WorkflowTypeOptimization
}

// AnalysisWorkflow represents a smart-range analysis workflow
type AnalysisWorkflow struct {
	orchestrator Orchestrator
	config       *config.OptimizerConfig
}

// NewAnalysisWorkflow creates a new analysis workflow
func NewAnalysisWorkflow(orchestrator Orchestrator, cfg *config.OptimizerConfig) Workflow {
	return &AnalysisWorkflow{orchestrator: orchestrator, config: cfg}
}

// Execute runs the analysis workflow
func (w *AnalysisWorkflow) Execute(ctx context.Context) (interface{}, error) {
	return w.orchestrator.Analyze(ctx, w.config)
}

// GetWorkflowType returns the workflow type
func (w *AnalysisWorkflow) GetWorkflowType() WorkflowType {
	return WorkflowTypeAnalysis
}

// SimulationWorkflow replays one parameter tuple
type SimulationWorkflow struct {
	orchestrator Orchestrator
	config       *config.OptimizerConfig
	params       backtest.Params
}

// NewSimulationWorkflow creates a new single-tuple workflow
func NewSimulationWorkflow(orchestrator Orchestrator, cfg *config.OptimizerConfig, p backtest.Params) Workflow {
	return &SimulationWorkflow{orchestrator: orchestrator, config: cfg, params: p}
}

// Execute runs the simulation workflow
func (w *SimulationWorkflow) Execute(ctx context.Context) (interface{}, error) {
	return w.orchestrator.Simulate(ctx, w.config, w.params)
}

// GetWorkflowType returns the workflow type
func (w *SimulationWorkflow) GetWorkflowType() WorkflowType {
	return WorkflowTypeSimulation
}
