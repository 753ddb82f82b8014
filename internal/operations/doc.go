// Package operations orchestrates unification pipeline runs as a sequence
// of dependent steps.
//
// A run takes the submitted advisor, operation and optional dashboard tables
// through seven steps: parse, validate, aggregate, join, calculate, format
// and export. Each step consumes the artifacts its predecessors stored on
// the run state and stores its own; the first failing step fails the run
// and nothing downstream executes, so a failed run never produces a partial
// result table.
//
// Core components:
//
// Manager: executes runs. It resolves step order from the registry,
// applies per-step timeouts and retry policy, and classifies the outcome
// as completed, failed or cancelled.
//
// Step: a single unit of work. Steps declare their dependencies and are
// executed in topological order.
//
// Registry: registration and dependency ordering of steps.
//
// RunState: runtime state of a run and its steps, including the context
// map the steps pass artifacts through.
//
// StatusBroadcaster: serializes status changes and pushes whole-run
// snapshots over the WebSocket hub so clients never see partial updates.
//
// Example usage:
//
//	manager := operations.NewManager(hub, nil, nil)
//	if err := operations.RegisterPipelineSteps(manager, sink, operations.StepOptions{
//		Logger:            logger,
//		EnableProgress:    true,
//		StatusBroadcaster: manager.GetBroadcaster(),
//	}); err != nil {
//		return err
//	}
//
//	resp, err := manager.Execute(ctx, operations.RunRequest{
//		Variant: domain.VariantDashboard,
//		Inputs: operations.RunInputs{
//			Advisors:   operations.InputSource{Filename: "advisors.csv", Reader: advisors},
//			Operations: operations.InputSource{Filename: "operations.xlsx", Reader: ops},
//			Dashboard:  &operations.InputSource{Filename: "dashboard.csv", Reader: dash},
//		},
//	})
package operations
