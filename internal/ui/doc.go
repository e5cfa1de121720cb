// Package ui provides terminal output components for modbusreader-cfg.
//
// Commands print a Header, report steps through a Runner, and finish with a
// Result box. All rendering goes through lipgloss; the step bar uses the
// bubbles progress component. The interactive console (package console)
// reuses the palette and the tab and status styles defined here.
//
// Example:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:     "Runtime Configuration Update",
//	    Command:   "modbusreader-cfg set epcLength=12",
//	    StepNames: []string{"Load", "Apply", "Save"},
//	})
//	err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
//	    onStep(1, ui.StepRunning, "")
//	    // ...
//	    onStep(1, ui.StepComplete, "")
//	    return nil, nil
//	})
//
// Logging stays silent unless MODBUSREADER_LOG_LEVEL or --log-level is set, so
// this output is not interleaved with log lines.
package ui
