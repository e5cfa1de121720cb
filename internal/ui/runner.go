package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig describes a multi-step console operation.
type RunnerConfig struct {
	Title     string // e.g. "Runtime Configuration Update"
	Command   string
	Params    []Param
	StepNames []string
	Output    io.Writer // default os.Stdout
	Width     int       // default terminal width

	// Troubleshoot supplies tips for the failure box.
	Troubleshoot func(error) []string
}

// Runner prints a header, one line per finished step, and a result box.
type Runner struct {
	config   RunnerConfig
	progress *Progress
	out      io.Writer
	width    int
}

// Operation performs the steps and returns details for the success box.
type Operation func(ctx context.Context, onStep StepCallback) ([]Param, error)

// NewRunner creates a runner for config.
func NewRunner(config RunnerConfig) *Runner {
	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	width := config.Width
	if width == 0 {
		width = GetTerminalWidth()
	}

	p := NewProgress("", config.StepNames...)
	p.SetWidth(width)

	return &Runner{
		config:   config,
		progress: p,
		out:      out,
		width:    width,
	}
}

// Progress exposes the step state, mostly for tests.
func (r *Runner) Progress() *Progress {
	return r.progress
}

// Run executes op and renders the outcome. The operation's error is returned
// unchanged.
func (r *Runner) Run(ctx context.Context, op Operation) error {
	start := time.Now()

	header := NewHeader(r.config.Title, r.config.Command, r.config.Params...)
	header.SetWidth(r.width)
	_, _ = fmt.Fprintln(r.out, header.Render())
	_, _ = fmt.Fprintln(r.out)

	details, err := op(ctx, r.onStep)
	duration := time.Since(start).Round(time.Millisecond)
	_, _ = fmt.Fprintln(r.out)

	if err != nil {
		var tips []string
		if r.config.Troubleshoot != nil {
			tips = r.config.Troubleshoot(err)
		}
		result := NewFailureResult(r.config.Title+" failed", err, tips...)
		result.SetWidth(r.width)
		_, _ = fmt.Fprintln(r.out, result.Render())
		return err
	}

	result := NewSuccessResult(r.config.Title+" complete", details...)
	result.AddDetail("Duration", duration.String())
	result.SetWidth(r.width)
	_, _ = fmt.Fprintln(r.out, result.Render())
	return nil
}

func (r *Runner) onStep(stepNumber int, status StepStatus, message string) {
	if stepNumber < 1 || stepNumber > len(r.progress.Steps) {
		return
	}
	r.progress.UpdateStep(stepNumber, status, message)
	if status == StepPending || status == StepRunning {
		return
	}
	_, _ = fmt.Fprintln(r.out, r.progress.renderStepLine(r.progress.Steps[stepNumber-1]))
}
