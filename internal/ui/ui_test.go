package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestHeaderKeepsParamOrder(t *testing.T) {
	h := NewHeader("Runtime Configuration", "modbusreader-cfg show",
		Param{"Device", "Dock Door 3"},
		Param{"Service", "http://10.0.0.5:8080"},
	).SetWidth(80)

	out := h.Render()
	if !strings.Contains(out, "RUNTIME CONFIGURATION") {
		t.Errorf("title not upper-cased:\n%s", out)
	}
	dev := strings.Index(out, "Device:")
	svc := strings.Index(out, "Service:")
	if dev < 0 || svc < 0 || dev > svc {
		t.Errorf("params out of order:\n%s", out)
	}
}

func TestResultRender(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("Saved", Param{"Selector", "0x0004"}),
			want:   []string{"SUCCESS", "Saved", "Selector:", "0x0004"},
		},
		{
			name:   "failure",
			result: NewFailureResult("Save failed", errors.New("authentication required"), "Pass --user"),
			want:   []string{"FAILED", "Error: authentication required", "Troubleshooting:", "Pass --user"},
		},
		{
			name:   "warning",
			result: NewWarningResult("Questionable", Param{"tagsInField", "0"}),
			want:   []string{"WARNING", "Questionable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("Render() missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestResultTitleDoesNotWrap(t *testing.T) {
	title := "Runtime Configuration Update complete"
	out := NewSuccessResult(title, Param{"Serial", "315260240"}).SetWidth(MinTerminalWidth).Render()

	found := false
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, title) {
			found = true
		}
	}
	if !found {
		t.Errorf("title split across lines:\n%s", out)
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable([]string{"SERIAL", "NICKNAME"}, [][]string{
		{"315260240", "dock-door"},
		{"1", "-"},
	})

	lines := strings.Split(out, "\n")
	header := -1
	for i, line := range lines {
		if strings.Contains(line, "SERIAL") && strings.Contains(line, "NICKNAME") {
			header = i
		}
	}
	if header < 0 {
		t.Fatalf("header row missing:\n%s", out)
	}
	first := strings.Index(out, "315260240")
	second := strings.Index(out, "dock-door")
	if first < 0 || second < first {
		t.Errorf("row cells missing or out of order:\n%s", out)
	}
}

func TestProgressPercent(t *testing.T) {
	p := NewProgress("", "Load", "Apply", "Save", "Verify")

	p.StartStep(1, "")
	if p.Current != 1 || p.Percent != 0 {
		t.Errorf("after start: Current=%d Percent=%v", p.Current, p.Percent)
	}
	p.CompleteStep(1, "")
	p.SkipStep(4, "not requested")
	if p.Percent != 0.5 {
		t.Errorf("Percent = %v, want 0.5", p.Percent)
	}
	p.FailStep(3, "")
	if p.Percent != 0.5 {
		t.Errorf("failed step counted: Percent = %v", p.Percent)
	}

	p.UpdateStep(0, StepComplete, "")
	p.UpdateStep(5, StepComplete, "")
	if p.Percent != 0.5 {
		t.Errorf("out of range step changed Percent to %v", p.Percent)
	}

	out := p.Render()
	if !strings.Contains(out, "[1/4] Load") || !strings.Contains(out, "(not requested)") {
		t.Errorf("Render() =\n%s", out)
	}
}

func TestRunnerSuccess(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(RunnerConfig{
		Title:     "Update",
		Command:   "modbusreader-cfg set",
		StepNames: []string{"Load", "Save"},
		Output:    &buf,
		Width:     80,
	})

	err := r.Run(context.Background(), func(ctx context.Context, onStep StepCallback) ([]Param, error) {
		onStep(1, StepRunning, "")
		onStep(1, StepComplete, "")
		onStep(2, StepComplete, "saved")
		return []Param{{"Fields", "2"}}, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"UPDATE", "[1/2] Load", "(saved)", "Update complete", "Fields:", "Duration:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if r.Progress().Percent != 1 {
		t.Errorf("Percent = %v, want 1", r.Progress().Percent)
	}
}

func TestRunnerFailure(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("service unreachable")
	r := NewRunner(RunnerConfig{
		Title:        "Update",
		StepNames:    []string{"Load"},
		Output:       &buf,
		Width:        80,
		Troubleshoot: func(error) []string { return []string{"Check the service URL"} },
	})

	err := r.Run(context.Background(), func(ctx context.Context, onStep StepCallback) ([]Param, error) {
		onStep(1, StepFailed, "")
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}

	out := buf.String()
	for _, want := range []string{"Update failed", "service unreachable", "Check the service URL"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"yes", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got := Confirm(strings.NewReader(tt.input), &out, "Questionable configuration", []string{"tagsInField is 0"}, "Save anyway?")
		if got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "tagsInField is 0") {
			t.Errorf("warnings not shown:\n%s", out.String())
		}
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.PrintSuccess("Export written", Param{"File", "RuntimeRegister_20240102.txt"})
	p.PrintError("Export failed", errors.New("boom"))

	out := buf.String()
	if !strings.Contains(out, "RuntimeRegister_20240102.txt") || !strings.Contains(out, "Error: boom") {
		t.Errorf("Printer output =\n%s", out)
	}
	if p.Writer() != &buf {
		t.Error("Writer() did not return the configured writer")
	}
}
