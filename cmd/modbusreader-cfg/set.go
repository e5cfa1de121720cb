package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/modbusreader/internal/deviceconfig"
	"github.com/muurk/modbusreader/internal/editor"
	"github.com/muurk/modbusreader/internal/notify"
	"github.com/muurk/modbusreader/internal/runtimeconfig"
	"github.com/muurk/modbusreader/internal/ui"
)

var (
	setYes    bool
	setVerify bool
	setSafe   bool
)

// setCmd edits the runtime configuration
var setCmd = &cobra.Command{
	Use:   "set <name=value>...",
	Short: "Change runtime configuration fields",
	Long: `Edit the runtime configuration and write it back in one request.

Fields use their wire names:
  Flags (true/false):  includeKillPwd, includeAccessPwd, includeCRC,
                       includePC, includeXPC
  Lengths (0-65535):   tagsInField, epcLength, tidLength, userLength,
                       selectionMaskCount, selectionMaskMaxLength,
                       customOperationMaxLength
  memorySelector:      the raw selector word (decimal, 0x hex or 0b binary)

Assignments apply in order, so a later flag overrides a raw memorySelector.
Changes that shrink the runtime register layout ask for confirmation.`,
	Example: `  # Include CRC and PC words in each tag block
  modbusreader-cfg set includeCRC=true includePC=true --device 192.168.1.50

  # Report up to 8 tags with a 6-word EPC, then read back
  modbusreader-cfg set tagsInField=8 epcLength=6 --verify

  # Roll back automatically if the read-back does not match
  modbusreader-cfg set memorySelector=0b00101 --safe --yes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSet,
}

func init() {
	setCmd.Flags().BoolVarP(&setYes, "yes", "y", false, "Do not ask for confirmation")
	setCmd.Flags().BoolVar(&setVerify, "verify", false, "Read the configuration back after writing")
	setCmd.Flags().BoolVar(&setSafe, "safe", false, "Verify, and restore the previous configuration on mismatch")
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	out := cmd.OutOrStdout()
	reg := loadRegistry()
	t, client, err := connect(ctx, reg, out)
	if err != nil {
		return err
	}

	return applySet(ctx, client, t, setRequest{
		Assignments: args,
		Yes:         setYes,
		Verify:      setVerify || setSafe,
		Safe:        setSafe,
		In:          cmd.InOrStdin(),
		Out:         out,
	})
}

// setRequest is one invocation of the set command.
type setRequest struct {
	Assignments []string
	Yes         bool
	Verify      bool
	Safe        bool
	In          io.Reader
	Out         io.Writer
}

// applySet loads the configuration into an editor session, applies the
// assignments, confirms risky changes and writes the result.
func applySet(ctx context.Context, client *deviceconfig.Client, t target, req setRequest) error {
	p := ui.NewPrinter(req.Out)

	session := editor.NewSession(client, notify.LogNotifier{})
	defer session.Close()

	if err := session.Load(ctx); err != nil {
		return fail(p, "Failed to read runtime configuration", err)
	}
	before := session.Shape()

	for _, a := range req.Assignments {
		if err := session.ApplyAssignment(a); err != nil {
			return err
		}
	}

	if !session.Dirty() {
		p.Println("Runtime configuration already matches; nothing to write.")
		return nil
	}
	after := session.Shape()
	p.Println(deviceconfig.FormatDiff(before, after))

	warnings, critical := deviceconfig.SeparateWarningsAndErrors(
		deviceconfig.ValidateRuntimeConfig(runtimeconfig.New(after)))
	if len(critical) > 0 {
		return fmt.Errorf("%s", strings.TrimSpace(deviceconfig.FormatValidationErrors(critical)))
	}

	risks := destructiveWarnings(before, after)
	for _, w := range warnings {
		risks = append(risks, w.Error())
	}
	if len(risks) > 0 && !req.Yes {
		if !ui.Confirm(req.In, req.Out, "Runtime register layout", risks, "Write this configuration?") {
			return nil
		}
	}

	steps := []string{"Write runtime configuration", "Verify read-back"}
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:        "Runtime Configuration Update",
		Command:      "modbusreader-cfg set " + strings.Join(req.Assignments, " "),
		Params:       []ui.Param{{Key: "Device", Value: t.Name}, {Key: "URL", Value: t.URL}},
		StepNames:    steps,
		Output:       req.Out,
		Width:        p.Width(),
		Troubleshoot: troubleshoot,
	})

	return runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
		details := []ui.Param{{Key: "Memory selector", Value: selectorString(after)}}

		if req.Safe {
			onStep(1, ui.StepRunning, "")
			result := deviceconfig.NewRollbackManager(client).SafeUpdate(ctx, after, nil, "set "+strings.Join(req.Assignments, " "))
			if result.UpdateResult == nil {
				onStep(1, ui.StepFailed, "")
				return nil, result.Error
			}
			onStep(1, ui.StepComplete, "")
			if !result.Success {
				msg := "mismatch"
				if result.RollbackSucceeded {
					msg = "rolled back"
				}
				onStep(2, ui.StepFailed, msg)
				return nil, result.Error
			}
			onStep(2, ui.StepComplete, fmt.Sprintf("%d attempt(s)", result.UpdateResult.Attempts))
			return details, nil
		}

		onStep(1, ui.StepRunning, "")
		if err := session.Save(ctx); err != nil {
			onStep(1, ui.StepFailed, "")
			return nil, err
		}
		onStep(1, ui.StepComplete, "")

		if !req.Verify {
			onStep(2, ui.StepSkipped, "use --verify")
			return details, nil
		}
		onStep(2, ui.StepRunning, "")
		result := client.VerifyRuntimeConfig(ctx, after, nil)
		if !result.Success {
			onStep(2, ui.StepFailed, "")
			return nil, result.Error
		}
		onStep(2, ui.StepComplete, fmt.Sprintf("%d attempt(s)", result.Attempts))
		return details, nil
	})
}

// destructiveWarnings lists the individual risks PromptBeforeDestructive
// reports.
func destructiveWarnings(current, update *runtimeconfig.Shape) []string {
	msg := deviceconfig.PromptBeforeDestructive(current, update)
	var out []string
	for _, line := range strings.Split(msg, "\n") {
		if !strings.HasPrefix(line, "⚠️  ") || strings.Contains(line, "DESTRUCTIVE") {
			continue
		}
		out = append(out, strings.TrimPrefix(line, "⚠️  "))
	}
	return out
}

func selectorString(shape *runtimeconfig.Shape) string {
	sel, ok := runtimeconfig.New(shape).Selector()
	if !ok {
		return "(unset)"
	}
	return fmt.Sprintf("0x%04X (0b%05b)", uint16(sel), uint16(sel&runtimeconfig.FlagMask))
}
