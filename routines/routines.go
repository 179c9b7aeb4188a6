// Package routines is the example routine library: an interactive demo
// workflow with name intake, a command menu, an options sub-machine,
// simulated file processing, and report generation. The CLI runs it by
// default and the engine's integration tests drive it with scripted
// input.
package routines

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/petarkabashki/workflow-automator/wf"
)

// Demo workflow state names.
const (
	StateProcessInput   = "state_process_input"
	StateComplexProcess = "state_complex_process"
	StateGenerateReport = "state_generate_report"
	StateOptionActions  = "option_actions"
	StateOptionOne      = "state_option_one_action"
	StateOptionTwo      = "state_option_two_action"
)

// userName extracts the carried user name from a transition payload.
func userName(payload any) string {
	if m, ok := payload.(map[string]any); ok {
		if name, ok := m["user_name"].(string); ok && name != "" {
			return name
		}
	}
	return "Unknown User"
}

func carry(name string, extra map[string]any) map[string]any {
	payload := map[string]any{"user_name": name}
	for k, v := range extra {
		payload[k] = v
	}
	return payload
}

// Start greets the user and collects a name, looping on empty input.
func Start(_ context.Context, in wf.Input, y *wf.Yield) error {
	if err := y.Debug("state_enter", "Entering __start__ state: Initializing workflow", nil); err != nil {
		return err
	}
	if err := y.Notify("info", "Welcome to the Workflow Automator Demo!", nil); err != nil {
		return err
	}
	name, err := y.RequestInput("Please enter your name:")
	if err != nil {
		return err
	}
	if name == "" {
		if err := y.Warning("No name entered. Please try again.", nil); err != nil {
			return err
		}
		return y.Transition(wf.StateStart, nil)
	}
	if err := y.Notify("info", fmt.Sprintf("Hello, %s! Workflow initialized.", name), nil); err != nil {
		return err
	}
	return y.Transition(StateProcessInput, carry(name, nil))
}

// ProcessInput is the command menu. It dispatches to the options
// sub-machine, the processing and report states, or ends the workflow.
func ProcessInput(_ context.Context, in wf.Input, y *wf.Yield) error {
	name := userName(in.Payload)
	if err := y.Debug("state_enter", "Entering state_process_input state", map[string]any{"current_user": name}); err != nil {
		return err
	}
	if err := y.Notify("info", fmt.Sprintf("Awaiting command from %s. Options: (options_menu/process/report/quit)", name), nil); err != nil {
		return err
	}
	command, err := y.RequestInput(fmt.Sprintf("Enter command for %s:", name))
	if err != nil {
		return err
	}
	switch strings.ToLower(command) {
	case "options_menu":
		return y.Transition(StateOptionActions, carry(name, nil))
	case "process":
		return y.Transition(StateComplexProcess, carry(name, nil))
	case "report":
		return y.Transition(StateGenerateReport, carry(name, nil))
	case "quit":
		if err := y.Notify("info", fmt.Sprintf("Goodbye, %s! Ending workflow.", name), nil); err != nil {
			return err
		}
		return y.Transition(wf.StateEnd, nil)
	default:
		if err := y.Warning(fmt.Sprintf("Invalid command: %q. Please choose from options.", command), map[string]any{"command_entered": command}); err != nil {
			return err
		}
		return y.Transition(StateProcessInput, carry(name, nil))
	}
}

// ComplexProcess simulates processing a named file, reporting progress
// as it goes and asking for confirmation of the result.
func ComplexProcess(_ context.Context, in wf.Input, y *wf.Yield) error {
	name := userName(in.Payload)
	if err := y.Notify("info", fmt.Sprintf("Starting complex data processing for %s...", name), nil); err != nil {
		return err
	}
	fileName, err := y.RequestInput(fmt.Sprintf("Enter data file name for processing for %s:", name))
	if err != nil {
		return err
	}
	if fileName == "" {
		if err := y.Notify("warning", "No file name provided. Aborting complex process.", nil); err != nil {
			return err
		}
		return y.Transition(StateProcessInput, carry(name, nil))
	}

	const totalSteps = 10
	for step := 1; step <= totalSteps; step++ {
		progress := step * 100 / totalSteps
		if err := y.Notify("progress",
			fmt.Sprintf("Processing %q: %d%% complete...", fileName, progress),
			map[string]any{"file": fileName, "progress": progress}); err != nil {
			return err
		}
	}

	result := map[string]any{"status": "success", "file": fileName, "processed_records": 150}
	if err := y.Notify("success", fmt.Sprintf("File %q processing completed successfully!", fileName),
		map[string]any{"file": fileName, "result": result}); err != nil {
		return err
	}

	confirmation, err := y.RequestInput(fmt.Sprintf("Review processing result for %q (ok/retry):", fileName))
	if err != nil {
		return err
	}
	if strings.EqualFold(confirmation, "ok") {
		if err := y.Notify("info", "Processing confirmed. Proceeding to next steps.", nil); err != nil {
			return err
		}
		return y.Transition(StateProcessInput, carry(name, map[string]any{"last_process_result": result}))
	}
	if err := y.Notify("warning", "Processing result not accepted. Returning to input.", nil); err != nil {
		return err
	}
	return y.Transition(StateProcessInput, carry(name, nil))
}

// GenerateReport produces a summary report for the user.
func GenerateReport(_ context.Context, in wf.Input, y *wf.Yield) error {
	name := userName(in.Payload)
	if err := y.Notify("info", fmt.Sprintf("Generating report for %s...", name), nil); err != nil {
		return err
	}
	report := map[string]any{
		"user":         name,
		"report_type":  "Summary",
		"generated_at": time.Now().Format("2006-01-02 15:04:05"),
	}
	if err := y.Notify("success", fmt.Sprintf("Report generated successfully for %s.", name),
		map[string]any{"report_details": report}); err != nil {
		return err
	}
	return y.Transition(StateProcessInput, carry(name, nil))
}

// optionsMenu is the entry state of the options sub-machine. "back"
// returns to the parent's command menu via a parent transition.
func optionsMenu(_ context.Context, in wf.Input, y *wf.Yield) error {
	name := userName(in.Payload)
	if err := y.Notify("info", fmt.Sprintf("Options menu for %s. Choose: (one/two/back)", name), nil); err != nil {
		return err
	}
	choice, err := y.RequestInput("Enter option:")
	if err != nil {
		return err
	}
	switch strings.ToLower(choice) {
	case "one":
		return y.Transition(StateOptionOne, carry(name, nil))
	case "two":
		return y.Transition(StateOptionTwo, carry(name, nil))
	case "back":
		return y.ParentTransition(StateProcessInput)
	default:
		if err := y.Warning(fmt.Sprintf("Invalid option: %q.", choice), nil); err != nil {
			return err
		}
		return y.Transition(wf.StateStart, carry(name, nil))
	}
}

// OptionOne performs the first option as a custom host action.
func OptionOne(_ context.Context, in wf.Input, y *wf.Yield) error {
	name := userName(in.Payload)
	if err := y.Custom("option_one_task_started", map[string]any{"task_id": 123, "user": name}); err != nil {
		return err
	}
	if err := y.Notify("success", "Option 1 action completed successfully.", nil); err != nil {
		return err
	}
	return y.Transition(wf.StateStart, carry(name, nil))
}

// OptionTwo simulates a failing option: it reports an error
// instruction and returns to the menu.
func OptionTwo(_ context.Context, in wf.Input, y *wf.Yield) error {
	name := userName(in.Payload)
	if err := y.Notify("warning", fmt.Sprintf("Initiating Option 2 action for %s... (simulating potential issue)", name), nil); err != nil {
		return err
	}
	if err := y.Error(fmt.Sprintf("Error encountered during Option 2 action for %s!", name),
		map[string]any{"user": name, "error_code": "OPT2-ERR-500"}); err != nil {
		return err
	}
	return y.Transition(wf.StateStart, carry(name, nil))
}

// OptionsSubMachine builds the options sub-machine. Its internal menu
// loops until the user chooses "back", which re-enters the parent at
// the command menu.
func OptionsSubMachine() *wf.Machine {
	m := wf.NewMachine()
	m.Add(wf.StateStart, optionsMenu)
	m.Add(StateOptionOne, OptionOne)
	m.Add(StateOptionTwo, OptionTwo)
	m.Add(wf.StateEnd, nil)
	return m
}

// DemoMachine builds the full demo workflow: the command menu at the
// top level with the options sub-machine nested under it.
func DemoMachine() *wf.Machine {
	m := wf.NewMachine()
	m.Add(wf.StateStart, Start)
	m.Add(StateProcessInput, ProcessInput)
	m.Add(StateComplexProcess, ComplexProcess)
	m.Add(StateGenerateReport, GenerateReport)
	m.AddSub(StateOptionActions, OptionsSubMachine())
	m.Add(wf.StateEnd, nil)
	return m
}

// Registry maps the demo state names to their routines for graph-built
// machines.
func Registry() wf.Registry {
	return wf.Registry{
		wf.StateStart:       Start,
		StateProcessInput:   ProcessInput,
		StateComplexProcess: ComplexProcess,
		StateGenerateReport: GenerateReport,
		StateOptionOne:      OptionOne,
		StateOptionTwo:      OptionTwo,
	}
}
