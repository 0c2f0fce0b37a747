package models

import (
	"encoding/json"
	"time"
)

// ActionResult is the uniform outcome of one executed action.
type ActionResult struct {
	ActionID string     `json:"action_id,omitempty"`
	Type     ActionType `json:"type"`
	Success  bool       `json:"success"`
	Output   any        `json:"output,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// ActionSucceeded builds a successful result carrying output.
func ActionSucceeded(output any) ActionResult {
	return ActionResult{Success: true, Output: output}
}

// ActionFailed builds a failed result from err.
func ActionFailed(err error) ActionResult {
	return ActionResult{Success: false, Error: err.Error()}
}

// ActionFailedWithOutput builds a failed result that still carries output, e.g.
// the response of a rejected webhook call.
func ActionFailedWithOutput(err error, output any) ActionResult {
	return ActionResult{Success: false, Error: err.Error(), Output: output}
}

// RunStatus is the terminal status of one automation evaluation.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
	RunStatusSkipped RunStatus = "skipped"
)

// RunResult is the per-automation outcome inside a batch.
type RunResult struct {
	AutomationID   string         `json:"automation_id"`
	AutomationName string         `json:"automation_name"`
	Status         RunStatus      `json:"status"`
	Success        bool           `json:"success"`
	Reason         string         `json:"reason,omitempty"`
	Error          string         `json:"error,omitempty"`
	DurationMs     int64          `json:"duration_ms"`
	ActionResults  []ActionResult `json:"action_results,omitempty"`
}

// RunSummary aggregates a batch. It is built per invocation and never stored.
type RunSummary struct {
	RunCount     int         `json:"run_count"`
	SuccessCount int         `json:"success_count"`
	ErrorCount   int         `json:"error_count"`
	SkippedCount int         `json:"skipped_count"`
	Logs         []RunResult `json:"logs"`
}

// Add folds one result into the summary.
func (s *RunSummary) Add(result RunResult) {
	s.RunCount++

	switch result.Status {
	case RunStatusSuccess:
		s.SuccessCount++
	case RunStatusError:
		s.ErrorCount++
	default:
		s.SkippedCount++
	}

	s.Logs = append(s.Logs, result)
}

// Merge folds another summary into s.
func (s *RunSummary) Merge(other RunSummary) {
	for _, result := range other.Logs {
		s.Add(result)
	}
}

// LogInput is the snapshot stored with every log entry.
type LogInput struct {
	Trigger    Trigger     `json:"-"`
	Conditions []Condition `json:"-"`
	Record     Record      `json:"record,omitempty"`
	OldRecord  Record      `json:"old_record,omitempty"`
}

type logInputWire struct {
	Trigger    json.RawMessage `json:"trigger,omitempty"`
	Conditions json.RawMessage `json:"conditions,omitempty"`
	Record     Record          `json:"record,omitempty"`
	OldRecord  Record          `json:"old_record,omitempty"`
}

func (in LogInput) MarshalJSON() ([]byte, error) {
	wire := logInputWire{Record: in.Record, OldRecord: in.OldRecord}

	if in.Trigger != nil {
		trigger, err := EncodeTrigger(in.Trigger)
		if err != nil {
			return nil, err
		}

		wire.Trigger = trigger
	}

	conditions, err := EncodeConditions(in.Conditions)
	if err != nil {
		return nil, err
	}

	wire.Conditions = conditions

	return json.Marshal(wire)
}

func (in *LogInput) UnmarshalJSON(data []byte) error {
	var wire logInputWire

	err := json.Unmarshal(data, &wire)
	if err != nil {
		return err
	}

	in.Record = wire.Record
	in.OldRecord = wire.OldRecord
	in.Trigger = nil

	if len(wire.Trigger) > 0 && string(wire.Trigger) != "null" {
		in.Trigger, err = DecodeTrigger(wire.Trigger)
		if err != nil {
			return err
		}
	}

	in.Conditions, err = DecodeConditions(wire.Conditions)

	return err
}

// AutomationLog is one persisted orchestrator attempt.
type AutomationLog struct {
	ID           string         `json:"id"`
	AutomationID string         `json:"automation_id"`
	Status       RunStatus      `json:"status"`
	Input        LogInput       `json:"input"`
	Output       []ActionResult `json:"output,omitempty"`
	Error        string         `json:"error,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TestReport is the trace returned by a sandbox run.
type TestReport struct {
	TriggerMatched   bool           `json:"trigger_matched"`
	ConditionsPassed bool           `json:"conditions_passed"`
	ActionResults    []ActionResult `json:"action_results"`
	Logs             []string       `json:"logs"`
	Errors           []string       `json:"errors"`
}
