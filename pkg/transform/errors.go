package transform

import "fmt"

// Stage names a step of the transform pipeline.
type Stage string

// Pipeline stages, in order.
const (
	StageRegisterFunctions Stage = "RegisterFunctions"
	StageBuildCatalog      Stage = "BuildCatalog"
	StageParse             Stage = "Parse"
	StageModelAnalyze      Stage = "ModelAnalyzeRule"
	StageUnparse           Stage = "Unparse"
)

// TransformError is a failure in one stage of Transform. The inner error is
// kept unwrapped so errors.As finds the typed errors of pkg/mdl and
// pkg/parser.
type TransformError struct {
	Stage Stage
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("%s\ncaused by\n%s", e.Stage, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

func stageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &TransformError{Stage: stage, Err: err}
}

// PlanningError reports a query that names existing objects but uses them
// in a way that cannot be planned, such as a window function without OVER.
type PlanningError struct {
	Msg string
}

func (e *PlanningError) Error() string {
	return "Error during planning: " + e.Msg
}

func planningErrorf(format string, args ...any) *PlanningError {
	return &PlanningError{Msg: fmt.Sprintf(format, args...)}
}
