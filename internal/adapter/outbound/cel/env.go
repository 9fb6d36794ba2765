package cel

import (
	"path/filepath"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// newConditionEnvironment creates the CEL environment guardrail conditions
// are compiled against. The variable set deliberately excludes anything the
// engine cannot supply from (principal, request) alone.
func newConditionEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("principal_id", cel.StringType),
		cel.Variable("org_ids", cel.ListType(cel.StringType)),
		cel.Variable("group_ids", cel.ListType(cel.StringType)),
		cel.Variable("model_id", cel.StringType),
		cel.Variable("input_tokens", cel.IntType),
		cel.Variable("request_time", cel.TimestampType),
		cel.Variable("hour_of_day", cel.IntType),

		// glob(pattern, value) matches a value against a glob pattern,
		// e.g. glob("gpt-*", model_id).
		cel.Function("glob",
			cel.Overload("glob_string_string", []*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
				cel.BinaryBinding(func(pattern, value ref.Val) ref.Val {
					p, ok := pattern.Value().(string)
					if !ok {
						return types.Bool(false)
					}
					v, ok := value.Value().(string)
					if !ok {
						return types.Bool(false)
					}
					matched, err := filepath.Match(p, v)
					if err != nil {
						return types.Bool(false)
					}
					return types.Bool(matched)
				}),
			),
		),
	)
}

// buildActivation maps a ConditionContext to CEL variables.
func buildActivation(condCtx ConditionContext) map[string]any {
	return map[string]any{
		"principal_id": condCtx.PrincipalID,
		"org_ids":      condCtx.OrgIDs,
		"group_ids":    condCtx.GroupIDs,
		"model_id":     condCtx.ModelID,
		"input_tokens": condCtx.InputTokens,
		"request_time": condCtx.RequestTime,
		"hour_of_day":  int64(condCtx.RequestTime.Hour()),
	}
}
