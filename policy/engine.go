// Package policy decides what happens to an action after the query
// classifier has run.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the policy.
const (
	DecisionAllow           = "allow"
	DecisionRequireApproval = "require_approval"
	DecisionBlock           = "block"
)

// Input is the document the policy is evaluated against.
type Input struct {
	ToolName  string      `json:"tool_name"`
	QuerySafe bool        `json:"query_safe"`
	SessionID string      `json:"session_id,omitempty"`
	Args      interface{} `json:"args,omitempty"`
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Decision string
	Reason   string
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content. The
// module must declare package query_policy and define decision.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.query_policy"),
		rego.Module("query_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineFromFile loads the policy from path, or DefaultPolicy when path is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate returns the decision for input. An undefined decision follows the
// classifier verdict and an unknown one requires approval.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return classifierDecision(input), nil
	}

	doc, _ := results[0].Expressions[0].Value.(map[string]interface{})
	decision, _ := doc["decision"].(string)
	reason, _ := doc["reason"].(string)

	switch decision {
	case DecisionAllow, DecisionRequireApproval, DecisionBlock:
		return Decision{Decision: decision, Reason: reason}, nil
	case "":
		return classifierDecision(input), nil
	default:
		return Decision{Decision: DecisionRequireApproval, Reason: fmt.Sprintf("unexpected decision %q", decision)}, nil
	}
}

func classifierDecision(input Input) Decision {
	if input.QuerySafe {
		return Decision{Decision: DecisionAllow, Reason: "default"}
	}
	return Decision{Decision: DecisionRequireApproval, Reason: "query may modify the database"}
}

// DefaultPolicy runs classifier-approved queries and asks the user for the rest.
const DefaultPolicy = `
package query_policy

default decision = "allow"

decision = "require_approval" {
	input.tool_name == "run_sql"
	not input.query_safe
}

reason = "query may modify the database" {
	decision == "require_approval"
}
`
