package domain

import "encoding/json"

// TurnStartedPayload is the payload for turn_started event.
type TurnStartedPayload struct {
	SessionID string `json:"session_id"`
	UIEntryID int64  `json:"ui_entry_id"`
}

// UserInputPayload is the payload for user_input event.
type UserInputPayload struct {
	Content string `json:"content"`
}

// TurnSettledPayload is the payload for turn_settled and turn_failed events.
type TurnSettledPayload struct {
	ToolName string `json:"tool_name,omitempty"`
	Role     Role   `json:"role"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// LLMCallStartedPayload is the payload for llm_call_started event.
type LLMCallStartedPayload struct {
	RequestID string `json:"request_id"`
	Model     string `json:"model"`
	Stream    bool   `json:"stream"`
}

// LLMCallDonePayload is the payload for llm_call_done event.
type LLMCallDonePayload struct {
	RequestID        string `json:"request_id"`
	Model            string `json:"model"`
	LatencyMs        int64  `json:"latency_ms"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	TotalTokens      int    `json:"total_tokens,omitempty"`
	Error            string `json:"error,omitempty"`
}

// ToolCallParsedPayload is the payload for tool_call_parsed event.
type ToolCallParsedPayload struct {
	ToolName string          `json:"tool_name"`
	Args     json.RawMessage `json:"args,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// PolicyDecisionPayload is the payload for policy_decision event.
type PolicyDecisionPayload struct {
	ToolName  string `json:"tool_name"`
	QuerySafe bool   `json:"query_safe"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason,omitempty"`
}

// QueryExecutedPayload is the payload for query_executed event.
type QueryExecutedPayload struct {
	QueryKey  string `json:"query_key"`
	Success   bool   `json:"success"`
	RowCount  int    `json:"row_count"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// ConfirmationRequiredPayload is the payload for confirmation_required event.
type ConfirmationRequiredPayload struct {
	ConfirmationID string `json:"confirmation_id"`
	QueryKey       string `json:"query_key"`
	SQL            string `json:"sql"`
}

// ConfirmationDecisionPayload is the payload for confirmation_decision event.
type ConfirmationDecisionPayload struct {
	ConfirmationID string             `json:"confirmation_id"`
	Status         ConfirmationStatus `json:"status"`
	Reason         string             `json:"reason,omitempty"`
}

// EndpointPayload is the payload for endpoint_created and endpoint_ready events.
type EndpointPayload struct {
	ProjectID    string `json:"project_id,omitempty"`
	DeploymentID string `json:"deployment_id,omitempty"`
	URL          string `json:"url,omitempty"`
	Error        string `json:"error,omitempty"`
}
