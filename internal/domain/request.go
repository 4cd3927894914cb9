package domain

// CreateSessionRequest represents the request to open a session.
type CreateSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// SubmitMessageRequest represents a user message starting a turn.
type SubmitMessageRequest struct {
	Content string `json:"content"`
}

// SubmitMessageResponse is returned as soon as the turn has started.
type SubmitMessageResponse struct {
	TurnID    string  `json:"turn_id"`
	SessionID string  `json:"session_id"`
	UIEntry   UIEntry `json:"ui_entry"`
}

// SelectRowsRequest reports the rows currently selected in a result grid.
type SelectRowsRequest struct {
	ComponentID string `json:"component_id"`
	Rows        []Row  `json:"rows"`
}

// RunQueryRequest is a user-triggered execution from an editable query card.
type RunQueryRequest struct {
	UIEntryID int64    `json:"ui_entry_id"`
	SQL       string   `json:"sql"`
	Params    []string `json:"params"`
}

// ConfirmationDecisionRequest represents a decision on a pending query.
type ConfirmationDecisionRequest struct {
	Decision string `json:"decision"` // approve or reject
	Reason   string `json:"reason,omitempty"`
}

// ConfirmPurchaseRequest asks to purchase shares from a purchase control.
type ConfirmPurchaseRequest struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Amount int     `json:"amount"`
}

// ConfirmPurchaseResponse carries the UI entries created by a purchase.
type ConfirmPurchaseResponse struct {
	PurchasingEntry UIEntry `json:"purchasing_entry"`
}

// ToolListItem represents an action in the list response.
type ToolListItem struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  interface{} `json:"parameters"`
}

// ListToolsResponse represents the response for listing actions.
type ListToolsResponse struct {
	Tools []ToolListItem `json:"tools"`
}
