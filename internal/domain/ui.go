package domain

import "encoding/json"

// Display is an opaque renderable payload. Data holds the kind-specific view
// model (see the *View types) as JSON.
type Display struct {
	Kind DisplayKind     `json:"kind"`
	Text string          `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewDisplay builds a Display, encoding data when it is non-nil.
func NewDisplay(kind DisplayKind, text string, data interface{}) Display {
	d := Display{Kind: kind, Text: text}
	if data != nil {
		raw, err := json.Marshal(data)
		if err == nil {
			d.Data = raw
		}
	}
	return d
}

// UIEntry is one element of the display-facing list.
type UIEntry struct {
	ID      int64   `json:"id"` // creation time in unix milliseconds, unique per session
	Display Display `json:"display"`
	Final   bool    `json:"final"`
}

// UIList is the rendered conversation. Like Transcript it is copy-on-write.
type UIList []UIEntry

// Append returns a copy of l with e added at the end.
func (l UIList) Append(e UIEntry) UIList {
	out := make(UIList, len(l), len(l)+1)
	copy(out, l)
	return append(out, e)
}

// Replace returns a copy of l where the entry with the given id shows d.
// The second return value is false when no such entry exists.
func (l UIList) Replace(id int64, d Display, final bool) (UIList, bool) {
	for i := range l {
		if l[i].ID != id {
			continue
		}
		out := make(UIList, len(l))
		copy(out, l)
		out[i] = UIEntry{ID: id, Display: d, Final: final}
		return out, true
	}
	return l, false
}

// Find returns the entry with the given id.
func (l UIList) Find(id int64) (UIEntry, bool) {
	for _, e := range l {
		if e.ID == id {
			return e, true
		}
	}
	return UIEntry{}, false
}

// NextID returns an id that is at least nowMs and greater than every id in l.
func (l UIList) NextID(nowMs int64) int64 {
	if n := len(l); n > 0 && l[n-1].ID >= nowMs {
		return l[n-1].ID + 1
	}
	return nowMs
}

// RunSQLView is the data of a run_sql display: an editable query card.
type RunSQLView struct {
	QueryKey       string       `json:"query_key"`
	SQL            string       `json:"sql"`
	Params         []string     `json:"params"`
	QuerySafe      bool         `json:"query_safe"`
	Loading        bool         `json:"loading"`
	Result         *QueryResult `json:"result,omitempty"`
	Errors         []string     `json:"errors,omitempty"`
	EndpointURL    string       `json:"endpoint_url,omitempty"`
	EndpointReady  bool         `json:"endpoint_ready"`
	ConfirmationID string       `json:"confirmation_id,omitempty"`
	Confirmation   string       `json:"confirmation,omitempty"` // ConfirmationStatus when one exists
}

// ReactView is the data of a react display, compiled by the client sandbox.
type ReactView struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Render string `json:"render"`
}

// Stock is a single quote shown by the stock displays.
type Stock struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Delta  float64 `json:"delta"`
}

// StockEvent is a dated headline shown by the events display.
type StockEvent struct {
	Date        string `json:"date"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
}

// PurchaseView is the data of a purchase confirmation control.
type PurchaseView struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	DefaultAmount float64 `json:"default_amount"`
}
