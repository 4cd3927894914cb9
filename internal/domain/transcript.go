package domain

// ConversationEntry is one element of the model-facing transcript.
type ConversationEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"` // function identifier when Role is function
	ID      string `json:"id,omitempty"`   // correlation id for Upsert
}

// Transcript is the ordered conversation the model sees on its next turn.
//
// A Transcript is treated as immutable: every operation returns a new slice
// and never writes into the receiver's backing array, so a snapshot captured
// by a turn cannot change underneath it.
type Transcript []ConversationEntry

// Append returns a copy of t with e added at the end.
func (t Transcript) Append(e ConversationEntry) Transcript {
	out := make(Transcript, len(t), len(t)+1)
	copy(out, t)
	return append(out, e)
}

// Upsert replaces the last entry when it carries the same non-empty ID as e,
// and appends e otherwise.
func (t Transcript) Upsert(e ConversationEntry) Transcript {
	if e.ID != "" && len(t) > 0 && t[len(t)-1].ID == e.ID {
		out := make(Transcript, len(t))
		copy(out, t)
		out[len(out)-1] = e
		return out
	}
	return t.Append(e)
}

// Without returns a copy of t with every entry carrying id removed.
func (t Transcript) Without(id string) Transcript {
	out := make(Transcript, 0, len(t))
	for _, e := range t {
		if id != "" && e.ID == id {
			continue
		}
		out = append(out, e)
	}
	return out
}
