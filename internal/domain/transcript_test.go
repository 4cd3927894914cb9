package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptAppendDoesNotShareBackingArray(t *testing.T) {
	base := make(Transcript, 1, 4)
	base[0] = ConversationEntry{Role: RoleUser, Content: "hi"}

	a := base.Append(ConversationEntry{Role: RoleAssistant, Content: "a"})
	b := base.Append(ConversationEntry{Role: RoleAssistant, Content: "b"})

	assert.Len(t, base, 1)
	assert.Equal(t, "a", a[1].Content)
	assert.Equal(t, "b", b[1].Content)
}

func TestTranscriptUpsert(t *testing.T) {
	selection := func(content string) ConversationEntry {
		return ConversationEntry{Role: RoleAssistant, Content: content, ID: "grid_1"}
	}

	tr := Transcript{{Role: RoleUser, Content: "show users"}}
	tr = tr.Upsert(selection("first"))
	require.Len(t, tr, 2)

	replaced := tr.Upsert(selection("second"))
	require.Len(t, replaced, 2)
	assert.Equal(t, "second", replaced[1].Content)
	assert.Equal(t, "first", tr[1].Content, "receiver must stay untouched")

	// Only the last entry is matched.
	later := replaced.Append(ConversationEntry{Role: RoleUser, Content: "next"}).Upsert(selection("third"))
	assert.Len(t, later, 4)

	// Entries without an id always append.
	noID := tr.Upsert(ConversationEntry{Role: RoleSystem, Content: "x"}).Upsert(ConversationEntry{Role: RoleSystem, Content: "y"})
	assert.Len(t, noID, 4)
}

func TestTranscriptWithout(t *testing.T) {
	tr := Transcript{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b", ID: "grid_1"},
		{Role: RoleUser, Content: "c"},
		{Role: RoleAssistant, Content: "d", ID: "grid_1"},
	}

	out := tr.Without("grid_1")
	assert.Equal(t, Transcript{{Role: RoleUser, Content: "a"}, {Role: RoleUser, Content: "c"}}, out)
	assert.Len(t, tr, 4)

	assert.Len(t, tr.Without(""), 4)
	assert.Len(t, tr.Without("missing"), 4)
}

func TestUIListReplace(t *testing.T) {
	l := UIList{
		{ID: 1, Display: NewDisplay(DisplayThinking, "", nil)},
		{ID: 2, Display: NewDisplay(DisplayText, "hi", nil), Final: true},
	}

	out, ok := l.Replace(1, NewDisplay(DisplayText, "done", nil), true)
	require.True(t, ok)
	assert.Equal(t, "done", out[0].Display.Text)
	assert.True(t, out[0].Final)
	assert.Equal(t, DisplayThinking, l[0].Display.Kind, "receiver must stay untouched")

	same, ok := l.Replace(9, NewDisplay(DisplayText, "x", nil), true)
	assert.False(t, ok)
	assert.Equal(t, l, same)

	entry, ok := out.Find(2)
	require.True(t, ok)
	assert.Equal(t, "hi", entry.Display.Text)
	_, ok = out.Find(3)
	assert.False(t, ok)
}

func TestUIListNextID(t *testing.T) {
	assert.Equal(t, int64(1000), UIList{}.NextID(1000))
	assert.Equal(t, int64(1000), UIList{{ID: 500}}.NextID(1000))
	assert.Equal(t, int64(1001), UIList{{ID: 1000}}.NextID(1000))
	assert.Equal(t, int64(2001), UIList{{ID: 2000}}.NextID(1000))
}

func TestNewDisplayOmitsNilData(t *testing.T) {
	d := NewDisplay(DisplayText, "hello", nil)
	assert.Nil(t, d.Data)

	d = NewDisplay(DisplayStock, "", Stock{Symbol: "AAPL", Price: 100})
	assert.JSONEq(t, `{"symbol":"AAPL","price":100,"delta":0}`, string(d.Data))
}
