package view

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/storebot/shop/chat"
)

type fakeMessenger struct {
	nextID  int
	sends   int
	edits   []int
	outcome chat.Outcome
	editErr error
	sendErr error
}

func (f *fakeMessenger) SendText(_ context.Context, _ int64, _ chat.Message) (int, error) {
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.sends++
	f.nextID++
	return f.nextID, nil
}

func (f *fakeMessenger) EditText(_ context.Context, _ int64, id int, _ chat.Message) (chat.Outcome, error) {
	f.edits = append(f.edits, id)
	if f.editErr != nil {
		return chat.OutcomeFailed, f.editErr
	}
	return f.outcome, nil
}

func TestRenderSlotDecision(t *testing.T) {
	r := NewRegistry()
	msg := chat.Message{Text: "x"}

	act := r.RenderSlot(Header(), msg, true)
	assert.Equal(t, OpSend, act.Op)

	r.Record(Header(), 10)
	act = r.RenderSlot(Header(), msg, true)
	assert.Equal(t, OpEdit, act.Op)
	assert.Equal(t, 10, act.MessageID)

	act = r.RenderSlot(Header(), msg, false)
	assert.Equal(t, OpSend, act.Op)
}

func TestReleaseAllOrder(t *testing.T) {
	r := NewRegistry()
	r.Record(Total(), 9)
	r.Record(Line("b"), 3)
	r.Record(Header(), 1)
	r.Record(Line("a"), 2)

	assert.Equal(t, []string{"b", "a"}, r.Lines())
	assert.Equal(t, []int{1, 3, 2, 9}, r.ReleaseAll())
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Lines())
	assert.Empty(t, r.ReleaseAll())
}

func TestReleaseLine(t *testing.T) {
	r := NewRegistry()
	r.Record(Line("a"), 2)
	r.Record(Line("a"), 5)
	assert.Equal(t, []string{"a"}, r.Lines())

	id, ok := r.Release(Line("a"))
	require.True(t, ok)
	assert.Equal(t, 5, id)
	_, ok = r.Release(Line("a"))
	assert.False(t, ok)
	assert.Empty(t, r.Lines())
}

func TestRenderSendsThenEdits(t *testing.T) {
	r := NewRegistry()
	m := &fakeMessenger{outcome: chat.OutcomeUnchanged}
	ctx := context.Background()
	slots := []Slot{Header(), Line("a"), Total()}

	for _, s := range slots {
		out, err := r.Render(ctx, m, 1, s, chat.Message{Text: s.String()}, true)
		require.NoError(t, err)
		assert.Equal(t, chat.OutcomeSuccess, out)
	}
	assert.Equal(t, 3, m.sends)

	for _, s := range slots {
		out, err := r.Render(ctx, m, 1, s, chat.Message{Text: s.String()}, true)
		require.NoError(t, err)
		assert.Equal(t, chat.OutcomeUnchanged, out)
	}
	assert.Equal(t, 3, m.sends)
	assert.Equal(t, []int{1, 2, 3}, m.edits)
}

func TestRenderFailureKeepsMapping(t *testing.T) {
	r := NewRegistry()
	r.Record(Header(), 7)
	boom := errors.New("boom")
	m := &fakeMessenger{editErr: boom}

	out, err := r.Render(context.Background(), m, 1, Header(), chat.Message{Text: "x"}, true)
	assert.Equal(t, chat.OutcomeFailed, out)
	assert.ErrorIs(t, err, ErrRenderFailed)
	assert.ErrorIs(t, err, boom)
	var re *RenderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, Header(), re.Slot)

	id, ok := r.Lookup(Header())
	require.True(t, ok)
	assert.Equal(t, 7, id)

	m.sendErr = boom
	_, err = r.Render(context.Background(), m, 1, Line("z"), chat.Message{Text: "x"}, true)
	assert.ErrorIs(t, err, ErrRenderFailed)
	_, ok = r.Lookup(Line("z"))
	assert.False(t, ok)
}
