package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/storebot/core/telegram/middleware"
)

type fakeAPI struct {
	sent    []interface{}
	opts    []interface{}
	edited  []tele.Editable
	deleted []tele.Editable
	editErr error
	nextID  int
}

func (f *fakeAPI) Send(_ tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.sent = append(f.sent, what)
	f.opts = append(f.opts, opts...)
	f.nextID++
	return &tele.Message{ID: f.nextID}, nil
}

func (f *fakeAPI) Edit(msg tele.Editable, _ interface{}, _ ...interface{}) (*tele.Message, error) {
	f.edited = append(f.edited, msg)
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &tele.Message{}, nil
}

func (f *fakeAPI) Delete(msg tele.Editable) error {
	f.deleted = append(f.deleted, msg)
	return nil
}

func TestSendTextReturnsMessageID(t *testing.T) {
	api := &fakeAPI{nextID: 40}
	tr := NewTelebotTransport(api)

	id, err := tr.SendText(context.Background(), 7, Message{
		Text:     "*Ваш кошик:*",
		Markdown: true,
		Keyboard: Keyboard{Row(Button{Text: "➕", Action: "inc", Payload: "HEALTH KIT"})},
	})
	require.NoError(t, err)
	assert.Equal(t, 41, id)

	require.Len(t, api.opts, 1)
	opts := api.opts[0].(*tele.SendOptions)
	assert.Equal(t, tele.ModeMarkdown, opts.ParseMode)
	require.NotNil(t, opts.ReplyMarkup)
	require.Len(t, opts.ReplyMarkup.InlineKeyboard, 1)
	btn := opts.ReplyMarkup.InlineKeyboard[0][0]
	assert.Equal(t, "inc", btn.Unique)
	assert.Equal(t, "➕", btn.Text)
}

func TestEditTextOutcomes(t *testing.T) {
	api := &fakeAPI{}
	tr := NewTelebotTransport(api)
	ctx := context.Background()

	out, err := tr.EditText(ctx, 7, 3, Message{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, out)
	msgID, chatID := api.edited[0].MessageSig()
	assert.Equal(t, "3", msgID)
	assert.Equal(t, int64(7), chatID)

	api.editErr = tele.ErrSameMessageContent
	out, err = tr.EditText(ctx, 7, 3, Message{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, out)

	api.editErr = &tele.Error{Code: 400, Description: "Bad Request: message is not modified: specified new message content"}
	out, err = tr.EditText(ctx, 7, 3, Message{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, out)

	boom := errors.New("boom")
	api.editErr = boom
	out, err = tr.EditText(ctx, 7, 3, Message{Text: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, OutcomeFailed, out)
}

func TestCanceledContextSkipsCall(t *testing.T) {
	api := &fakeAPI{}
	tr := NewTelebotTransport(api)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.SendText(ctx, 1, Message{Text: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, tr.DeleteMessage(ctx, 1, 2), context.Canceled)
	assert.Empty(t, api.sent)
	assert.Empty(t, api.deleted)
}

func TestMarkupEmpty(t *testing.T) {
	assert.Nil(t, Markup(nil))
}

func TestTransportCountsMessagesPerUpdate(t *testing.T) {
	ctx, counters := middleware.WithCounters(context.Background())
	tr := NewTelebotTransport(&fakeAPI{})

	_, err := tr.SendText(ctx, 1, Message{Text: "a"})
	require.NoError(t, err)
	_, err = tr.EditText(ctx, 1, 5, Message{Text: "b", Keyboard: Keyboard{Row(Button{Text: "x", Action: "cart"})}})
	require.NoError(t, err)

	msgs, kb := counters.Snapshot()
	assert.Equal(t, 2, msgs)
	assert.True(t, kb)
}
