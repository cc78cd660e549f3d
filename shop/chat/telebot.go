package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/storebot/core/telegram/keyboard"
	"github.com/m3rciful/storebot/core/telegram/middleware"
)

// API is the subset of *tele.Bot used by TelebotTransport.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// TelebotTransport implements Transport on top of telebot.
type TelebotTransport struct {
	api API
}

// NewTelebotTransport wraps a telebot API.
func NewTelebotTransport(api API) *TelebotTransport {
	return &TelebotTransport{api: api}
}

// SendText sends a text message and returns its id.
func (t *TelebotTransport) SendText(ctx context.Context, chatID int64, msg Message) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sent, err := t.api.Send(tele.ChatID(chatID), msg.Text, sendOptions(msg.Markdown, msg.Keyboard))
	if err != nil {
		return 0, fmt.Errorf("chat: send text: %w", err)
	}
	middleware.CountMessage(ctx, len(msg.Keyboard) > 0)
	return sent.ID, nil
}

// EditText replaces the text and keyboard of an existing message.
func (t *TelebotTransport) EditText(ctx context.Context, chatID int64, messageID int, msg Message) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return OutcomeFailed, err
	}
	_, err := t.api.Edit(stored(chatID, messageID), msg.Text, sendOptions(msg.Markdown, msg.Keyboard))
	switch {
	case err == nil:
		middleware.CountMessage(ctx, len(msg.Keyboard) > 0)
		return OutcomeSuccess, nil
	case IsNotModified(err):
		return OutcomeUnchanged, nil
	default:
		return OutcomeFailed, fmt.Errorf("chat: edit text: %w", err)
	}
}

// DeleteMessage removes a message from the chat.
func (t *TelebotTransport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.api.Delete(stored(chatID, messageID)); err != nil {
		return fmt.Errorf("chat: delete message: %w", err)
	}
	return nil
}

// SendPhoto uploads an image from disk.
func (t *TelebotTransport) SendPhoto(ctx context.Context, chatID int64, photo Photo) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p := &tele.Photo{File: tele.FromDisk(photo.Path), Caption: photo.Caption}
	sent, err := t.api.Send(tele.ChatID(chatID), p, sendOptions(false, photo.Keyboard))
	if err != nil {
		return 0, fmt.Errorf("chat: send photo: %w", err)
	}
	middleware.CountMessage(ctx, len(photo.Keyboard) > 0)
	return sent.ID, nil
}

// SendDocument uploads an in-memory file.
func (t *TelebotTransport) SendDocument(ctx context.Context, chatID int64, doc Document) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d := &tele.Document{
		File:     tele.FromReader(bytes.NewReader(doc.Data)),
		FileName: doc.FileName,
		Caption:  doc.Caption,
	}
	sent, err := t.api.Send(tele.ChatID(chatID), d)
	if err != nil {
		return 0, fmt.Errorf("chat: send document: %w", err)
	}
	middleware.CountMessage(ctx, false)
	return sent.ID, nil
}

// IsNotModified reports whether err is Telegram's "message is not modified" rejection.
func IsNotModified(err error) bool {
	if errors.Is(err, tele.ErrSameMessageContent) {
		return true
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusBadRequest &&
			strings.Contains(apiErr.Description, "message is not modified")
	}
	return false
}

// Markup converts a Keyboard to telebot inline markup. Nil for an empty keyboard.
func Markup(kb Keyboard) *tele.ReplyMarkup {
	rows := make([][]keyboard.InlineBtn, 0, len(kb))
	for _, r := range kb {
		row := make([]keyboard.InlineBtn, 0, len(r))
		for _, b := range r {
			row = append(row, keyboard.InlineBtn{Text: b.Text, Unique: b.Action, Data: b.Payload})
		}
		rows = append(rows, row)
	}
	return keyboard.InlineButtonsRows(rows...)
}

func sendOptions(markdown bool, kb Keyboard) *tele.SendOptions {
	opts := &tele.SendOptions{ReplyMarkup: Markup(kb)}
	if markdown {
		opts.ParseMode = tele.ModeMarkdown
	}
	return opts
}

func stored(chatID int64, messageID int) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
}
