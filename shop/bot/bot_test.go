package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/storebot/core/telegram"
	"github.com/m3rciful/storebot/shop/chat"
	"github.com/m3rciful/storebot/shop/order"
	"github.com/m3rciful/storebot/shop/session"
)

const (
	customer  = int64(100)
	admin     = int64(7)
	magnesium = "Магній 500 PRO"
)

type fakeTransport struct {
	mu      sync.Mutex
	nextID  int
	sent    []chat.Message
	docs    []chat.Document
	deleted []int
	editErr error
}

func (f *fakeTransport) SendText(_ context.Context, _ int64, msg chat.Message) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, msg)
	return f.nextID, nil
}

func (f *fakeTransport) EditText(context.Context, int64, int, chat.Message) (chat.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return chat.OutcomeFailed, f.editErr
	}
	return chat.OutcomeSuccess, nil
}

func (f *fakeTransport) DeleteMessage(_ context.Context, _ int64, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeTransport) SendPhoto(context.Context, int64, chat.Photo) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID, nil
}

func (f *fakeTransport) SendDocument(_ context.Context, _ int64, doc chat.Document) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.docs = append(f.docs, doc)
	return f.nextID, nil
}

func (f *fakeTransport) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

func (f *fakeTransport) last() string {
	t := f.texts()
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

type fakeAdmins struct {
	mu  sync.Mutex
	ids []int64
}

func (a *fakeAdmins) IsAdminSecret(_ context.Context, text string) (bool, error) {
	return strings.TrimSpace(text) == "sesame", nil
}

func (a *fakeAdmins) RegisterAdmin(_ context.Context, chatID int64) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, chatID)
	return true, nil
}

func (a *fakeAdmins) AdminChatIDs(context.Context) ([]int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int64(nil), a.ids...), nil
}

type recordingSink struct {
	orders []order.Order
}

func (s *recordingSink) RecordOrder(_ context.Context, o order.Order) error {
	s.orders = append(s.orders, o)
	return nil
}

type fakeLister struct {
	list []order.Order
	err  error
}

func (l fakeLister) List(context.Context, int) ([]order.Order, error) { return l.list, l.err }

type fakeContext struct {
	tele.Context
	update tele.Update
	chat   *tele.Chat
	store  map[string]interface{}
	acks   []string
}

var updateSeq = 0

func newContext(chatID int64, upd tele.Update) *fakeContext {
	updateSeq++
	upd.ID = updateSeq
	return &fakeContext{update: upd, chat: &tele.Chat{ID: chatID}, store: map[string]interface{}{}}
}

func (f *fakeContext) Update() tele.Update           { return f.update }
func (f *fakeContext) Chat() *tele.Chat              { return f.chat }
func (f *fakeContext) Sender() *tele.User            { return &tele.User{ID: f.chat.ID} }
func (f *fakeContext) Callback() *tele.Callback      { return f.update.Callback }
func (f *fakeContext) Get(key string) interface{}    { return f.store[key] }
func (f *fakeContext) Set(key string, v interface{}) { f.store[key] = v }
func (f *fakeContext) Respond(rs ...*tele.CallbackResponse) error {
	for _, r := range rs {
		f.acks = append(f.acks, r.Text)
	}
	return nil
}
func (f *fakeContext) Text() string {
	if f.update.Message == nil {
		return ""
	}
	return f.update.Message.Text
}

type harness struct {
	t         *testing.T
	transport *fakeTransport
	admins    *fakeAdmins
	sink      *recordingSink
	handlers  map[interface{}]tele.HandlerFunc
}

func newHarness(t *testing.T, lister OrderLister) *harness {
	h := &harness{
		t:         t,
		transport: &fakeTransport{},
		admins:    &fakeAdmins{},
		sink:      &recordingSink{},
		handlers:  map[interface{}]tele.HandlerFunc{},
	}
	mgr := session.NewManager(session.Options{
		Transport: h.transport,
		Admins:    h.admins,
		Sink:      h.sink,
		Now:       func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	handlers := New(Options{Shop: mgr, Transport: h.transport, Orders: lister})
	reg := tg.NewRegistry()
	require.NoError(t, handlers.Register(reg))
	for _, r := range handlers.Routes(reg) {
		h.handlers[r.Endpoint] = r.Handler
	}
	return h
}

func (h *harness) command(chatID int64, cmd string) error {
	fn, ok := h.handlers[cmd]
	require.True(h.t, ok, "no route for %s", cmd)
	return fn(newContext(chatID, tele.Update{Message: &tele.Message{Text: cmd}}))
}

func (h *harness) text(chatID int64, text string) error {
	return h.handlers[tele.OnText](newContext(chatID, tele.Update{Message: &tele.Message{Text: text}}))
}

func (h *harness) press(chatID int64, action, payload string) error {
	data := "\f" + action
	if payload != "" {
		data += "|" + payload
	}
	return h.handlers[tele.OnCallback](newContext(chatID, tele.Update{Callback: &tele.Callback{Data: data}}))
}

func TestStartCommand(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.command(customer, "/start"))
	assert.Equal(t, session.DefaultWelcomeText, h.transport.last())
}

func TestAddToCartRendersCart(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.press(customer, session.ActionAdd, magnesium))

	texts := h.transport.texts()
	require.Len(t, texts, 4)
	assert.Contains(t, texts[0], magnesium)
	assert.Equal(t, "*Ваш кошик:*", texts[1])
	assert.Contains(t, texts[2], "Кількість: 1")
	assert.Contains(t, texts[3], "495")
}

func TestUnknownProductShowsCatalogAgain(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.press(customer, session.ActionAdd, "Вітамін X"))
	texts := h.transport.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, textProductGone, texts[0])
	assert.Equal(t, "Оберіть товар:", texts[1])
}

func TestStaleLineButtonRedrawsCart(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.press(customer, session.ActionInc, magnesium))
	assert.Equal(t, "Ваш кошик порожній.", h.transport.last())
}

func TestFailedEditFallsBackToFreshRender(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.press(customer, session.ActionAdd, magnesium))
	before := len(h.transport.texts())

	h.transport.editErr = errors.New("message to edit not found")
	require.NoError(t, h.press(customer, session.ActionInc, magnesium))

	texts := h.transport.texts()[before:]
	require.Len(t, texts, 3)
	assert.Equal(t, "*Ваш кошик:*", texts[0])
	assert.Contains(t, texts[1], "Кількість: 2")
	assert.Contains(t, texts[2], "990")
	assert.Len(t, h.transport.deleted, 3)
}

func TestCheckoutFlow(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.press(customer, session.ActionAdd, magnesium))
	require.NoError(t, h.press(customer, session.ActionCheckout, ""))
	assert.Equal(t, "Введіть ваше ім'я:", h.transport.last())

	for _, in := range []string{"Іван", "Петренко", "Олегович"} {
		require.NoError(t, h.text(customer, in))
	}
	require.NoError(t, h.text(customer, "12"))
	assert.Contains(t, h.transport.last(), "Невірний номер")

	require.NoError(t, h.text(customer, "+380 50 123 45 67"))
	assert.Equal(t, "Оберіть спосіб оплати:", h.transport.last())

	require.NoError(t, h.press(customer, session.ActionPay, order.PaymentCard))
	require.NoError(t, h.text(customer, "Київ, вул. Хрещатик 1"))

	require.Len(t, h.sink.orders, 1)
	o := h.sink.orders[0]
	assert.Equal(t, "Іван", o.CustomerName)
	assert.Equal(t, order.PaymentCard, o.PaymentMethod)
	assert.Equal(t, 495, o.Total)
	assert.Equal(t, "Ваше замовлення було оформлено!", h.transport.last())

	// free text is no longer captured by the form
	require.NoError(t, h.text(customer, "дякую"))
	assert.Equal(t, textUseStart, h.transport.last())
}

func TestCheckoutWithEmptyCartIsNotAnError(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.press(customer, session.ActionCheckout, ""))
	assert.Equal(t, "Ваш кошик порожній.", h.transport.last())
}

func TestPaymentWithoutDraft(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.press(customer, session.ActionPay, order.PaymentCard))
	assert.Equal(t, textNoPendingOrder, h.transport.last())
}

func TestCancelCommand(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.command(customer, "/cancel"))
	assert.Equal(t, textNothingToCancel, h.transport.last())

	require.NoError(t, h.press(customer, session.ActionAdd, magnesium))
	require.NoError(t, h.press(customer, session.ActionCheckout, ""))
	require.NoError(t, h.command(customer, "/cancel"))
	assert.Equal(t, "Оформлення замовлення скасовано.", h.transport.last())

	require.NoError(t, h.text(customer, "Іван"))
	assert.Equal(t, textUseStart, h.transport.last())
}

func TestUnknownCallback(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.press(customer, "legacy", "x"))
	assert.Equal(t, textUnsupportedAction, h.transport.last())
}

func TestSecretWordAndOrdersExport(t *testing.T) {
	lister := fakeLister{list: []order.Order{{CustomerName: "Іван", Total: 495}}}
	h := newHarness(t, lister)

	require.NoError(t, h.command(admin, "/orders"))
	assert.Equal(t, textAdminOnly, h.transport.last())
	assert.Empty(t, h.transport.docs)

	require.NoError(t, h.text(admin, "sesame"))
	assert.Equal(t, "Ви успішно зареєстровані як адміністратор.", h.transport.last())

	require.NoError(t, h.command(admin, "/orders"))
	require.Len(t, h.transport.docs, 1)
	doc := h.transport.docs[0]
	assert.True(t, strings.HasSuffix(doc.FileName, ".xlsx"))
	assert.NotEmpty(t, doc.Data)
	assert.Equal(t, "Замовлень: 1", doc.Caption)
}

func TestOrdersExportWithoutDatabase(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.text(admin, "sesame"))
	require.NoError(t, h.command(admin, "/orders"))
	assert.Equal(t, textExportDisabled, h.transport.last())
}

func TestOrdersExportListFailure(t *testing.T) {
	boom := errors.New("db down")
	h := newHarness(t, fakeLister{err: boom})
	require.NoError(t, h.text(admin, "sesame"))
	assert.ErrorIs(t, h.command(admin, "/orders"), boom)
}

func TestUnknownDocument(t *testing.T) {
	h := newHarness(t, nil)
	doc := newContext(customer, tele.Update{Message: &tele.Message{Document: &tele.Document{FileName: "x.pdf"}}})
	require.NoError(t, h.handlers[tele.OnDocument](doc))
	assert.Equal(t, textUnexpectedDocument, h.transport.last())
}

func TestLimitedAnswersCallbacksOnly(t *testing.T) {
	cb := newContext(customer, tele.Update{Callback: &tele.Callback{Data: "\fadd|1"}})
	require.NoError(t, Limited(cb))
	assert.Equal(t, []string{textSlowDown}, cb.acks)

	msg := newContext(customer, tele.Update{Message: &tele.Message{Text: "hi"}})
	require.NoError(t, Limited(msg))
	assert.Empty(t, msg.acks)
}
