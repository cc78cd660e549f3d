package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/storebot/core/telegram"
	"github.com/m3rciful/storebot/core/telegram/callbacks"
	"github.com/m3rciful/storebot/core/telegram/commands"
)

type fakeContext struct {
	tele.Context
	update    tele.Update
	chat      *tele.Chat
	store     map[string]interface{}
	responded int
}

var nextUpdate = 1000

func newContext(chatID int64, upd tele.Update) *fakeContext {
	nextUpdate++
	upd.ID = nextUpdate
	return &fakeContext{
		update: upd,
		chat:   &tele.Chat{ID: chatID},
		store:  map[string]interface{}{},
	}
}

func textContext(chatID int64, text string) *fakeContext {
	return newContext(chatID, tele.Update{Message: &tele.Message{Text: text}})
}

func callbackContext(chatID int64, data string) *fakeContext {
	return newContext(chatID, tele.Update{Callback: &tele.Callback{Data: data}})
}

func (f *fakeContext) Update() tele.Update        { return f.update }
func (f *fakeContext) Chat() *tele.Chat           { return f.chat }
func (f *fakeContext) Sender() *tele.User         { return &tele.User{ID: f.chat.ID} }
func (f *fakeContext) Callback() *tele.Callback   { return f.update.Callback }
func (f *fakeContext) Get(key string) interface{} { return f.store[key] }
func (f *fakeContext) Set(key string, v interface{}) {
	f.store[key] = v
}
func (f *fakeContext) Respond(...*tele.CallbackResponse) error {
	f.responded++
	return nil
}
func (f *fakeContext) Text() string {
	if f.update.Message == nil {
		return ""
	}
	return f.update.Message.Text
}

func TestCallbackRouteDispatchesByKey(t *testing.T) {
	reg := tg.NewRegistry()
	var payload string
	require.NoError(t, reg.RegisterCallback("add", func(c tele.Context) error {
		payload = callbacks.CallbackPayload(c)
		return nil
	}))

	route := CallbackRoute(reg, CallbackOptions{})
	assert.Equal(t, tele.OnCallback, route.Endpoint)

	c := callbackContext(5, "\fadd|HEALTH KIT")
	require.NoError(t, route.Handler(c))
	assert.Equal(t, "HEALTH KIT", payload)
	assert.Equal(t, 1, c.responded)
}

func TestCallbackRouteNotFound(t *testing.T) {
	reg := tg.NewRegistry()
	missed := 0
	route := CallbackRoute(reg, CallbackOptions{NotFound: func(tele.Context) error {
		missed++
		return nil
	}})
	c := callbackContext(5, "\fgone|x")
	require.NoError(t, route.Handler(c))
	assert.Equal(t, 1, missed)
	assert.Equal(t, 1, c.responded)
}

func TestCallbackRouteAnswersOnce(t *testing.T) {
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCallback("pay", func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: "ok"})
	}))
	c := callbackContext(5, "\fpay|card")
	require.NoError(t, CallbackRoute(reg, CallbackOptions{}).Handler(c))
	assert.Equal(t, 1, c.responded)
}

func TestCallbackRoutePropagatesHandlerError(t *testing.T) {
	reg := tg.NewRegistry()
	boom := errors.New("boom")
	require.NoError(t, reg.RegisterCallback("cart", func(tele.Context) error { return boom }))
	err := CallbackRoute(reg, CallbackOptions{}).Handler(callbackContext(5, "\fcart"))
	assert.ErrorIs(t, err, boom)
}

type fakeFSM struct {
	active  map[int64]bool
	handled []string
}

func (f *fakeFSM) InProgress(chatID int64) bool { return f.active[chatID] }
func (f *fakeFSM) ManagerHandler(c tele.Context) error {
	f.handled = append(f.handled, c.Text())
	return nil
}

func TestTextRoutesOrder(t *testing.T) {
	reg := tg.NewRegistry()
	started := 0
	reg.RegisterCommand("/start", commands.Command{
		Handler:     func(tele.Context) error { started++; return nil },
		Description: "start",
		Aliases:     []string{"go"},
	})
	fallbacks := 0
	reg.SetTextFallback(func(tele.Context) error { fallbacks++; return nil })

	fsm := &fakeFSM{active: map[int64]bool{2: true}}
	intercepted := 0
	routes := TextRoutes(fsm, reg, TextOptions{
		Intercept: func(c tele.Context) (bool, error) {
			if c.Text() == "secret" {
				intercepted++
				return true, nil
			}
			return false, nil
		},
	})
	require.Len(t, routes, 2)
	text := routes[0].Handler

	require.NoError(t, text(textContext(2, "secret")))
	assert.Equal(t, 1, intercepted)
	assert.Empty(t, fsm.handled)

	require.NoError(t, text(textContext(2, "Іван")))
	assert.Equal(t, []string{"Іван"}, fsm.handled)

	require.NoError(t, text(textContext(3, "go")))
	assert.Equal(t, 1, started)

	require.NoError(t, text(textContext(3, "hello")))
	assert.Equal(t, 1, fallbacks)
}

func TestTextRoutesInterceptError(t *testing.T) {
	boom := errors.New("store down")
	routes := TextRoutes(nil, nil, TextOptions{
		Intercept: func(tele.Context) (bool, error) { return false, boom },
	})
	assert.ErrorIs(t, routes[0].Handler(textContext(1, "x")), boom)
}

func TestCommandRoutesAdminGate(t *testing.T) {
	reg := tg.NewRegistry()
	exported := 0
	reg.RegisterCommand("/orders", commands.Command{
		Handler:     func(tele.Context) error { exported++; return nil },
		Description: "export",
		AdminOnly:   true,
	})
	rejected := 0
	routes := CommandRoutes(reg, CommandRouteOptions{
		IsAdmin:       func(_ context.Context, chatID int64) bool { return chatID == 1 },
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
	})
	require.Len(t, routes, 1)
	assert.Equal(t, "/orders", routes[0].Endpoint)

	require.NoError(t, routes[0].Handler(textContext(1, "/orders")))
	require.NoError(t, routes[0].Handler(textContext(2, "/orders")))
	assert.Equal(t, 1, exported)
	assert.Equal(t, 1, rejected)
}

func TestCommandRoutesAliases(t *testing.T) {
	reg := tg.NewRegistry()
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     func(tele.Context) error { return nil },
		Description: "cancel",
		Aliases:     []string{"stop", "/abort"},
	})
	routes := CommandRoutes(reg, CommandRouteOptions{})
	endpoints := make([]interface{}, 0, len(routes))
	for _, r := range routes {
		endpoints = append(endpoints, r.Endpoint)
	}
	assert.ElementsMatch(t, []interface{}{"/cancel", "/stop", "/abort"}, endpoints)
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "unknown", normalizeHandlerName(" "))
	assert.Equal(t, "orders", normalizeHandlerName("/Orders"))
	assert.Equal(t, "a_b", normalizeHandlerName("a b"))
}

type stubFallbacks struct{ text, doc, cb int }

func (s *stubFallbacks) UnknownText() tele.HandlerFunc {
	return func(tele.Context) error { s.text++; return nil }
}
func (s *stubFallbacks) UnknownDocument() tele.HandlerFunc {
	return func(tele.Context) error { s.doc++; return nil }
}
func (s *stubFallbacks) UnknownCallback() tele.HandlerFunc {
	return func(tele.Context) error { s.cb++; return nil }
}

func TestWithFallbacksKeepsExplicitHandlers(t *testing.T) {
	stub := &stubFallbacks{}
	explicit := 0
	text, cb := WithFallbacks(stub, TextOptions{UnknownText: func(tele.Context) error { explicit++; return nil }}, CallbackOptions{})

	require.NoError(t, text.UnknownText(nil))
	require.NoError(t, text.UnknownDocument(nil))
	require.NoError(t, cb.NotFound(nil))
	assert.Equal(t, 1, explicit)
	assert.Equal(t, 0, stub.text)
	assert.Equal(t, 1, stub.doc)
	assert.Equal(t, 1, stub.cb)

	same, _ := WithFallbacks(nil, TextOptions{}, CallbackOptions{})
	assert.Nil(t, same.UnknownText)
}
