// Package bot classifies Telegram updates and routes them to the shop session manager.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/storebot/core/logger"
	tg "github.com/m3rciful/storebot/core/telegram"
	"github.com/m3rciful/storebot/core/telegram/callbacks"
	"github.com/m3rciful/storebot/core/telegram/commands"
	tghelpers "github.com/m3rciful/storebot/core/telegram/helpers"
	"github.com/m3rciful/storebot/core/telegram/router"
	"github.com/m3rciful/storebot/shop/cart"
	"github.com/m3rciful/storebot/shop/chat"
	"github.com/m3rciful/storebot/shop/order"
	"github.com/m3rciful/storebot/shop/orders"
	"github.com/m3rciful/storebot/shop/session"
	"github.com/m3rciful/storebot/shop/view"

	tele "gopkg.in/telebot.v4"
)

const defaultExportLimit = 500

// Shop is the set of session operations the dispatch layer drives.
type Shop interface {
	Start(ctx context.Context, chatID int64) error
	ShowCatalog(ctx context.Context, chatID int64) error
	ShowProductDetail(ctx context.Context, chatID int64, name string) error
	AddToCart(ctx context.Context, chatID int64, name string) error
	IncrementLine(ctx context.Context, chatID int64, name string) error
	DecrementLine(ctx context.Context, chatID int64, name string) error
	RemoveLine(ctx context.Context, chatID int64, name string) error
	RenderCart(ctx context.Context, chatID int64, update bool) error
	RedrawCart(ctx context.Context, chatID int64) error
	BeginOrder(ctx context.Context, chatID int64) error
	HasPendingOrder(chatID int64) bool
	SubmitOrderText(ctx context.Context, chatID int64, text string) (*order.Order, error)
	SubmitPaymentSelection(ctx context.Context, chatID int64, method string) (*order.Order, error)
	CancelOrder(ctx context.Context, chatID int64) error
	ClaimAdmin(ctx context.Context, chatID int64, text string) (bool, error)
	IsAdmin(ctx context.Context, chatID int64) bool
}

// OrderLister reads stored orders for the admin export.
type OrderLister interface {
	List(ctx context.Context, limit int) ([]order.Order, error)
}

// Options wires Handlers. Orders may be nil when no database is configured.
type Options struct {
	Shop        Shop
	Transport   chat.Transport
	Orders      OrderLister
	ExportLimit int
	Now         func() time.Time
}

// Handlers holds the update handlers of the shop bot.
type Handlers struct {
	shop        Shop
	transport   chat.Transport
	orders      OrderLister
	exportLimit int
	now         func() time.Time
}

var (
	_ router.Fallbacks = (*Handlers)(nil)
	_ router.FSM       = (*Handlers)(nil)
)

// New builds the handlers.
func New(opts Options) *Handlers {
	h := &Handlers{
		shop:        opts.Shop,
		transport:   opts.Transport,
		orders:      opts.Orders,
		exportLimit: opts.ExportLimit,
		now:         opts.Now,
	}
	if h.exportLimit <= 0 {
		h.exportLimit = defaultExportLimit
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Register adds the shop commands and callbacks to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	reg.RegisterCommand("/start", commands.Command{Handler: h.start, Description: "Відкрити меню магазину"})
	reg.RegisterCommand("/cancel", commands.Command{Handler: h.cancel, Description: "Скасувати оформлення замовлення"})
	reg.RegisterCommand("/orders", commands.Command{Handler: h.exportOrders, Description: "Вивантажити замовлення", AdminOnly: true})

	cbs := map[string]tele.HandlerFunc{
		session.ActionCatalog:  h.showCatalog,
		session.ActionCart:     h.showCart,
		session.ActionProduct:  h.showProduct,
		session.ActionAdd:      h.addToCart,
		session.ActionInc:      h.lineHandler(Shop.IncrementLine),
		session.ActionDec:      h.lineHandler(Shop.DecrementLine),
		session.ActionDel:      h.lineHandler(Shop.RemoveLine),
		session.ActionCheckout: h.checkout,
		session.ActionPay:      h.selectPayment,
	}
	var errs []error
	for key, fn := range cbs {
		if err := reg.RegisterCallback(key, fn); err != nil {
			errs = append(errs, err)
		}
	}
	reg.SetCallbackNotFound(h.UnknownCallback())
	return errors.Join(errs...)
}

// Routes builds every telebot route for the registered handlers.
func (h *Handlers) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		IsAdmin:       h.shop.IsAdmin,
		OnAdminReject: h.adminRejected,
	})
	textOpts, cbOpts := router.WithFallbacks(h, router.TextOptions{Intercept: h.claimAdmin}, router.CallbackOptions{})
	routes = append(routes, router.CallbackRoute(reg, cbOpts))
	routes = append(routes, router.TextRoutes(h, reg, textOpts)...)
	return routes
}

// InProgress reports whether free text from chatID fills an order form.
func (h *Handlers) InProgress(chatID int64) bool {
	return h.shop.HasPendingOrder(chatID)
}

// ManagerHandler feeds free text into the open order form.
func (h *Handlers) ManagerHandler(c tele.Context) error {
	ctx, chatID := tghelpers.BuildContext(c), tghelpers.ChatID(c)
	_, err := h.shop.SubmitOrderText(ctx, chatID, c.Text())
	return h.orderError(ctx, chatID, err)
}

// UnknownText answers text that no route claimed.
func (h *Handlers) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return h.reply(c, textUseStart)
	}
}

// UnknownDocument answers files, which the shop never expects.
func (h *Handlers) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return h.reply(c, textUnexpectedDocument)
	}
}

// UnknownCallback answers buttons whose action is no longer known.
func (h *Handlers) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return h.reply(c, textUnsupportedAction)
	}
}

// Limited answers updates dropped by the rate limiter.
func Limited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: textSlowDown})
	}
	return nil
}

func (h *Handlers) start(c tele.Context) error {
	return h.shop.Start(tghelpers.BuildContext(c), tghelpers.ChatID(c))
}

func (h *Handlers) cancel(c tele.Context) error {
	ctx, chatID := tghelpers.BuildContext(c), tghelpers.ChatID(c)
	err := h.shop.CancelOrder(ctx, chatID)
	if errors.Is(err, order.ErrNoDraft) {
		return h.reply(c, textNothingToCancel)
	}
	return err
}

func (h *Handlers) claimAdmin(c tele.Context) (bool, error) {
	return h.shop.ClaimAdmin(tghelpers.BuildContext(c), tghelpers.ChatID(c), c.Text())
}

func (h *Handlers) adminRejected(c tele.Context) error {
	return h.reply(c, textAdminOnly)
}

func (h *Handlers) showCatalog(c tele.Context) error {
	return h.shop.ShowCatalog(tghelpers.BuildContext(c), tghelpers.ChatID(c))
}

func (h *Handlers) showCart(c tele.Context) error {
	return h.shop.RenderCart(tghelpers.BuildContext(c), tghelpers.ChatID(c), false)
}

func (h *Handlers) showProduct(c tele.Context) error {
	ctx, chatID := tghelpers.BuildContext(c), tghelpers.ChatID(c)
	err := h.shop.ShowProductDetail(ctx, chatID, callbacks.CallbackPayload(c))
	if errors.Is(err, cart.ErrUnknownProduct) {
		// the catalog changed since the menu was sent
		return h.shop.ShowCatalog(ctx, chatID)
	}
	return err
}

func (h *Handlers) addToCart(c tele.Context) error {
	ctx, chatID := tghelpers.BuildContext(c), tghelpers.ChatID(c)
	err := h.shop.AddToCart(ctx, chatID, callbacks.CallbackPayload(c))
	if errors.Is(err, cart.ErrUnknownProduct) {
		if err := h.reply(c, textProductGone); err != nil {
			return err
		}
		return h.shop.ShowCatalog(ctx, chatID)
	}
	return h.renderError(ctx, chatID, err)
}

// lineHandler adapts a cart line operation to a button press.
func (h *Handlers) lineHandler(op func(Shop, context.Context, int64, string) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, chatID := tghelpers.BuildContext(c), tghelpers.ChatID(c)
		err := op(h.shop, ctx, chatID, callbacks.CallbackPayload(c))
		if errors.Is(err, cart.ErrNotInCart) {
			// a stale button of a line already gone: redraw what the cart really holds
			return h.renderError(ctx, chatID, h.shop.RenderCart(ctx, chatID, true))
		}
		return h.renderError(ctx, chatID, err)
	}
}

// renderError retries a failed in-place render once, replacing the cart
// messages with fresh ones.
func (h *Handlers) renderError(ctx context.Context, chatID int64, err error) error {
	var rerr *view.RenderError
	if !errors.As(err, &rerr) {
		return err
	}
	logger.LogEvent(ctx, logger.Shop, slog.LevelWarn, "cart.render_retry",
		slog.Int64("chat_id", chatID),
		slog.String("slot", rerr.Slot.String()),
		logger.ErrAttr(err),
	)
	return h.shop.RedrawCart(ctx, chatID)
}

func (h *Handlers) checkout(c tele.Context) error {
	err := h.shop.BeginOrder(tghelpers.BuildContext(c), tghelpers.ChatID(c))
	if errors.Is(err, session.ErrEmptyCart) || errors.Is(err, session.ErrDraftAlreadyPending) {
		// the user already got the empty notice or the current prompt
		return nil
	}
	return err
}

func (h *Handlers) selectPayment(c tele.Context) error {
	ctx, chatID := tghelpers.BuildContext(c), tghelpers.ChatID(c)
	_, err := h.shop.SubmitPaymentSelection(ctx, chatID, callbacks.CallbackPayload(c))
	if errors.Is(err, order.ErrNoDraft) {
		return h.reply(c, textNoPendingOrder)
	}
	return h.orderError(ctx, chatID, err)
}

// orderError swallows input errors the manager already answered with a prompt.
func (h *Handlers) orderError(ctx context.Context, chatID int64, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, order.ErrBlankFieldInput), errors.Is(err, order.ErrInvalidPhone):
		logger.LogEvent(ctx, logger.Shop, slog.LevelDebug, "order.reprompt",
			slog.Int64("chat_id", chatID),
			slog.String("reason", err.Error()),
		)
		return nil
	default:
		return err
	}
}

func (h *Handlers) exportOrders(c tele.Context) error {
	ctx, chatID := tghelpers.BuildContext(c), tghelpers.ChatID(c)
	if h.orders == nil {
		return h.reply(c, textExportDisabled)
	}
	list, err := h.orders.List(ctx, h.exportLimit)
	if err != nil {
		return fmt.Errorf("bot: list orders: %w", err)
	}
	if len(list) == 0 {
		return h.reply(c, textNoOrders)
	}
	data, err := orders.ExportXLSX(list)
	if err != nil {
		return fmt.Errorf("bot: export orders: %w", err)
	}
	_, err = h.transport.SendDocument(ctx, chatID, chat.Document{
		FileName: "orders_" + h.now().Format("20060102_150405") + ".xlsx",
		Data:     data,
		Caption:  fmt.Sprintf(textExportCaptionFmt, len(list)),
	})
	logger.LogEvent(ctx, logger.Orders, slog.LevelInfo, "orders.export",
		slog.Int64("chat_id", chatID),
		slog.Int("orders", len(list)),
		slog.Int("bytes", len(data)),
		slog.String("status", logger.Status(err)),
	)
	return err
}

func (h *Handlers) reply(c tele.Context, text string) error {
	_, err := h.transport.SendText(tghelpers.BuildContext(c), tghelpers.ChatID(c), chat.Message{Text: text})
	return err
}
