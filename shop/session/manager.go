// Package session orchestrates per-chat carts, order forms and cart views.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/shop/cart"
	"github.com/m3rciful/storebot/shop/catalog"
	"github.com/m3rciful/storebot/shop/chat"
	"github.com/m3rciful/storebot/shop/order"
	"github.com/m3rciful/storebot/shop/view"
)

var (
	// ErrEmptyCart is returned when checkout is attempted with nothing in the cart.
	ErrEmptyCart = errors.New("session: cart is empty")
	// ErrDraftAlreadyPending is returned when an order form is already open for the chat.
	ErrDraftAlreadyPending = errors.New("session: order draft already pending")
)

// OrderSink receives finalized orders.
type OrderSink interface {
	RecordOrder(ctx context.Context, o order.Order) error
}

// Admins is the part of the settings store the manager consults.
type Admins interface {
	IsAdminSecret(ctx context.Context, text string) (bool, error)
	RegisterAdmin(ctx context.Context, chatID int64) (bool, error)
	AdminChatIDs(ctx context.Context) ([]int64, error)
}

// Options wires a Manager.
type Options struct {
	Catalog   catalog.Catalog
	Transport chat.Transport
	Admins    Admins
	Sink      OrderSink
	// WelcomePhoto is sent before the welcome text when the file exists.
	WelcomePhoto string
	WelcomeText  string
	Now          func() time.Time
}

// Manager exposes one operation per user intent. Operations on the same
// chat run one at a time; different chats proceed in parallel.
type Manager struct {
	catalog   catalog.Catalog
	transport chat.Transport
	admins    Admins
	sink      OrderSink
	welcome   string
	photo     string
	now       func() time.Time
	sessions  *Registry
}

// NewManager builds a manager with an empty session registry.
func NewManager(opts Options) *Manager {
	m := &Manager{
		catalog:   opts.Catalog,
		transport: opts.Transport,
		admins:    opts.Admins,
		sink:      opts.Sink,
		welcome:   opts.WelcomeText,
		photo:     opts.WelcomePhoto,
		now:       opts.Now,
		sessions:  NewRegistry(),
	}
	if m.catalog == nil {
		m.catalog = catalog.Default()
	}
	if m.welcome == "" {
		m.welcome = DefaultWelcomeText
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Sessions exposes the registry, mainly for diagnostics.
func (m *Manager) Sessions() *Registry { return m.sessions }

func (m *Manager) lock(chatID int64) *Session {
	s := m.sessions.Get(chatID)
	s.mu.Lock()
	return s
}

// Start greets the chat with the optional photo and the main menu.
func (m *Manager) Start(ctx context.Context, chatID int64) error {
	s := m.lock(chatID)
	defer s.mu.Unlock()

	m.sendPhotoIfPresent(ctx, chatID, m.photo, "")
	_, err := m.transport.SendText(ctx, chatID, chat.Message{Text: m.welcome, Keyboard: welcomeKeyboard()})
	m.log(ctx, chatID, "session.start", err)
	return err
}

// ShowCatalog sends the product menu.
func (m *Manager) ShowCatalog(ctx context.Context, chatID int64) error {
	_, err := m.transport.SendText(ctx, chatID, catalogMessage(m.catalog.List()))
	m.log(ctx, chatID, "catalog.show", err)
	return err
}

// ShowProductDetail sends the product photo, when available, and its card.
func (m *Manager) ShowProductDetail(ctx context.Context, chatID int64, name string) error {
	p, ok := m.catalog.Find(name)
	if !ok {
		_, _ = m.transport.SendText(ctx, chatID, chat.Message{Text: textProductMissing})
		m.log(ctx, chatID, "catalog.product", cart.ErrUnknownProduct, slog.String("product", logger.Sanitize(name)))
		return cart.ErrUnknownProduct
	}
	m.sendPhotoIfPresent(ctx, chatID, p.ImagePath, "")
	_, err := m.transport.SendText(ctx, chatID, productMessage(p))
	m.log(ctx, chatID, "catalog.product", err, slog.String("product", p.Name))
	return err
}

// AddToCart adds one unit, confirms it and refreshes the cart view in place.
func (m *Manager) AddToCart(ctx context.Context, chatID int64, name string) error {
	s := m.lock(chatID)
	defer s.mu.Unlock()

	qty, err := s.cart.Add(m.catalog, name)
	m.log(ctx, chatID, "cart.add", err, slog.String("product", logger.Sanitize(name)), slog.Int("quantity", qty))
	if err != nil {
		return err
	}
	if _, err := m.transport.SendText(ctx, chatID, chat.Message{Text: fmt.Sprintf(textAddedFmt, name)}); err != nil {
		return fmt.Errorf("session: confirm add: %w", err)
	}
	return m.render(ctx, s, true)
}

// IncrementLine adds one unit to an existing line.
func (m *Manager) IncrementLine(ctx context.Context, chatID int64, name string) error {
	return m.adjust(ctx, chatID, name, 1, "cart.inc")
}

// DecrementLine removes one unit, dropping the line at zero.
func (m *Manager) DecrementLine(ctx context.Context, chatID int64, name string) error {
	return m.adjust(ctx, chatID, name, -1, "cart.dec")
}

func (m *Manager) adjust(ctx context.Context, chatID int64, name string, delta int, event string) error {
	s := m.lock(chatID)
	defer s.mu.Unlock()

	qty, err := s.cart.Adjust(name, delta)
	m.log(ctx, chatID, event, err, slog.String("product", logger.Sanitize(name)), slog.Int("quantity", qty))
	if err != nil {
		return err
	}
	return m.render(ctx, s, true)
}

// RemoveLine drops the line. Removing an absent line reports ErrNotInCart.
func (m *Manager) RemoveLine(ctx context.Context, chatID int64, name string) error {
	s := m.lock(chatID)
	defer s.mu.Unlock()

	var err error
	if !s.cart.Remove(name) {
		err = cart.ErrNotInCart
	}
	m.log(ctx, chatID, "cart.remove", err, slog.String("product", logger.Sanitize(name)))
	if err != nil {
		return err
	}
	return m.render(ctx, s, true)
}

// RenderCart draws the cart. In update mode known slots are edited in place.
func (m *Manager) RenderCart(ctx context.Context, chatID int64, update bool) error {
	s := m.lock(chatID)
	defer s.mu.Unlock()
	return m.render(ctx, s, update)
}

// RedrawCart deletes every cart message the chat still holds and renders the
// cart from scratch. It recovers a view whose in-place edits keep failing.
func (m *Manager) RedrawCart(ctx context.Context, chatID int64) error {
	s := m.lock(chatID)
	defer s.mu.Unlock()
	var stats renderStats
	for _, id := range s.views.ReleaseAll() {
		m.deleteMessage(ctx, s.chatID, id, &stats)
	}
	m.log(ctx, chatID, "cart.redraw", nil, slog.Int("deleted", stats.deleted))
	return m.render(ctx, s, false)
}

// render must be called with s.mu held. It stops at the first failed slot.
func (m *Manager) render(ctx context.Context, s *Session, update bool) (err error) {
	var stats renderStats
	defer func() {
		m.log(ctx, s.chatID, "cart.render", err,
			slog.Bool("update", update),
			slog.Int("lines", s.cart.Len()),
			slog.Int("sent", stats.sent),
			slog.Int("edited", stats.edited),
			slog.Int("unchanged", stats.unchanged),
			slog.Int("deleted", stats.deleted),
		)
	}()

	if s.cart.IsEmpty() {
		for _, id := range s.views.ReleaseAll() {
			m.deleteMessage(ctx, s.chatID, id, &stats)
		}
		_, err = m.transport.SendText(ctx, s.chatID, chat.Message{Text: textCartEmpty})
		return err
	}

	items := s.cart.Items()
	for _, name := range s.views.Lines() {
		if s.cart.Quantity(name) > 0 {
			continue
		}
		if id, ok := s.views.Release(view.Line(name)); ok {
			m.deleteMessage(ctx, s.chatID, id, &stats)
		}
	}

	if err = m.renderSlot(ctx, s, view.Header(), headerMessage(), update, &stats); err != nil {
		return err
	}
	lineSent := false
	for _, it := range items {
		p, ok := m.catalog.Find(it.Name)
		if !ok {
			continue
		}
		_, held := s.views.Lookup(view.Line(it.Name))
		if err = m.renderSlot(ctx, s, view.Line(it.Name), lineMessage(it.Name, it.Quantity, p.UnitPrice), update, &stats); err != nil {
			return err
		}
		lineSent = lineSent || !held || !update
	}

	// A line sent below the total would leave the total above it.
	if update && lineSent {
		if id, ok := s.views.Release(view.Total()); ok {
			m.deleteMessage(ctx, s.chatID, id, &stats)
		}
	}
	return m.renderSlot(ctx, s, view.Total(), totalMessage(s.cart.Total(m.catalog)), update, &stats)
}

type renderStats struct {
	sent, edited, unchanged, deleted int
}

func (m *Manager) renderSlot(ctx context.Context, s *Session, slot view.Slot, content chat.Message, update bool, st *renderStats) error {
	act := s.views.RenderSlot(slot, content, update)
	out, err := s.views.Render(ctx, m.transport, s.chatID, slot, content, update)
	if err != nil {
		return err
	}
	switch {
	case act.Op == view.OpSend:
		st.sent++
	case out == chat.OutcomeUnchanged:
		st.unchanged++
	default:
		st.edited++
	}
	return nil
}

func (m *Manager) deleteMessage(ctx context.Context, chatID int64, messageID int, st *renderStats) {
	if err := m.transport.DeleteMessage(ctx, chatID, messageID); err != nil {
		logger.LogEvent(ctx, logger.Shop, slog.LevelWarn, "view.delete",
			slog.Int64("chat_id", chatID),
			slog.Int("message_id", messageID),
			logger.ErrAttr(err),
		)
		return
	}
	st.deleted++
}

// BeginOrder opens the order form over a snapshot of the cart. When a form
// is already open its current prompt is repeated.
func (m *Manager) BeginOrder(ctx context.Context, chatID int64) error {
	s := m.lock(chatID)
	defer s.mu.Unlock()

	var err error
	switch {
	case s.draft != nil:
		err = ErrDraftAlreadyPending
		_, _ = m.transport.SendText(ctx, chatID, promptMessage(s.draft.State()))
	case s.cart.IsEmpty():
		err = ErrEmptyCart
		_, _ = m.transport.SendText(ctx, chatID, chat.Message{Text: textCartEmpty})
	default:
		s.draft = order.NewCollector(s.cart.Snapshot())
	}
	m.log(ctx, chatID, "order.begin", err, slog.Int("lines", s.cart.Len()))
	if err != nil {
		return err
	}
	_, err = m.transport.SendText(ctx, chatID, promptMessage(order.AwaitingName))
	return err
}

// HasPendingOrder reports whether free text for chatID belongs to an order form.
func (m *Manager) HasPendingOrder(chatID int64) bool {
	s, ok := m.sessions.Lookup(chatID)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft != nil
}

// SubmitOrderText fills the next order field. The finalized order is
// returned once the delivery address arrives.
func (m *Manager) SubmitOrderText(ctx context.Context, chatID int64, text string) (*order.Order, error) {
	s := m.lock(chatID)
	defer s.mu.Unlock()

	if s.draft == nil {
		return nil, order.ErrNoDraft
	}
	prev := s.draft.State()
	st, err := s.draft.Submit(text)
	m.log(ctx, chatID, "order.field", err, slog.String("field", string(prev)), slog.String("next", string(st)))
	if err != nil {
		m.reprompt(ctx, s, err)
		return nil, err
	}
	return m.advance(ctx, s, st)
}

// SubmitPaymentSelection records a payment method chosen from the keyboard.
func (m *Manager) SubmitPaymentSelection(ctx context.Context, chatID int64, method string) (*order.Order, error) {
	s := m.lock(chatID)
	defer s.mu.Unlock()

	if s.draft == nil {
		return nil, order.ErrNoDraft
	}
	st, err := s.draft.SelectPayment(method)
	m.log(ctx, chatID, "order.payment", err, slog.String("method", logger.Sanitize(method)), slog.String("next", string(st)))
	if err != nil {
		m.reprompt(ctx, s, err)
		return nil, err
	}
	return m.advance(ctx, s, st)
}

func (m *Manager) advance(ctx context.Context, s *Session, st order.State) (*order.Order, error) {
	if st != order.Finalized {
		_, err := m.transport.SendText(ctx, s.chatID, promptMessage(st))
		return nil, err
	}
	o := m.finalize(ctx, s)
	return &o, nil
}

func (m *Manager) reprompt(ctx context.Context, s *Session, cause error) {
	hint := textBlankInput
	if errors.Is(cause, order.ErrInvalidPhone) {
		hint = textInvalidPhone
	}
	msg := promptMessage(s.draft.State())
	msg.Text = hint + "\n" + msg.Text
	_, _ = m.transport.SendText(ctx, s.chatID, msg)
}

// finalize must be called with s.mu held and a finalized draft.
func (m *Manager) finalize(ctx context.Context, s *Session) order.Order {
	o := order.Build(s.chatID, s.draft.Draft(), m.catalog, m.now())
	s.draft = nil
	s.cart.Clear()
	// The old cart messages stay in the chat as a record; they are no longer tracked.
	s.views.ReleaseAll()

	logger.LogEvent(ctx, logger.Shop, slog.LevelInfo, "order.finalized",
		slog.Int64("chat_id", s.chatID),
		slog.String("order_id", o.ID.String()),
		slog.Int("lines", len(o.Lines)),
		slog.Int("total", o.Total),
	)
	if m.sink != nil {
		if err := m.sink.RecordOrder(ctx, o); err != nil {
			logger.LogEvent(ctx, logger.Shop, slog.LevelError, "order.sink",
				slog.String("order_id", o.ID.String()),
				logger.ErrAttr(err),
			)
		}
	}
	if _, err := m.transport.SendText(ctx, s.chatID, chat.Message{Text: textOrderPlaced}); err != nil {
		m.log(ctx, s.chatID, "order.confirm", err)
	}
	return o
}

// CancelOrder drops an open order form. The cart is kept.
func (m *Manager) CancelOrder(ctx context.Context, chatID int64) error {
	s := m.lock(chatID)
	defer s.mu.Unlock()

	if s.draft == nil {
		return order.ErrNoDraft
	}
	s.draft = nil
	m.log(ctx, chatID, "order.cancel", nil)
	_, err := m.transport.SendText(ctx, chatID, chat.Message{Text: textOrderCanceled})
	return err
}

// ClaimAdmin registers chatID as admin when text is the secret word.
// It reports whether text was the secret.
func (m *Manager) ClaimAdmin(ctx context.Context, chatID int64, text string) (bool, error) {
	if m.admins == nil {
		return false, nil
	}
	ok, err := m.admins.IsAdminSecret(ctx, text)
	if err != nil || !ok {
		return false, err
	}
	if _, err := m.admins.RegisterAdmin(ctx, chatID); err != nil {
		return true, err
	}
	_, err = m.transport.SendText(ctx, chatID, chat.Message{Text: textAdminAccepted})
	return true, err
}

// IsAdmin reports whether chatID is a registered or configured admin.
func (m *Manager) IsAdmin(ctx context.Context, chatID int64) bool {
	if m.admins == nil {
		return false
	}
	ids, err := m.admins.AdminChatIDs(ctx)
	if err != nil {
		m.log(ctx, chatID, "admin.lookup", err)
		return false
	}
	return slices.Contains(ids, chatID)
}

func (m *Manager) sendPhotoIfPresent(ctx context.Context, chatID int64, path, caption string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		logger.LogEvent(ctx, logger.Shop, slog.LevelDebug, "photo.skip",
			slog.String("path", path),
			logger.ErrAttr(err),
		)
		return
	}
	if _, err := m.transport.SendPhoto(ctx, chatID, chat.Photo{Path: path, Caption: caption}); err != nil {
		m.log(ctx, chatID, "photo.send", err, slog.String("path", path))
	}
}

func (m *Manager) log(ctx context.Context, chatID int64, event string, err error, attrs ...slog.Attr) {
	level := slog.LevelInfo
	base := []slog.Attr{
		slog.Int64("chat_id", chatID),
		slog.String("status", logger.Status(err)),
	}
	if err != nil {
		level = slog.LevelWarn
		base = append(base, logger.ErrAttr(err))
	}
	logger.LogEvent(ctx, logger.Shop, level, event, append(base, attrs...)...)
}
