// Package order implements the sequential customer-details form and the
// finalized order record produced from it.
package order

import (
	"errors"
	"strings"
	"unicode"

	"github.com/m3rciful/storebot/shop/cart"
)

// State is the collector position in the field sequence.
type State string

const (
	AwaitingName          State = "awaiting_name"
	AwaitingSurname       State = "awaiting_surname"
	AwaitingPatronymic    State = "awaiting_patronymic"
	AwaitingPhone         State = "awaiting_phone"
	AwaitingPaymentMethod State = "awaiting_payment_method"
	AwaitingAddress       State = "awaiting_address"
	Finalized             State = "finalized"
)

// Payment methods offered on the payment keyboard. Free text is accepted too.
const (
	PaymentCashOnDelivery = "Накладений платіж"
	PaymentCard           = "Оплата на карту"
)

var (
	// ErrBlankFieldInput is returned for empty or whitespace-only input.
	ErrBlankFieldInput = errors.New("order: blank field input")
	// ErrInvalidPhone is returned when the phone text does not hold 7 to 15 digits.
	ErrInvalidPhone = errors.New("order: invalid phone number")
	// ErrFinalized is returned by a collector that already produced its draft.
	ErrFinalized = errors.New("order: draft already finalized")
	// ErrNoDraft is returned when no order is being collected for the chat.
	ErrNoDraft = errors.New("order: no pending draft")
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// Draft is the customer data collected so far plus the cart captured at order start.
type Draft struct {
	Name          string
	Surname       string
	Patronymic    string
	Phone         string
	PaymentMethod string
	Address       string
	Items         cart.Snapshot
}

// Collector walks the fields name, surname, patronymic, phone, payment
// method and address in that order. The payment method may also be set
// out of sequence by SelectPayment; text input then skips that field.
type Collector struct {
	state State
	draft Draft
}

// NewCollector starts a draft over an already captured cart snapshot.
func NewCollector(items cart.Snapshot) *Collector {
	return &Collector{state: AwaitingName, draft: Draft{Items: items}}
}

// State returns the current position.
func (c *Collector) State() State { return c.state }

// Draft returns a copy of the collected values.
func (c *Collector) Draft() Draft { return c.draft }

// Submit applies text to the first unset field and returns the new state.
// On error the state does not change.
func (c *Collector) Submit(text string) (State, error) {
	if c.state == Finalized {
		return c.state, ErrFinalized
	}
	value := strings.TrimSpace(text)
	if value == "" {
		return c.state, ErrBlankFieldInput
	}

	switch c.state {
	case AwaitingName:
		c.draft.Name = value
	case AwaitingSurname:
		c.draft.Surname = value
	case AwaitingPatronymic:
		c.draft.Patronymic = value
	case AwaitingPhone:
		if !validPhone(value) {
			return c.state, ErrInvalidPhone
		}
		c.draft.Phone = value
	case AwaitingPaymentMethod:
		c.draft.PaymentMethod = value
	case AwaitingAddress:
		c.draft.Address = value
	}
	c.state = c.next()
	return c.state, nil
}

// SelectPayment records a structured payment choice. It is accepted in any
// pending state; a later choice replaces an earlier one.
func (c *Collector) SelectPayment(method string) (State, error) {
	if c.state == Finalized {
		return c.state, ErrFinalized
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return c.state, ErrBlankFieldInput
	}
	c.draft.PaymentMethod = method
	if c.state == AwaitingPaymentMethod {
		c.state = AwaitingAddress
	}
	return c.state, nil
}

func (c *Collector) next() State {
	d := c.draft
	switch {
	case d.Name == "":
		return AwaitingName
	case d.Surname == "":
		return AwaitingSurname
	case d.Patronymic == "":
		return AwaitingPatronymic
	case d.Phone == "":
		return AwaitingPhone
	case d.PaymentMethod == "":
		return AwaitingPaymentMethod
	case d.Address == "":
		return AwaitingAddress
	default:
		return Finalized
	}
}

func validPhone(s string) bool {
	digits := 0
	for i, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= minPhoneDigits && digits <= maxPhoneDigits
}
