package order

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/m3rciful/storebot/shop/catalog"
)

// Line is one priced position of a finalized order.
type Line struct {
	ProductName string `json:"product_name" db:"product_name"`
	Quantity    int    `json:"quantity" db:"quantity"`
	UnitPrice   int    `json:"unit_price" db:"unit_price"`
	LineTotal   int    `json:"line_total" db:"line_total"`
}

// Order is the record handed to order sinks once the form is complete.
type Order struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	ChatID             int64     `json:"chat_id" db:"chat_id"`
	CustomerName       string    `json:"customer_name" db:"customer_name"`
	CustomerSurname    string    `json:"customer_surname" db:"customer_surname"`
	CustomerPatronymic string    `json:"customer_patronymic" db:"customer_patronymic"`
	CustomerPhone      string    `json:"customer_phone" db:"customer_phone"`
	PaymentMethod      string    `json:"payment_method" db:"payment_method"`
	DeliveryAddress    string    `json:"delivery_address" db:"delivery_address"`
	Lines              []Line    `json:"items" db:"-"`
	Total              int       `json:"total" db:"total"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// Build prices the draft snapshot against the catalog. Products missing from
// the catalog are left out of both the lines and the total.
func Build(chatID int64, d Draft, products catalog.Finder, now time.Time) Order {
	o := Order{
		ID:                 uuid.New(),
		ChatID:             chatID,
		CustomerName:       d.Name,
		CustomerSurname:    d.Surname,
		CustomerPatronymic: d.Patronymic,
		CustomerPhone:      d.Phone,
		PaymentMethod:      d.PaymentMethod,
		DeliveryAddress:    d.Address,
		CreatedAt:          now,
	}
	for _, it := range d.Items.Items() {
		p, ok := products.Find(it.Name)
		if !ok {
			continue
		}
		line := Line{
			ProductName: it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   p.UnitPrice,
			LineTotal:   p.UnitPrice * it.Quantity,
		}
		o.Lines = append(o.Lines, line)
		o.Total += line.LineTotal
	}
	return o
}

// maxNamePartBytes bounds each name component of FileName so the result
// stays well under the 255-byte file name limit of common filesystems.
const maxNamePartBytes = 64

// FileName returns the archive name `<name>_<surname>_<yyyyMMddHHmmss>.json`.
// Name and surname are cut to maxNamePartBytes on a rune boundary.
func (o Order) FileName() string {
	return fmt.Sprintf("%s_%s_%s.json",
		clipBytes(o.CustomerName, maxNamePartBytes),
		clipBytes(o.CustomerSurname, maxNamePartBytes),
		o.CreatedAt.Format("20060102150405"))
}

func clipBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// FullName joins name, surname and patronymic.
func (o Order) FullName() string {
	return fmt.Sprintf("%s %s %s", o.CustomerName, o.CustomerSurname, o.CustomerPatronymic)
}
