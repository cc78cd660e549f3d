package session

import (
	"fmt"

	"github.com/m3rciful/storebot/core/telegram/format"
	"github.com/m3rciful/storebot/shop/catalog"
	"github.com/m3rciful/storebot/shop/chat"
	"github.com/m3rciful/storebot/shop/order"
)

// Callback actions attached to buttons. The dispatch layer routes on them.
const (
	ActionCatalog  = "catalog"
	ActionCart     = "cart"
	ActionProduct  = "product"
	ActionAdd      = "add"
	ActionInc      = "inc"
	ActionDec      = "dec"
	ActionDel      = "del"
	ActionCheckout = "checkout"
	ActionPay      = "pay"
)

const (
	DefaultWelcomeText = "Вітаємо у магазині вітамінів GEN! Оберіть, що бажаєте переглянути."

	textChooseProduct  = "Оберіть товар:"
	textCartHeader     = "*Ваш кошик:*"
	textCartEmpty      = "Ваш кошик порожній."
	textAddedFmt       = "%s додано до кошику."
	textOrderPlaced    = "Ваше замовлення було оформлено!"
	textOrderCanceled  = "Оформлення замовлення скасовано."
	textAdminAccepted  = "Ви успішно зареєстровані як адміністратор."
	textBlankInput     = "Значення не може бути порожнім."
	textInvalidPhone   = "Невірний номер телефону. Вкажіть від 7 до 15 цифр."
	textProductMissing = "Товар не знайдено."

	btnShowProducts = "Показати товари"
	btnCart         = "Кошик"
	btnAddToCart    = "Додати до кошику"
	btnBack         = "Назад"
	btnCheckout     = "Оформити замовлення"
	btnInc          = "➕"
	btnDec          = "➖"
	btnDel          = "🗑"
)

var prompts = map[order.State]string{
	order.AwaitingName:          "Введіть ваше ім'я:",
	order.AwaitingSurname:       "Введіть ваше прізвище:",
	order.AwaitingPatronymic:    "Введіть ваше по батькові:",
	order.AwaitingPhone:         "Введіть ваш номер телефону:",
	order.AwaitingPaymentMethod: "Оберіть спосіб оплати:",
	order.AwaitingAddress:       "Введіть адресу доставки:",
}

func promptMessage(st order.State) chat.Message {
	msg := chat.Message{Text: prompts[st]}
	if st == order.AwaitingPaymentMethod {
		msg.Keyboard = chat.Keyboard{
			chat.Row(chat.Button{Text: order.PaymentCashOnDelivery, Action: ActionPay, Payload: order.PaymentCashOnDelivery}),
			chat.Row(chat.Button{Text: order.PaymentCard, Action: ActionPay, Payload: order.PaymentCard}),
		}
	}
	return msg
}

func welcomeKeyboard() chat.Keyboard {
	return chat.Keyboard{chat.Row(
		chat.Button{Text: btnShowProducts, Action: ActionCatalog},
		chat.Button{Text: btnCart, Action: ActionCart},
	)}
}

func catalogMessage(products []catalog.Product) chat.Message {
	kb := make(chat.Keyboard, 0, len(products)+1)
	for _, p := range products {
		kb = append(kb, chat.Row(chat.Button{Text: p.Name, Action: ActionProduct, Payload: p.Name}))
	}
	kb = append(kb, chat.Row(chat.Button{Text: btnCart, Action: ActionCart}))
	return chat.Message{Text: textChooseProduct, Keyboard: kb}
}

func productMessage(p catalog.Product) chat.Message {
	return chat.Message{
		Text: fmt.Sprintf("%s\n%s\nЦіна: %d грн.", p.Name, p.Description, p.UnitPrice),
		Keyboard: chat.Keyboard{
			chat.Row(chat.Button{Text: btnAddToCart, Action: ActionAdd, Payload: p.Name}),
			chat.Row(
				chat.Button{Text: btnBack, Action: ActionCatalog},
				chat.Button{Text: btnCart, Action: ActionCart},
			),
		},
	}
}

func headerMessage() chat.Message {
	return chat.Message{Text: textCartHeader, Markdown: true}
}

func lineMessage(name string, qty, unitPrice int) chat.Message {
	return chat.Message{
		Text: fmt.Sprintf("*%s*\nКількість: %d\nЦіна за одиницю: %d\nЦіна всього: %d",
			format.MD(name), qty, unitPrice, unitPrice*qty),
		Markdown: true,
		Keyboard: chat.Keyboard{chat.Row(
			chat.Button{Text: btnInc, Action: ActionInc, Payload: name},
			chat.Button{Text: btnDec, Action: ActionDec, Payload: name},
			chat.Button{Text: btnDel, Action: ActionDel, Payload: name},
		)},
	}
}

func totalMessage(total int) chat.Message {
	return chat.Message{
		Text:     fmt.Sprintf("*В сумі: %d грн*", total),
		Markdown: true,
		Keyboard: chat.Keyboard{chat.Row(chat.Button{Text: btnCheckout, Action: ActionCheckout})},
	}
}
