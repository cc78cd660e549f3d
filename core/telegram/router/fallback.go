package router

import tele "gopkg.in/telebot.v4"

// Fallbacks answers updates that no command, callback or conversation claimed.
type Fallbacks interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// WithFallbacks fills the unset fallback handlers of text and callback options from f.
func WithFallbacks(f Fallbacks, text TextOptions, cb CallbackOptions) (TextOptions, CallbackOptions) {
	if f == nil {
		return text, cb
	}
	if text.UnknownText == nil {
		text.UnknownText = f.UnknownText()
	}
	if text.UnknownDocument == nil {
		text.UnknownDocument = f.UnknownDocument()
	}
	if cb.NotFound == nil {
		cb.NotFound = f.UnknownCallback()
	}
	return text, cb
}
