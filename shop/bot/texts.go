package bot

const (
	textUseStart           = "Не зрозумів повідомлення. Натисніть /start, щоб відкрити меню."
	textUnexpectedDocument = "Файли не потрібні. Натисніть /start, щоб відкрити меню."
	textUnsupportedAction  = "Ця кнопка більше не діє. Натисніть /start."
	textSlowDown           = "Зачекайте трохи..."
	textNothingToCancel    = "Немає замовлення, яке можна скасувати."
	textNoPendingOrder     = "Немає активного замовлення. Відкрийте кошик, щоб оформити нове."
	textProductGone        = "Товар не знайдено."
	textAdminOnly          = "Команда доступна лише адміністраторам."
	textExportDisabled     = "Збереження замовлень у базі даних вимкнено."
	textNoOrders           = "Замовлень поки немає."
	textExportCaptionFmt   = "Замовлень: %d"
)
