// Package chat defines the transport-neutral messages the store renders and
// the Transport it renders them through.
package chat

import "context"

// Button is an inline button. Action names the dispatch route; Payload is its argument.
type Button struct {
	Text    string
	Action  string
	Payload string
}

// Keyboard is a grid of inline buttons.
type Keyboard [][]Button

// Row is a convenience constructor for one keyboard row.
func Row(buttons ...Button) []Button { return buttons }

// Message is the text content of one rendered element.
type Message struct {
	Text     string
	Keyboard Keyboard
	Markdown bool
}

// Photo is an image sent from disk with an optional caption.
type Photo struct {
	Path     string
	Caption  string
	Keyboard Keyboard
}

// Document is an in-memory file attachment.
type Document struct {
	FileName string
	Data     []byte
	Caption  string
}

// Outcome is the result of an edit request.
type Outcome int

const (
	// OutcomeSuccess means the message now shows the new content.
	OutcomeSuccess Outcome = iota
	// OutcomeUnchanged means the message already showed identical content.
	OutcomeUnchanged
	// OutcomeFailed means the edit did not happen.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return "failed"
	}
}

// Transport is the outbound side of the chat platform.
type Transport interface {
	SendText(ctx context.Context, chatID int64, msg Message) (int, error)
	// EditText reports OutcomeUnchanged with a nil error when the content is identical.
	EditText(ctx context.Context, chatID int64, messageID int, msg Message) (Outcome, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendPhoto(ctx context.Context, chatID int64, photo Photo) (int, error)
	SendDocument(ctx context.Context, chatID int64, doc Document) (int, error)
}
