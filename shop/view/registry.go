// Package view tracks which chat message currently shows each part of the
// cart and decides whether a render edits that message or sends a new one.
package view

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/storebot/shop/chat"
)

// ErrRenderFailed marks a send or edit that failed for a reason other than unchanged content.
var ErrRenderFailed = errors.New("view: render failed")

// Kind is the type of a rendered cart element.
type Kind int

const (
	KindHeader Kind = iota
	KindLine
	KindTotal
)

// Slot identifies one rendered element. Product is set only for lines.
type Slot struct {
	Kind    Kind
	Product string
}

// Header is the cart title slot.
func Header() Slot { return Slot{Kind: KindHeader} }

// Line is the slot of one cart line.
func Line(product string) Slot { return Slot{Kind: KindLine, Product: product} }

// Total is the grand total slot.
func Total() Slot { return Slot{Kind: KindTotal} }

func (s Slot) String() string {
	switch s.Kind {
	case KindHeader:
		return "header"
	case KindLine:
		return "line:" + s.Product
	case KindTotal:
		return "total"
	}
	return fmt.Sprintf("slot(%d)", s.Kind)
}

// Op is what a render does with a slot.
type Op int

const (
	OpSend Op = iota
	OpEdit
)

// Action is the decision returned by RenderSlot.
type Action struct {
	Op        Op
	Slot      Slot
	MessageID int
	Content   chat.Message
}

// RenderError reports the slot whose render failed. It matches ErrRenderFailed.
type RenderError struct {
	Slot Slot
	Op   Op
	Err  error
}

func (e *RenderError) Error() string {
	op := "send"
	if e.Op == OpEdit {
		op = "edit"
	}
	return fmt.Sprintf("view: %s %s: %v", op, e.Slot, e.Err)
}

func (e *RenderError) Unwrap() []error { return []error{ErrRenderFailed, e.Err} }

// Registry maps slots to message ids for one chat. It is not safe for
// concurrent use; the owning session serializes access.
type Registry struct {
	ids   map[Slot]int
	lines []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[Slot]int)}
}

// RenderSlot returns an edit for a known slot in update mode, a send otherwise.
func (r *Registry) RenderSlot(slot Slot, content chat.Message, update bool) Action {
	if id, ok := r.ids[slot]; ok && update {
		return Action{Op: OpEdit, Slot: slot, MessageID: id, Content: content}
	}
	return Action{Op: OpSend, Slot: slot, Content: content}
}

// Record stores the message id now showing slot.
func (r *Registry) Record(slot Slot, messageID int) {
	if _, ok := r.ids[slot]; !ok && slot.Kind == KindLine {
		r.lines = append(r.lines, slot.Product)
	}
	r.ids[slot] = messageID
}

// Lookup returns the id recorded for slot.
func (r *Registry) Lookup(slot Slot) (int, bool) {
	id, ok := r.ids[slot]
	return id, ok
}

// Release forgets slot and returns the id it held.
func (r *Registry) Release(slot Slot) (int, bool) {
	id, ok := r.ids[slot]
	if !ok {
		return 0, false
	}
	delete(r.ids, slot)
	if slot.Kind == KindLine {
		for i, name := range r.lines {
			if name == slot.Product {
				r.lines = append(r.lines[:i], r.lines[i+1:]...)
				break
			}
		}
	}
	return id, true
}

// ReleaseAll forgets every slot and returns their ids: header, lines, total.
func (r *Registry) ReleaseAll() []int {
	var out []int
	if id, ok := r.Release(Header()); ok {
		out = append(out, id)
	}
	for _, name := range r.Lines() {
		if id, ok := r.Release(Line(name)); ok {
			out = append(out, id)
		}
	}
	if id, ok := r.Release(Total()); ok {
		out = append(out, id)
	}
	return out
}

// Lines returns the products with a recorded line slot in record order.
func (r *Registry) Lines() []string {
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Len returns the number of held slots.
func (r *Registry) Len() int {
	return len(r.ids)
}

// Messenger is the part of chat.Transport needed to render text slots.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, msg chat.Message) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, msg chat.Message) (chat.Outcome, error)
}

// Render executes the RenderSlot decision for slot. A successful send is
// recorded; unchanged content is reported without error. On failure the
// mapping is left as it was and the error is a *RenderError.
func (r *Registry) Render(ctx context.Context, m Messenger, chatID int64, slot Slot, content chat.Message, update bool) (chat.Outcome, error) {
	act := r.RenderSlot(slot, content, update)
	if act.Op == OpEdit {
		out, err := m.EditText(ctx, chatID, act.MessageID, act.Content)
		if err == nil && out == chat.OutcomeFailed {
			err = errors.New("edit rejected")
		}
		if err != nil {
			return chat.OutcomeFailed, &RenderError{Slot: slot, Op: OpEdit, Err: err}
		}
		return out, nil
	}

	id, err := m.SendText(ctx, chatID, act.Content)
	if err != nil {
		return chat.OutcomeFailed, &RenderError{Slot: slot, Op: OpSend, Err: err}
	}
	r.Record(slot, id)
	return chat.OutcomeSuccess, nil
}
