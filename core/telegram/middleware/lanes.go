package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/m3rciful/storebot/core/logger"
	tghelpers "github.com/m3rciful/storebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ChatLanes runs handlers of one chat strictly in arrival order while
// different chats proceed concurrently. The bot must deliver updates
// synchronously (tele.Settings.Synchronous) so enqueue order is arrival order.
type ChatLanes struct {
	mu      sync.Mutex
	lanes   map[int64]*lane
	pending sync.WaitGroup
	onError func(error, tele.Context)
}

type lane struct {
	jobs []func()
}

// NewChatLanes builds lanes; onError receives errors returned by handlers.
func NewChatLanes(onError func(error, tele.Context)) *ChatLanes {
	return &ChatLanes{lanes: make(map[int64]*lane), onError: onError}
}

// Middleware queues the rest of the chain on the update's chat lane and
// returns immediately.
func (l *ChatLanes) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		key := tghelpers.ChatID(c)
		if key == 0 {
			key = tghelpers.SenderID(c)
		}
		l.enqueue(key, func() {
			if err := l.run(next, c); err != nil && l.onError != nil {
				l.onError(err, c)
			}
		})
		return nil
	}
}

func (l *ChatLanes) run(next tele.HandlerFunc, c tele.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelError, "tg.panic",
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("telegram: handler panic: %v", r)
		}
	}()
	return next(c)
}

func (l *ChatLanes) enqueue(key int64, job func()) {
	l.pending.Add(1)
	l.mu.Lock()
	ln, busy := l.lanes[key]
	if !busy {
		ln = &lane{}
		l.lanes[key] = ln
	}
	ln.jobs = append(ln.jobs, job)
	l.mu.Unlock()
	if !busy {
		go l.drain(key, ln)
	}
}

// drain owns ln until its queue is empty; the lane is then forgotten.
func (l *ChatLanes) drain(key int64, ln *lane) {
	for {
		l.mu.Lock()
		if len(ln.jobs) == 0 {
			delete(l.lanes, key)
			l.mu.Unlock()
			return
		}
		job := ln.jobs[0]
		ln.jobs = ln.jobs[1:]
		l.mu.Unlock()

		job()
		l.pending.Done()
	}
}

// Active reports how many chats have queued or running handlers.
func (l *ChatLanes) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}

// Wait blocks until every queued handler has finished or ctx is done.
func (l *ChatLanes) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
