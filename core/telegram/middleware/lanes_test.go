package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestChatLanesKeepArrivalOrderPerChat(t *testing.T) {
	lanes := NewChatLanes(nil)
	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	h := lanes.Middleware(func(c tele.Context) error {
		id := c.Update().ID
		if id%10 == 0 {
			// the first update of each chat is the slowest
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		got[c.Chat().ID] = append(got[c.Chat().ID], id)
		mu.Unlock()
		return nil
	})

	for i := 0; i < 5; i++ {
		for _, chat := range []int64{1, 2} {
			require.NoError(t, h(newFakeContext(int(chat)*10+i, chat)))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, lanes.Wait(ctx))

	assert.Equal(t, []int{10, 11, 12, 13, 14}, got[1])
	assert.Equal(t, []int{20, 21, 22, 23, 24}, got[2])
	assert.Equal(t, 0, lanes.Active())
}

func TestChatLanesRunChatsConcurrently(t *testing.T) {
	lanes := NewChatLanes(nil)
	release := make(chan struct{})
	second := make(chan struct{})
	h := lanes.Middleware(func(c tele.Context) error {
		if c.Chat().ID == 1 {
			<-release
			return nil
		}
		close(second)
		return nil
	})

	require.NoError(t, h(newFakeContext(1, 1)))
	require.NoError(t, h(newFakeContext(2, 2)))
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("chat 2 waited for chat 1")
	}
	close(release)
	require.NoError(t, lanes.Wait(context.Background()))
}

func TestChatLanesReportErrorsAndPanics(t *testing.T) {
	var (
		mu   sync.Mutex
		errs []error
	)
	lanes := NewChatLanes(func(err error, _ tele.Context) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})
	boom := errors.New("boom")
	h := lanes.Middleware(func(c tele.Context) error {
		if c.Update().ID == 1 {
			return boom
		}
		panic("kaboom")
	})

	require.NoError(t, h(newFakeContext(1, 9)))
	require.NoError(t, h(newFakeContext(2, 9)))
	require.NoError(t, lanes.Wait(context.Background()))

	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], boom)
	assert.Contains(t, errs[1].Error(), "kaboom")
}

func TestChatLanesWaitHonoursDeadline(t *testing.T) {
	lanes := NewChatLanes(nil)
	release := make(chan struct{})
	h := lanes.Middleware(func(tele.Context) error { <-release; return nil })
	require.NoError(t, h(newFakeContext(1, 3)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, lanes.Wait(ctx), context.DeadlineExceeded)
	assert.Equal(t, 1, lanes.Active())

	close(release)
	require.NoError(t, lanes.Wait(context.Background()))
}
