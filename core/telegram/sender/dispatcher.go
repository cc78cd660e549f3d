package sender

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
	// ErrNilJob is returned for a job without a Run function.
	ErrNilJob = errors.New("telegram sender: nil run function")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

// Job is one outbound call. Run must be safe to repeat when retries are enabled.
type Job struct {
	Action string
	ChatID int64
	Run    func(ctx context.Context) error
}

type queued struct {
	ctx context.Context
	job Job
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
type Dispatcher struct {
	opts   Options
	jobs   chan queued
	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	done   atomic.Uint64
	errs   atomic.Uint64
}

// NewDispatcher starts a dispatcher with defaults for zero options.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{
		opts: opts,
		jobs: make(chan queued, opts.QueueSize),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue schedules j. The context is detached from cancellation so the job
// outlives the update that produced it, but keeps its logging values.
func (d *Dispatcher) Enqueue(ctx context.Context, j Job) error {
	if j.Run == nil {
		return ErrNilJob
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- queued{ctx: context.WithoutCancel(ctx), job: j}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Completed returns the number of jobs that finished successfully.
func (d *Dispatcher) Completed() uint64 { return d.done.Load() }

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 { return d.errs.Load() }

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for q := range d.jobs {
		d.handle(q)
	}
}

func (d *Dispatcher) handle(q queued) {
	ctx, cancel := context.WithTimeout(q.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var lastErr error

retry:
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = q.job.Run(ctx); lastErr == nil {
			d.done.Add(1)
			logger.Debug(q.ctx, "tg.sender", "send.success",
				append(jobAttrs(q.job),
					slog.Int("attempt", attempt),
					slog.Duration("took", logger.Took(start)),
				)...,
			)
			return
		}
		if attempt == attempts || !retryable(lastErr) {
			break
		}

		delay := d.opts.RetryBackoff * time.Duration(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			lastErr = ctx.Err()
			break retry
		case <-timer.C:
			logger.Debug(q.ctx, "tg.sender", "send.retry",
				append(jobAttrs(q.job), slog.Int("attempt", attempt), slog.Duration("delay", delay))...,
			)
		}
	}

	d.errs.Add(1)
	logger.Error(q.ctx, "tg.sender", "send.fail",
		append(jobAttrs(q.job),
			slog.String("err", sanitize(lastErr)),
			slog.Int("http_status", httpStatus(lastErr)),
			slog.Duration("took", logger.Took(start)),
		)...,
	)
}

func jobAttrs(j Job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.Action)}
	if j.ChatID != 0 {
		attrs = append(attrs, slog.Int64("target_chat_id", j.ChatID))
	}
	return attrs
}

func retryable(err error) bool {
	if netutil.ShouldRetry(err) {
		return true
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return true
	}
	return httpStatus(err) >= http.StatusInternalServerError
}

// sanitize prevents accidental leakage of Telegram bot tokens in logs.
func sanitize(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

func httpStatus(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	return 0
}
