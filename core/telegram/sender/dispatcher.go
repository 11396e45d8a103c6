// Package sender runs outbound Telegram calls on a small worker pool.
// Jobs sharing a key run in submission order, so one chat never sees its
// replies reordered.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/fruitbot/core/logger"
	"github.com/m3rciful/fruitbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the job's lane has no free slot.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Observer receives the final outcome of every job.
type Observer interface {
	SendDone(action, outcome string, elapsed time.Duration)
}

// Options tunes the dispatcher. Zero values select defaults.
type Options struct {
	// QueueSize is the capacity of each worker lane.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
	Observer    Observer
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

// Job is one outbound call. Run must be safe to repeat when retries are enabled.
type Job struct {
	// Key selects the lane; jobs with equal keys run one after another.
	Key      int64
	Action   string
	Endpoint string
	Run      func() error
}

type queued struct {
	ctx context.Context
	Job
}

// Dispatcher executes jobs asynchronously with bounded retries.
type Dispatcher struct {
	opts  Options
	lanes []chan queued

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewDispatcher starts one worker per lane.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, lanes: make([]chan queued, opts.Workers)}
	for i := range d.lanes {
		d.lanes[i] = make(chan queued, opts.QueueSize)
		d.wg.Add(1)
		go d.work(d.lanes[i])
	}
	return d
}

// Enqueue schedules job without waiting for it to run.
// It returns ErrQueueFull when the job's lane has no free slot.
func (d *Dispatcher) Enqueue(ctx context.Context, job Job) error {
	return d.submit(ctx, job, false)
}

// EnqueueWait is Enqueue that waits for a free slot in the job's lane until ctx is done.
func (d *Dispatcher) EnqueueWait(ctx context.Context, job Job) error {
	return d.submit(ctx, job, true)
}

func (d *Dispatcher) submit(ctx context.Context, job Job, wait bool) error {
	if job.Run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	lane, q := d.lane(job.Key), queued{ctx: ctx, Job: job}
	if !wait {
		select {
		case lane <- q:
			return nil
		default:
			return ErrQueueFull
		}
	}
	select {
	case lane <- q:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) lane(key int64) chan queued {
	n := uint64(key) % uint64(len(d.lanes))
	return d.lanes[n]
}

// ErrorCount returns the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Pending returns the number of queued jobs not yet picked up by a worker.
func (d *Dispatcher) Pending() int {
	n := 0
	for _, l := range d.lanes {
		n += len(l)
	}
	return n
}

// Close stops accepting jobs and waits until the queued ones have run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, l := range d.lanes {
		close(l)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(lane <-chan queued) {
	defer d.wg.Done()
	for q := range lane {
		d.run(q)
	}
}

func (d *Dispatcher) run(q queued) {
	ctx, cancel := context.WithTimeout(q.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts, err := d.attempt(ctx, q.Job)
	elapsed := time.Since(start)

	attrs := []slog.Attr{
		slog.String("action", q.Action),
		slog.String("endpoint", q.Endpoint),
		slog.Int("attempts", attempts),
		slog.Duration("duration", elapsed),
	}
	if err != nil {
		d.errs.Add(1)
		logger.Error(q.ctx, component, "send.fail", append(attrs,
			slog.String("err", redact(err)),
			slog.String("err_kind", classifyError(err)),
		)...)
		d.observe(q.Action, "fail", elapsed)
		return
	}
	if attempts > 1 {
		logger.Info(q.ctx, component, "send.retry.success", attrs...)
	} else {
		logger.Debug(q.ctx, component, "send.ok", attrs...)
	}
	d.observe(q.Action, "ok", elapsed)
}

// attempt runs job until it succeeds, fails permanently, runs out of
// retries or ctx expires. It returns the number of calls made.
func (d *Dispatcher) attempt(ctx context.Context, job Job) (int, error) {
	var err error
	for n := 1; ; n++ {
		if err = job.Run(); err == nil {
			return n, nil
		}
		if n > d.opts.MaxRetries || !retryable(err) {
			return n, err
		}
		delay := d.opts.RetryBackoff * time.Duration(n)
		var flood tele.FloodError
		if errors.As(err, &flood) && time.Duration(flood.RetryAfter)*time.Second > delay {
			delay = time.Duration(flood.RetryAfter) * time.Second
		}
		logger.Debug(ctx, component, "send.retry",
			slog.String("action", job.Action),
			slog.Int("attempt", n),
			slog.Duration("delay", delay),
		)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return n, errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
}

// retryable reports transient failures: network trouble, 429 and 5xx answers.
func retryable(err error) bool {
	if netutil.ShouldRetry(err) {
		return true
	}
	status := statusCode(err)
	return status == http.StatusTooManyRequests || status >= 500
}

func (d *Dispatcher) observe(action, outcome string, elapsed time.Duration) {
	if d.opts.Observer != nil {
		d.opts.Observer.SendDone(action, outcome, elapsed)
	}
}

// redact hides bot tokens that net/http embeds in request URLs.
func redact(err error) string {
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

// classifyError buckets err for logs: timeout, network, flood, http_4xx,
// http_5xx or unknown.
func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}
	switch status := statusCode(err); {
	case status == http.StatusTooManyRequests:
		return "flood"
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// statusCode extracts the Bot API error code from telebot errors or a
// trailing "(NNN)" in the message.
func statusCode(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return http.StatusTooManyRequests
	}
	msg := strings.TrimSpace(err.Error())
	if !strings.HasSuffix(msg, ")") {
		return 0
	}
	open := strings.LastIndexByte(msg, '(')
	if open < 0 {
		return 0
	}
	code, convErr := strconv.Atoi(msg[open+1 : len(msg)-1])
	if convErr != nil {
		return 0
	}
	return code
}
