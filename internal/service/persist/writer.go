package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Leonardofps/gomarketplace/internal/domain"
	"github.com/Leonardofps/gomarketplace/internal/metrics"
)

const (
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	defaultErrorBuffer    = 16
)

// Job — одна запись полного снимка корзины, поставленная мутацией.
type Job struct {
	// Seq присваивается очередью при постановке и строго возрастает.
	Seq      uint64
	Key      string
	Payload  []byte
	Event    *domain.CartEvent
	IssuedAt time.Time
	// Err — снимок не удалось подготовить. Такая задача в хранилище не пишется,
	// а сразу уходит в Errors() как неудачная запись.
	Err error

	barrier chan struct{}
}

// WriteError описывает запись, которая не удалась после всех попыток.
type WriteError struct {
	Seq      uint64
	Key      string
	Attempts int
	Err      error
}

func (e WriteError) Error() string {
	return fmt.Sprintf("write seq=%d key=%s after %d attempts: %v", e.Seq, e.Key, e.Attempts, e.Err)
}

func (e WriteError) Unwrap() error { return e.Err }

// WriterOptions задаёт параметры writer.
type WriterOptions struct {
	Logger         *log.Entry
	Publisher      domain.EventPublisher
	Metrics        *metrics.CartMetrics
	MaxAttempts    int
	RetryBaseDelay time.Duration
	ErrorBuffer    int
}

// Option настраивает Writer.
type Option func(*WriterOptions)

// WithLogger задаёт logger для writer.
func WithLogger(logger *log.Entry) Option {
	return func(opts *WriterOptions) {
		opts.Logger = logger
	}
}

// WithEventPublisher задаёт publisher, которому передаются события после успешной записи.
func WithEventPublisher(publisher domain.EventPublisher) Option {
	return func(opts *WriterOptions) {
		opts.Publisher = publisher
	}
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.CartMetrics) Option {
	return func(opts *WriterOptions) {
		opts.Metrics = m
	}
}

// WithMaxAttempts задаёт число попыток записи перед фиксацией ошибки.
func WithMaxAttempts(maxAttempts int) Option {
	return func(opts *WriterOptions) {
		opts.MaxAttempts = maxAttempts
	}
}

// WithRetryBaseDelay задаёт базовый delay для exponential backoff.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(opts *WriterOptions) {
		opts.RetryBaseDelay = delay
	}
}

// WithErrorBuffer задаёт ёмкость канала ошибок записи.
func WithErrorBuffer(size int) Option {
	return func(opts *WriterOptions) {
		opts.ErrorBuffer = size
	}
}

// Writer — FIFO-очередь записей снимка с единственным потребителем.
// Enqueue никогда не блокирует вызывающего; порядок записей совпадает с порядком постановки.
type Writer struct {
	kv             domain.KeyValueStore
	publisher      domain.EventPublisher
	logger         *log.Entry
	metrics        *metrics.CartMetrics
	maxAttempts    int
	retryBaseDelay time.Duration

	mu    sync.Mutex
	queue []Job
	seq   uint64

	consume sync.Mutex
	wake    chan struct{}
	errs    chan WriteError
}

// NewWriter создаёт writer поверх key-value хранилища.
func NewWriter(kv domain.KeyValueStore, options ...Option) *Writer {
	opts := WriterOptions{
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
		ErrorBuffer:    defaultErrorBuffer,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart-writer")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBaseDelay < 0 {
		opts.RetryBaseDelay = 0
	}
	if opts.ErrorBuffer <= 0 {
		opts.ErrorBuffer = defaultErrorBuffer
	}

	return &Writer{
		kv:             kv,
		publisher:      opts.Publisher,
		logger:         logger,
		metrics:        opts.Metrics,
		maxAttempts:    opts.MaxAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		wake:           make(chan struct{}, 1),
		errs:           make(chan WriteError, opts.ErrorBuffer),
	}
}

// Enqueue ставит запись в конец очереди и возвращает её порядковый номер.
func (w *Writer) Enqueue(job Job) uint64 {
	w.mu.Lock()
	w.seq++
	job.Seq = w.seq
	if job.IssuedAt.IsZero() {
		job.IssuedAt = time.Now().UTC()
	}
	w.queue = append(w.queue, job)
	depth := len(w.queue)
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.SetQueueDepth(depth)
	}
	w.signal()
	return job.Seq
}

// Errors возвращает канал ошибок записи. Если канал переполнен, новые ошибки только логируются.
func (w *Writer) Errors() <-chan WriteError {
	return w.errs
}

// Pending возвращает количество записей в очереди.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Run обрабатывает очередь до отмены ctx. Незаписанные задачи остаются в очереди.
func (w *Writer) Run(ctx context.Context) {
	if w.kv == nil {
		w.logger.Warn("cart writer is disabled: key-value store is nil")
		return
	}

	for {
		w.ProcessPending(ctx)
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}
	}
}

// ProcessPending синхронно выполняет все записи, стоящие в очереди, и возвращает их число.
func (w *Writer) ProcessPending(ctx context.Context) int {
	w.consume.Lock()
	defer w.consume.Unlock()

	processed := 0
	for ctx.Err() == nil {
		job, ok := w.pop()
		if !ok {
			break
		}
		if job.barrier != nil {
			close(job.barrier)
			continue
		}
		w.write(ctx, job)
		processed++
	}
	return processed
}

// Flush ждёт, пока будут обработаны все записи, поставленные до вызова.
// Требует запущенного Run; иначе ждёт до отмены ctx.
func (w *Writer) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	w.Enqueue(Job{barrier: barrier})

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) pop() (Job, bool) {
	w.mu.Lock()
	if len(w.queue) == 0 {
		w.mu.Unlock()
		return Job{}, false
	}
	job := w.queue[0]
	w.queue[0] = Job{}
	w.queue = w.queue[1:]
	depth := len(w.queue)
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.SetQueueDepth(depth)
	}
	return job, true
}

func (w *Writer) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Writer) write(ctx context.Context, job Job) {
	var (
		attempts int
		err      error
	)
	if job.Err != nil {
		err = job.Err
	} else {
		start := time.Now()
		attempts, err = w.setWithRetry(ctx, job)
		if w.metrics != nil {
			w.metrics.RecordWriteDuration(time.Since(start))
		}
	}

	entry := w.logger.WithFields(log.Fields{
		"seq": job.Seq,
		"key": job.Key,
	})

	if err != nil {
		writeErr := WriteError{
			Seq:      job.Seq,
			Key:      job.Key,
			Attempts: attempts,
			Err:      fmt.Errorf("%w: %w", domain.ErrStorageWrite, err),
		}
		entry.WithError(err).WithField("attempts", attempts).Error("cart snapshot write failed after retries")
		if w.metrics != nil {
			w.metrics.RecordWrite(metrics.WriteResultFailed)
		}
		w.report(writeErr)
		return
	}

	entry.WithField("attempts", attempts).Debug("cart snapshot persisted")
	w.publish(ctx, job)
}

func (w *Writer) setWithRetry(ctx context.Context, job Job) (int, error) {
	var lastErr error

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := w.kv.Set(ctx, job.Key, job.Payload)
		if err == nil {
			if w.metrics != nil {
				w.metrics.RecordWrite(metrics.WriteResultOK)
			}
			return attempt, nil
		}
		lastErr = err
		if w.metrics != nil {
			w.metrics.RecordWrite(metrics.WriteResultRetryError)
		}

		if attempt >= w.maxAttempts {
			break
		}

		delay := w.retryBackoff(attempt)
		if delay <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return attempt, errors.Join(lastErr, ctx.Err())
		case <-time.After(delay):
		}
	}

	return w.maxAttempts, lastErr
}

func (w *Writer) retryBackoff(attempt int) time.Duration {
	if w.retryBaseDelay <= 0 {
		return 0
	}
	if attempt <= 1 {
		return w.retryBaseDelay
	}

	const maxDuration = time.Duration(1<<63 - 1)
	delay := w.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > maxDuration/2 {
			return maxDuration
		}
		delay *= 2
	}
	return delay
}

func (w *Writer) report(writeErr WriteError) {
	select {
	case w.errs <- writeErr:
	default:
		w.logger.WithField("seq", writeErr.Seq).Warn("write error channel is full, dropping error")
		if w.metrics != nil {
			w.metrics.RecordDroppedError()
		}
	}
}

func (w *Writer) publish(ctx context.Context, job Job) {
	if w.publisher == nil || job.Event == nil {
		return
	}

	if err := w.publisher.Publish(ctx, *job.Event); err != nil {
		w.logger.WithError(fmt.Errorf("%w: %w", domain.ErrEventPublish, err)).WithFields(log.Fields{
			"event_id":   job.Event.ID,
			"event_type": job.Event.Type,
		}).Warn("failed to publish cart event")
		if w.metrics != nil {
			w.metrics.RecordEvent("failed")
		}
		return
	}
	if w.metrics != nil {
		w.metrics.RecordEvent("sent")
	}
}
