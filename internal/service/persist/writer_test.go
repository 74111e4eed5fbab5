package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Leonardofps/gomarketplace/internal/domain"
	"github.com/Leonardofps/gomarketplace/internal/metrics"
)

func TestWriter_ProcessPending_WritesInOrder(t *testing.T) {
	t.Parallel()

	kv := &stubKV{}
	writer := NewWriter(kv, WithRetryBaseDelay(0))

	first := writer.Enqueue(Job{Key: domain.CartStorageKey, Payload: []byte(`[1]`)})
	second := writer.Enqueue(Job{Key: domain.CartStorageKey, Payload: []byte(`[2]`)})

	if second <= first {
		t.Fatalf("expected increasing seq, got %d then %d", first, second)
	}
	if got := writer.Pending(); got != 2 {
		t.Fatalf("expected 2 pending jobs, got %d", got)
	}

	if got := writer.ProcessPending(context.Background()); got != 2 {
		t.Fatalf("expected 2 processed jobs, got %d", got)
	}

	writes := kv.writes()
	if len(writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(writes))
	}
	if string(writes[0]) != `[1]` || string(writes[1]) != `[2]` {
		t.Fatalf("writes out of order: %s, %s", writes[0], writes[1])
	}
	if writer.Pending() != 0 {
		t.Fatal("queue should be empty")
	}
}

func TestWriter_SuccessAfterRetry(t *testing.T) {
	t.Parallel()

	kv := &stubKV{
		sequenceErrors: []error{
			errors.New("attempt 1"),
			errors.New("attempt 2"),
			nil,
		},
	}
	reg := prometheus.NewRegistry()
	m := metrics.NewCartMetricsWithRegisterer(reg)
	writer := NewWriter(kv, WithRetryBaseDelay(0), WithMaxAttempts(3), WithMetrics(m))

	writer.Enqueue(Job{Key: "k", Payload: []byte(`[]`)})
	writer.ProcessPending(context.Background())

	if got := kv.calls(); got != 3 {
		t.Fatalf("expected 3 set attempts, got %d", got)
	}
	select {
	case werr := <-writer.Errors():
		t.Fatalf("unexpected write error: %v", werr)
	default:
	}
}

func TestWriter_FailureIsReportedOnErrorChannel(t *testing.T) {
	t.Parallel()

	kv := &stubKV{err: errors.New("disk full")}
	writer := NewWriter(kv, WithRetryBaseDelay(0), WithMaxAttempts(2))

	seq := writer.Enqueue(Job{Key: "k", Payload: []byte(`[]`)})
	writer.ProcessPending(context.Background())

	if got := kv.calls(); got != 2 {
		t.Fatalf("expected 2 set attempts, got %d", got)
	}

	select {
	case werr := <-writer.Errors():
		if werr.Seq != seq {
			t.Fatalf("expected seq %d, got %d", seq, werr.Seq)
		}
		if werr.Attempts != 2 {
			t.Fatalf("expected 2 attempts, got %d", werr.Attempts)
		}
		if !errors.Is(werr, domain.ErrStorageWrite) {
			t.Fatalf("expected ErrStorageWrite, got %v", werr)
		}
	default:
		t.Fatal("expected write error on channel")
	}
}

func TestWriter_JobWithEncodeErrorSkipsStorage(t *testing.T) {
	t.Parallel()

	kv := &stubKV{}
	reg := prometheus.NewRegistry()
	m := metrics.NewCartMetricsWithRegisterer(reg)
	writer := NewWriter(kv, WithRetryBaseDelay(0), WithMetrics(m))

	encodeErr := errors.New("json: unsupported value: +Inf")
	seq := writer.Enqueue(Job{Key: "k", Err: encodeErr, Event: &domain.CartEvent{ID: "evt-1"}})
	writer.ProcessPending(context.Background())

	if got := kv.calls(); got != 0 {
		t.Fatalf("expected no set attempts, got %d", got)
	}
	select {
	case werr := <-writer.Errors():
		if werr.Seq != seq {
			t.Fatalf("expected seq %d, got %d", seq, werr.Seq)
		}
		if werr.Attempts != 0 {
			t.Fatalf("expected 0 attempts, got %d", werr.Attempts)
		}
		if !errors.Is(werr, domain.ErrStorageWrite) || !errors.Is(werr, encodeErr) {
			t.Fatalf("expected ErrStorageWrite wrapping encode error, got %v", werr)
		}
	default:
		t.Fatal("expected write error on channel")
	}
	if got := counterValue(t, reg, "cart_snapshot_writes_total"); got != 1 {
		t.Fatalf("expected 1 failed write recorded, got %f", got)
	}
}

func TestWriter_FullErrorChannelDropsAndCounts(t *testing.T) {
	t.Parallel()

	kv := &stubKV{err: errors.New("offline")}
	reg := prometheus.NewRegistry()
	m := metrics.NewCartMetricsWithRegisterer(reg)
	writer := NewWriter(kv, WithRetryBaseDelay(0), WithMaxAttempts(1), WithErrorBuffer(1), WithMetrics(m))

	writer.Enqueue(Job{Key: "k", Payload: []byte(`[1]`)})
	writer.Enqueue(Job{Key: "k", Payload: []byte(`[2]`)})
	writer.ProcessPending(context.Background())

	if got := len(writer.Errors()); got != 1 {
		t.Fatalf("expected 1 buffered error, got %d", got)
	}
	if got := counterValue(t, reg, "cart_write_errors_dropped_total"); got != 1 {
		t.Fatalf("expected 1 dropped error, got %f", got)
	}
	// retry_error + failed на каждую из двух записей
	if got := counterValue(t, reg, "cart_snapshot_writes_total"); got != 4 {
		t.Fatalf("expected 4 write results recorded, got %f", got)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestWriter_PublishesEventAfterWrite(t *testing.T) {
	t.Parallel()

	kv := &stubKV{}
	publisher := &stubPublisher{}
	writer := NewWriter(kv, WithRetryBaseDelay(0), WithEventPublisher(publisher))

	event := &domain.CartEvent{ID: "evt-1", Type: domain.CartEventItemAdded, ProductID: "a"}
	writer.Enqueue(Job{Key: "k", Payload: []byte(`[]`), Event: event})
	writer.Enqueue(Job{Key: "k", Payload: []byte(`[]`)})
	writer.ProcessPending(context.Background())

	if got := publisher.calls(); got != 1 {
		t.Fatalf("expected 1 published event, got %d", got)
	}
}

func TestWriter_NoEventWhenWriteFails(t *testing.T) {
	t.Parallel()

	kv := &stubKV{err: errors.New("offline")}
	publisher := &stubPublisher{}
	writer := NewWriter(kv, WithRetryBaseDelay(0), WithMaxAttempts(1), WithEventPublisher(publisher))

	writer.Enqueue(Job{Key: "k", Payload: []byte(`[]`), Event: &domain.CartEvent{ID: "evt-1"}})
	writer.ProcessPending(context.Background())

	if got := publisher.calls(); got != 0 {
		t.Fatalf("expected no published events, got %d", got)
	}
}

func TestWriter_PublishFailureDoesNotReportWriteError(t *testing.T) {
	t.Parallel()

	kv := &stubKV{}
	publisher := &stubPublisher{err: errors.New("broker down")}
	writer := NewWriter(kv, WithRetryBaseDelay(0), WithEventPublisher(publisher))

	writer.Enqueue(Job{Key: "k", Payload: []byte(`[]`), Event: &domain.CartEvent{ID: "evt-1"}})
	writer.ProcessPending(context.Background())

	select {
	case werr := <-writer.Errors():
		t.Fatalf("unexpected write error: %v", werr)
	default:
	}
}

func TestWriter_RunAndFlush(t *testing.T) {
	t.Parallel()

	kv := &stubKV{}
	writer := NewWriter(kv, WithRetryBaseDelay(0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		writer.Run(ctx)
	}()

	for i := 0; i < 10; i++ {
		writer.Enqueue(Job{Key: "k", Payload: []byte{byte('0' + i)}})
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), time.Second)
	defer flushCancel()
	if err := writer.Flush(flushCtx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	writes := kv.writes()
	if len(writes) != 10 {
		t.Fatalf("expected 10 writes, got %d", len(writes))
	}
	for i, w := range writes {
		if w[0] != byte('0'+i) {
			t.Fatalf("write %d out of order: %q", i, w)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer did not stop on context cancel")
	}
}

func TestWriter_FlushRespectsContext(t *testing.T) {
	t.Parallel()

	writer := NewWriter(&stubKV{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := writer.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded without running writer, got %v", err)
	}
}

func TestWriter_ProcessPendingStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	kv := &stubKV{}
	writer := NewWriter(kv)
	writer.Enqueue(Job{Key: "k", Payload: []byte(`[]`)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := writer.ProcessPending(ctx); got != 0 {
		t.Fatalf("expected nothing processed, got %d", got)
	}
	if got := writer.Pending(); got != 1 {
		t.Fatalf("expected job to stay queued, got %d", got)
	}
}

func TestWriter_RetryBackoff(t *testing.T) {
	t.Parallel()

	writer := NewWriter(&stubKV{}, WithRetryBaseDelay(10*time.Millisecond))

	cases := map[int]time.Duration{
		1: 10 * time.Millisecond,
		2: 20 * time.Millisecond,
		3: 40 * time.Millisecond,
	}
	for attempt, want := range cases {
		if got := writer.retryBackoff(attempt); got != want {
			t.Errorf("attempt %d: expected %s, got %s", attempt, want, got)
		}
	}

	noDelay := NewWriter(&stubKV{}, WithRetryBaseDelay(0))
	if got := noDelay.retryBackoff(5); got != 0 {
		t.Errorf("expected zero backoff, got %s", got)
	}
}

func TestWriter_RunDisabledWithoutStore(t *testing.T) {
	t.Parallel()

	writer := NewWriter(nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		writer.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer without store should return immediately")
	}
}

type stubKV struct {
	mu             sync.Mutex
	err            error
	sequenceErrors []error
	callCount      int
	payloads       [][]byte
}

func (s *stubKV) Get(_ context.Context, _ string) ([]byte, error) {
	return nil, domain.ErrKeyNotFound
}

func (s *stubKV) Set(_ context.Context, _ string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	if len(s.sequenceErrors) > 0 {
		err := s.sequenceErrors[0]
		s.sequenceErrors = s.sequenceErrors[1:]
		if err == nil {
			s.payloads = append(s.payloads, append([]byte(nil), value...))
		}
		return err
	}
	if s.err != nil {
		return s.err
	}
	s.payloads = append(s.payloads, append([]byte(nil), value...))
	return nil
}

func (s *stubKV) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

func (s *stubKV) writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.payloads...)
}

type stubPublisher struct {
	mu        sync.Mutex
	err       error
	callCount int
}

func (s *stubPublisher) Publish(_ context.Context, _ domain.CartEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callCount++
	return s.err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

var _ domain.KeyValueStore = (*stubKV)(nil)
var _ domain.EventPublisher = (*stubPublisher)(nil)
