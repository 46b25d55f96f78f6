package audit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReporter struct {
	ReportFunc func(ctx context.Context, rec Record) error
}

func (m *mockReporter) Report(ctx context.Context, rec Record) error {
	if m.ReportFunc != nil {
		return m.ReportFunc(ctx, rec)
	}
	return nil
}

// recordingReporter collects every delivered record under a lock.
type recordingReporter struct {
	mu      sync.Mutex
	records []Record
}

func (r *recordingReporter) Report(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *recordingReporter) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

func testDispatcher(cfg DispatcherConfig, filter *Filter, reporter Reporter) *Dispatcher {
	if filter == nil {
		filter = NewFilter(nil)
	}
	return NewDispatcher(cfg, filter, reporter, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestDispatcher_DeliversAsynchronously(t *testing.T) {
	reporter := &recordingReporter{}
	d := testDispatcher(DispatcherConfig{Workers: 2, QueueCapacity: 16}, nil, reporter)
	d.Start()
	defer d.Shutdown(context.Background())

	for i := 0; i < 5; i++ {
		err := d.Report(context.Background(), UserAction{Type: EventTypeUserLogin, Outcome: OutcomeSuccess})
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		return d.Completed() == 5
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, uint64(5), d.Submitted())
	assert.Len(t, reporter.Records(), 5)
	assert.Equal(t, uint64(0), d.Dropped())
}

func TestDispatcher_FilteredRecordsNeverEnterQueue(t *testing.T) {
	reporter := &recordingReporter{}
	filter := NewFilter([]string{EventTypeUserLogin})
	d := testDispatcher(DispatcherConfig{Workers: 1, QueueCapacity: 4}, filter, reporter)
	d.Start()
	defer d.Shutdown(context.Background())

	err := d.Report(context.Background(), UserAction{Type: EventTypeUserLogin, Outcome: OutcomeSuccess})
	require.NoError(t, err, "filtered submission is not an error")

	err = d.Report(context.Background(), UserAction{Type: EventTypeAccountLocked, Outcome: OutcomeFailure})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return d.Completed() == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, uint64(1), d.Filtered())
	assert.Equal(t, uint64(1), d.Submitted())

	records := reporter.Records()
	require.Len(t, records, 1)
	assert.Equal(t, EventTypeAccountLocked, records[0].Type)
}

func TestDispatcher_DropPolicyRejectsWhenFull(t *testing.T) {
	// Workers never started, so the queue stays full.
	d := testDispatcher(DispatcherConfig{Workers: 1, QueueCapacity: 1, Overflow: OverflowDrop}, nil, &mockReporter{})

	err := d.Report(context.Background(), UserAction{Type: EventTypeUserLogin, Outcome: OutcomeSuccess})
	require.NoError(t, err)

	err = d.Report(context.Background(), UserAction{Type: EventTypeUserLogin, Outcome: OutcomeSuccess})

	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, uint64(1), d.Submitted())
	assert.Equal(t, uint64(1), d.Dropped())
}

func TestDispatcher_EvictPolicyDiscardsOldest(t *testing.T) {
	reporter := &recordingReporter{}
	d := testDispatcher(DispatcherConfig{Workers: 1, QueueCapacity: 1, Overflow: OverflowEvict}, nil, reporter)

	err := d.Report(context.Background(), UserAction{Type: EventTypeUserLogin, TargetID: "first", Outcome: OutcomeSuccess})
	require.NoError(t, err)

	err = d.Report(context.Background(), UserAction{Type: EventTypeUserLogin, TargetID: "second", Outcome: OutcomeSuccess})
	require.NoError(t, err, "eviction makes room, submission succeeds")

	assert.Equal(t, uint64(2), d.Submitted())
	assert.Equal(t, uint64(1), d.Dropped())

	d.Start()
	require.NoError(t, d.Shutdown(context.Background()))

	records := reporter.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "second", records[0].Target, "the newest record survives")
}

func TestDispatcher_BlockPolicyHonorsContext(t *testing.T) {
	d := testDispatcher(DispatcherConfig{Workers: 1, QueueCapacity: 1, Overflow: OverflowBlock}, nil, &mockReporter{})

	err := d.Report(context.Background(), UserAction{Type: EventTypeUserLogin, Outcome: OutcomeSuccess})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = d.Report(ctx, UserAction{Type: EventTypeUserLogin, Outcome: OutcomeSuccess})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, uint64(1), d.Dropped())
}

func TestDispatcher_ShutdownDrainsQueue(t *testing.T) {
	reporter := &recordingReporter{}
	d := testDispatcher(DispatcherConfig{Workers: 2, QueueCapacity: 64}, nil, reporter)
	d.Start()

	for i := 0; i < 20; i++ {
		require.NoError(t, d.Report(context.Background(), UserAction{Type: EventTypeUserLogin, Outcome: OutcomeSuccess}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	assert.Equal(t, uint64(20), d.Completed())
	assert.Len(t, reporter.Records(), 20)
}

func TestDispatcher_ReportAfterShutdown(t *testing.T) {
	d := testDispatcher(DispatcherConfig{Workers: 1, QueueCapacity: 4}, nil, &mockReporter{})
	d.Start()
	require.NoError(t, d.Shutdown(context.Background()))

	err := d.Report(context.Background(), UserAction{Type: EventTypeUserLogin, Outcome: OutcomeSuccess})

	assert.ErrorIs(t, err, ErrDispatcherClosed)
}

func TestDispatcher_ShutdownIsIdempotent(t *testing.T) {
	d := testDispatcher(DispatcherConfig{Workers: 1, QueueCapacity: 4}, nil, &mockReporter{})
	d.Start()

	require.NoError(t, d.Shutdown(context.Background()))
	require.NoError(t, d.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestDispatcher_ReporterFailureDoesNotStopWorkers(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	reporter := &mockReporter{
		ReportFunc: func(ctx context.Context, rec Record) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			return assert.AnError
		},
	}
	d := testDispatcher(DispatcherConfig{Workers: 1, QueueCapacity: 8}, nil, reporter)
	d.Start()
	defer d.Shutdown(context.Background())

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Report(context.Background(), UserAction{Type: EventTypeUserLogin, Outcome: OutcomeSuccess}))
	}

	assert.Eventually(t, func() bool {
		return d.Completed() == 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
}

func TestParseOverflowPolicy(t *testing.T) {
	policy, err := ParseOverflowPolicy("evict")
	require.NoError(t, err)
	assert.Equal(t, OverflowEvict, policy)

	_, err = ParseOverflowPolicy("spill")
	assert.Error(t, err)
}
