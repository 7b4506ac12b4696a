package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hray3182/Upkeep/internal/metrics"
	"github.com/hray3182/Upkeep/internal/reminder"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

type countingEvaluator struct {
	calls atomic.Int32
	done  chan struct{}
	err   error
}

func newCountingEvaluator() *countingEvaluator {
	return &countingEvaluator{done: make(chan struct{}, 16)}
}

func (e *countingEvaluator) EvaluateAll(ctx context.Context) (reminder.Summary, error) {
	e.calls.Add(1)
	e.done <- struct{}{}
	return reminder.Summary{}, e.err
}

func waitPass(t *testing.T, e *countingEvaluator) {
	t.Helper()
	select {
	case <-e.done:
	case <-time.After(time.Second):
		t.Fatal("pass did not run")
	}
}

func assertNoPass(t *testing.T, e *countingEvaluator) {
	t.Helper()
	select {
	case <-e.done:
		t.Fatal("unexpected pass")
	case <-time.After(50 * time.Millisecond):
	}
}

func startReevaluator(t *testing.T, e Evaluator, m *metrics.Metrics) (*Reevaluator, interface {
	Advance(time.Duration)
	BlockUntilReady()
}) {
	t.Helper()
	clock := clockz.NewFakeClock()
	r := New(e, nil, Options{
		Debounce: 500 * time.Millisecond,
		Interval: time.Hour,
		Clock:    clock,
		Metrics:  m,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go r.Start(ctx)
	return r, clock
}

func TestReevaluator_RunsStartupPass(t *testing.T) {
	e := newCountingEvaluator()
	startReevaluator(t, e, nil)

	waitPass(t, e)
	assert.Equal(t, int32(1), e.calls.Load())
}

func TestReevaluator_DebouncesBurst(t *testing.T) {
	e := newCountingEvaluator()
	m := metrics.New()
	r, clock := startReevaluator(t, e, m)
	waitPass(t, e)

	r.Notify("listen")
	r.Notify("sync")
	time.Sleep(10 * time.Millisecond)

	clock.Advance(500 * time.Millisecond)
	clock.BlockUntilReady()

	waitPass(t, e)
	assertNoPass(t, e)
	assert.Equal(t, int32(2), e.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Triggers.WithLabelValues("listen")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Triggers.WithLabelValues("sync")))
}

func TestReevaluator_NewEventResetsWait(t *testing.T) {
	e := newCountingEvaluator()
	r, clock := startReevaluator(t, e, nil)
	waitPass(t, e)

	r.Notify("listen")
	time.Sleep(10 * time.Millisecond)
	clock.Advance(300 * time.Millisecond)
	clock.BlockUntilReady()

	r.Notify("listen")
	time.Sleep(10 * time.Millisecond)
	clock.Advance(300 * time.Millisecond)
	clock.BlockUntilReady()
	assertNoPass(t, e)

	clock.Advance(200 * time.Millisecond)
	clock.BlockUntilReady()
	waitPass(t, e)
	assert.Equal(t, int32(2), e.calls.Load())
}

func TestReevaluator_SafetyPass(t *testing.T) {
	e := newCountingEvaluator()
	_, clock := startReevaluator(t, e, nil)
	waitPass(t, e)
	time.Sleep(10 * time.Millisecond)

	clock.Advance(time.Hour)
	clock.BlockUntilReady()

	waitPass(t, e)
	assert.Equal(t, int32(2), e.calls.Load())
}

func TestReevaluator_PassErrorDoesNotStopLoop(t *testing.T) {
	e := newCountingEvaluator()
	e.err = errors.New("database unavailable")
	m := metrics.New()
	r, clock := startReevaluator(t, e, m)
	waitPass(t, e)

	r.Notify("listen")
	time.Sleep(10 * time.Millisecond)
	clock.Advance(500 * time.Millisecond)
	clock.BlockUntilReady()

	waitPass(t, e)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Failures.WithLabelValues("pass")))
}

func TestNotify_NonBlocking(t *testing.T) {
	r := New(newCountingEvaluator(), nil, Options{})
	require.NotPanics(t, func() {
		for i := 0; i < 10; i++ {
			r.Notify("test")
		}
	})
	assert.Len(t, r.notifyCh, 1)
}
