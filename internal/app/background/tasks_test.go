package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSweeper struct {
	expired    atomic.Int32
	inspection atomic.Int32
	fail       bool
	panics     bool
}

func (f *fakeSweeper) SweepExpired(context.Context) (int, error) {
	f.expired.Add(1)
	if f.fail {
		return 0, errors.New("store unavailable")
	}
	return 1, nil
}

func (f *fakeSweeper) SweepInspectionDeadlines(context.Context) (int, error) {
	f.inspection.Add(1)
	if f.panics {
		panic("unexpected nil transaction")
	}
	return 0, nil
}

func TestBackgroundTasks_RunsUntilCanceled(t *testing.T) {
	sweeper := &fakeSweeper{}
	bt := NewBackgroundTasks(sweeper, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	bt.StartAll(ctx)

	assert.Eventually(t, func() bool {
		return sweeper.expired.Load() >= 2 && sweeper.inspection.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	bt.Wait()

	calls := sweeper.expired.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, sweeper.expired.Load(), "после отмены задачи не запускаются")
}

func TestBackgroundTasks_ErrorsDoNotStopLoop(t *testing.T) {
	sweeper := &fakeSweeper{fail: true}
	bt := NewBackgroundTasks(sweeper, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		bt.Wait()
	}()
	bt.StartAll(ctx)

	assert.Eventually(t, func() bool { return sweeper.expired.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestBackgroundTasks_Disabled(t *testing.T) {
	sweeper := &fakeSweeper{}
	bt := NewBackgroundTasks(sweeper, 0)
	assert.False(t, bt.Enabled())

	bt.StartAll(context.Background())
	bt.Wait()
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, sweeper.expired.Load())
}

func TestBackgroundTasks_PanicDoesNotStopLoop(t *testing.T) {
	sweeper := &fakeSweeper{panics: true}
	bt := NewBackgroundTasks(sweeper, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		bt.Wait()
	}()
	bt.StartAll(ctx)

	assert.Eventually(t, func() bool {
		return sweeper.inspection.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}
