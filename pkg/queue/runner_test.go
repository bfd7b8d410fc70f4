package queue_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/pkg/queue"
)

// mockStore stands in for a store whose behavior the test scripts directly.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Insert(ctx context.Context, task queue.Task, delay time.Duration) (*queue.TaskRecord, error) {
	args := m.Called(ctx, task, delay)
	rec, _ := args.Get(0).(*queue.TaskRecord)
	return rec, args.Error(1)
}

func (m *mockStore) ClaimBatch(ctx context.Context, batchSize int) ([]queue.TaskRecord, error) {
	args := m.Called(ctx, batchSize)
	recs, _ := args.Get(0).([]queue.TaskRecord)
	return recs, args.Error(1)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

func TestNewRunner(t *testing.T) {
	t.Parallel()

	t.Run("nil store", func(t *testing.T) {
		t.Parallel()

		_, err := queue.NewRunner(nil, queue.NewRegistry())
		assert.ErrorIs(t, err, queue.ErrStoreNil)
	})

	t.Run("nil registry", func(t *testing.T) {
		t.Parallel()

		_, err := queue.NewRunner(queue.NewMemStore(nil), nil)
		assert.ErrorIs(t, err, queue.ErrRegistryNil)
	})
}

func TestRunner_Lifecycle(t *testing.T) {
	t.Parallel()

	reg := queue.NewRegistry()
	runner, err := queue.NewRunner(queue.NewMemStore(nil), reg, quietRunner())
	require.NoError(t, err)

	assert.Equal(t, queue.StateStopped, runner.State())

	require.NoError(t, runner.Start(context.Background()))
	assert.Equal(t, queue.StateRunning, runner.State())

	assert.ErrorIs(t, runner.Start(context.Background()), queue.ErrAlreadyRunning)

	require.NoError(t, runner.Stop())
	assert.Equal(t, queue.StateStopped, runner.State())

	// Stopping an already stopped runner is a no-op.
	require.NoError(t, runner.Stop())
}

func TestRunner_ProcessesTask(t *testing.T) {
	t.Parallel()

	rec := &recorder{outcome: queue.Success}
	reg := queue.NewRegistry()
	require.NoError(t, reg.Register(rec.definition("SendEmail")))

	store := queue.NewMemStore(reg)
	_, err := store.Insert(context.Background(), &recordingTask{kind: "SendEmail", rec: rec, Payload: "hello"}, 0)
	require.NoError(t, err)

	runner := startRunner(t, store, reg)
	defer runner.Stop() //nolint:errcheck

	require.Eventually(t, func() bool { return rec.runs() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, store.Pending())
}

func TestRunner_RetriesUntilAbandoned(t *testing.T) {
	t.Parallel()

	rec := &recorder{outcome: queue.Failure, retryDelay: time.Millisecond, maxTries: 3}
	reg := queue.NewRegistry()
	require.NoError(t, reg.Register(rec.definition("FlakyJob")))

	store := queue.NewMemStore(reg)
	_, err := store.Insert(context.Background(), &recordingTask{kind: "FlakyJob", rec: rec}, 0)
	require.NoError(t, err)

	runner := startRunner(t, store, reg)
	defer runner.Stop() //nolint:errcheck

	// Initial attempt plus three retries, each run seeing its try count.
	require.Eventually(t, func() bool { return rec.runs() == 4 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{0, 1, 2, 3}, rec.triesSeen())

	// Abandoned for good: no row remains and no further run happens.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 4, rec.runs())
	assert.Empty(t, store.Pending())
}

func TestRunner_AbandonsWithoutRetryPolicy(t *testing.T) {
	t.Parallel()

	rec := &recorder{outcome: queue.Failure}
	reg := queue.NewRegistry()
	require.NoError(t, reg.Register(rec.definition("OneShot")))

	store := queue.NewMemStore(reg)
	_, err := store.Insert(context.Background(), &recordingTask{kind: "OneShot", rec: rec}, 0)
	require.NoError(t, err)

	runner := startRunner(t, store, reg)
	defer runner.Stop() //nolint:errcheck

	require.Eventually(t, func() bool { return rec.runs() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.runs())
	assert.Empty(t, store.Pending())
}

func TestRunner_PanicIsFailure(t *testing.T) {
	t.Parallel()

	rec := &recorder{panicMsg: "boom", retryDelay: time.Millisecond, maxTries: 1}
	reg := queue.NewRegistry()
	require.NoError(t, reg.Register(rec.definition("Panicky")))

	store := queue.NewMemStore(reg)
	_, err := store.Insert(context.Background(), &recordingTask{kind: "Panicky", rec: rec}, 0)
	require.NoError(t, err)

	runner := startRunner(t, store, reg)
	defer runner.Stop() //nolint:errcheck

	// The panic is a Failure, so the retry policy still gets its say.
	require.Eventually(t, func() bool { return rec.runs() == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, store.Pending())
}

func TestRunner_DropsUnknownType(t *testing.T) {
	t.Parallel()

	reg := queue.NewRegistry()
	store := queue.NewMemStore(reg)
	_, err := store.Insert(context.Background(), newStub("Forgotten", 0), 0)
	require.NoError(t, err)

	runner := startRunner(t, store, reg)
	defer runner.Stop() //nolint:errcheck

	// The claimed row is dropped, not re-enqueued.
	require.Eventually(t, func() bool { return len(store.Pending()) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, store.Pending())
}

func TestRunner_ClaimErrorBacksOff(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	store.On("ClaimBatch", mock.Anything, 10).Return(nil, errors.New("connection reset"))
	store.On("Close").Return(nil)

	runner, err := queue.NewRunner(store, queue.NewRegistry(),
		queue.WithErrorBackoff(20*time.Millisecond),
		quietRunner())
	require.NoError(t, err)

	require.NoError(t, runner.Start(context.Background()))
	time.Sleep(70 * time.Millisecond)
	require.NoError(t, runner.Stop())

	// Three backoff windows fit in the sleep, so the loop survived the errors
	// without spinning hot.
	calls := len(store.Calls)
	assert.GreaterOrEqual(t, calls, 2)
	assert.LessOrEqual(t, calls, 7)
}

func TestRunner_StopClosesStore(t *testing.T) {
	t.Parallel()

	store := queue.NewMemStore(nil)
	runner := startRunner(t, store, queue.NewRegistry())
	require.NoError(t, runner.Stop())

	_, err := store.Insert(context.Background(), newStub("Late", 0), 0)
	assert.ErrorIs(t, err, queue.ErrStoreClosed)
}

func startRunner(t *testing.T, store queue.Store, reg *queue.Registry) *queue.Runner {
	t.Helper()

	runner, err := queue.NewRunner(store, reg,
		queue.WithPollInterval(5*time.Millisecond),
		quietRunner())
	require.NoError(t, err)
	require.NoError(t, runner.Start(context.Background()))
	return runner
}

func quietRunner() queue.RunnerOption {
	return queue.WithRunnerLogger(slog.New(slog.DiscardHandler))
}
