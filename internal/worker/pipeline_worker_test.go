package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/domain/entity"
)

type fakeRunner struct {
	mu      sync.Mutex
	block   chan struct{}
	err     error
	runIDs  []string
	summary *entity.RunSummary
}

func (r *fakeRunner) Run(ctx context.Context, runID string, from, to time.Time) (*entity.RunSummary, error) {
	r.mu.Lock()
	r.runIDs = append(r.runIDs, runID)
	block := r.block
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.summary != nil {
		return r.summary, nil
	}
	return &entity.RunSummary{RunID: runID, StatusLine: "Generated: 1, Failed/Skipped: 0", Generated: 1}, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	created  []*entity.PipelineRun
	finished []*entity.PipelineRun
	done     chan struct{}
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{done: make(chan struct{}, 8)}
}

func (r *fakeRecorder) CreateRun(run *entity.PipelineRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, run)
	return nil
}

func (r *fakeRecorder) FinishRun(run *entity.PipelineRun, _ *entity.RunSummary) error {
	r.mu.Lock()
	r.finished = append(r.finished, run)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func waitFinished(t *testing.T, r *fakeRecorder) *entity.PipelineRun {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish in time")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished[len(r.finished)-1]
}

func TestPipelineWorkerExecutesQueuedRun(t *testing.T) {
	runner := &fakeRunner{}
	recorder := newFakeRecorder()
	w := NewPipelineWorker(runner, recorder, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	run, err := w.Enqueue(time.Now().AddDate(0, 0, -7), time.Now())
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusQueued, run.Status)

	finished := waitFinished(t, recorder)
	assert.Equal(t, run.ID, finished.ID)
	assert.Equal(t, entity.RunStatusFinished, finished.Status)
	assert.Equal(t, 1, finished.Generated)
	assert.Equal(t, "Generated: 1, Failed/Skipped: 0", finished.StatusLine)

	// Run ID assigned at enqueue flows into the pipeline
	assert.Equal(t, []string{run.ID}, runner.runIDs)
}

func TestPipelineWorkerRejectsConcurrentRuns(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	recorder := newFakeRecorder()
	w := NewPipelineWorker(runner, recorder, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	first, err := w.Enqueue(time.Now(), time.Now())
	require.NoError(t, err)

	_, err = w.Enqueue(time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Equal(t, first.ID, w.ActiveRun())

	close(runner.block)
	waitFinished(t, recorder)

	// Slot frees up once the run completes
	assert.Eventually(t, func() bool {
		_, err := w.Enqueue(time.Now(), time.Now())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPipelineWorkerRecordsAbort(t *testing.T) {
	runner := &fakeRunner{err: errors.New("fetching vouchers: connection refused")}
	recorder := newFakeRecorder()
	w := NewPipelineWorker(runner, recorder, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	_, err := w.Enqueue(time.Now(), time.Now())
	require.NoError(t, err)

	finished := waitFinished(t, recorder)
	assert.Equal(t, entity.RunStatusAborted, finished.Status)
	assert.Contains(t, finished.Error, "connection refused")
}

func TestPipelineWorkerRequiresStart(t *testing.T) {
	w := NewPipelineWorker(&fakeRunner{}, newFakeRecorder(), zap.NewNop())

	_, err := w.Enqueue(time.Now(), time.Now())
	assert.Error(t, err)
}

func TestPipelineWorkerStopCancelsActiveRun(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	recorder := newFakeRecorder()
	w := NewPipelineWorker(runner, recorder, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))

	_, err := w.Enqueue(time.Now(), time.Now())
	require.NoError(t, err)

	w.Stop()

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.finished) > 0 {
		assert.Equal(t, entity.RunStatusAborted, recorder.finished[0].Status)
	}
}
