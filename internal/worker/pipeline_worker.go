package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/domain/entity"
)

// ErrRunInProgress is returned when a run is requested while another
// run is queued or executing. Tally holds a single company open and
// the IRP throttles per GSTIN, so runs are strictly serialized.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// Runner executes one end-to-end submission run
type Runner interface {
	Run(ctx context.Context, runID string, from, to time.Time) (*entity.RunSummary, error)
}

// RunRecorder persists run state transitions
type RunRecorder interface {
	CreateRun(run *entity.PipelineRun) error
	FinishRun(run *entity.PipelineRun, summary *entity.RunSummary) error
}

// PipelineWorker serializes pipeline runs behind a single-slot queue.
// Enqueue hands a run to the background goroutine and returns
// immediately; callers poll run state through the recorder.
type PipelineWorker struct {
	runner   Runner
	recorder RunRecorder
	logger   *zap.Logger

	queue chan *entity.PipelineRun

	mu        sync.RWMutex
	isRunning bool
	active    string
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewPipelineWorker creates a pipeline worker
func NewPipelineWorker(runner Runner, recorder RunRecorder, logger *zap.Logger) *PipelineWorker {
	return &PipelineWorker{
		runner:   runner,
		recorder: recorder,
		logger:   logger,
		queue:    make(chan *entity.PipelineRun, 1),
	}
}

// Name returns the worker name
func (w *PipelineWorker) Name() string {
	return "pipeline-worker"
}

// Start starts the run loop
func (w *PipelineWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("pipeline worker is already running")
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	go w.loop()
	return nil
}

// Stop cancels the active run, if any, and waits for the loop to exit
func (w *PipelineWorker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done
}

// Enqueue registers and queues a run over [from, to]. Only one run may
// be queued or executing at a time.
func (w *PipelineWorker) Enqueue(from, to time.Time) (*entity.PipelineRun, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return nil, fmt.Errorf("pipeline worker is not running")
	}
	if w.active != "" {
		return nil, ErrRunInProgress
	}

	run := &entity.PipelineRun{
		ID:        uuid.New().String(),
		FromDate:  from,
		ToDate:    to,
		Status:    entity.RunStatusQueued,
		CreatedAt: time.Now(),
	}
	if err := w.recorder.CreateRun(run); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}

	select {
	case w.queue <- run:
		w.active = run.ID
		return run, nil
	default:
		return nil, ErrRunInProgress
	}
}

// ActiveRun returns the ID of the queued or executing run, if any
func (w *PipelineWorker) ActiveRun() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.active
}

func (w *PipelineWorker) loop() {
	defer close(w.done)

	for {
		select {
		case <-w.ctx.Done():
			return
		case run := <-w.queue:
			w.execute(run)
			w.mu.Lock()
			w.active = ""
			w.mu.Unlock()
		}
	}
}

func (w *PipelineWorker) execute(run *entity.PipelineRun) {
	log := w.logger.With(zap.String("run_id", run.ID))
	run.Status = entity.RunStatusRunning
	run.StartedAt = time.Now()

	summary, err := w.runner.Run(w.ctx, run.ID, run.FromDate, run.ToDate)
	run.FinishedAt = time.Now()

	switch {
	case err != nil:
		run.Status = entity.RunStatusAborted
		run.Error = err.Error()
		log.Error("Pipeline run aborted", zap.Error(err))
	default:
		run.Status = entity.RunStatusFinished
		run.StatusLine = summary.StatusLine
		run.Generated = summary.Generated
		run.Failed = summary.Failed
		log.Info("Pipeline run finished", zap.String("result", summary.StatusLine))
	}

	if err := w.recorder.FinishRun(run, summary); err != nil {
		log.Error("Failed to persist run outcome", zap.Error(err))
	}
}
