package generation

import (
	"context"
	"sync"

	"github.com/Jazys/instagen-sub000/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Worker represents a telemetry recording worker that processes recording tasks
type Worker struct {
	recorder *Recorder
	tasks    chan RecordTask
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// RecordTask represents a telemetry recording task
type RecordTask struct {
	Params    models.RecordGenerationParams
	RequestID string
}

// NewWorker creates a new recording worker with the specified pool size
func NewWorker(recorder *Recorder, poolSize, bufferSize int) *Worker {
	if poolSize <= 0 {
		poolSize = 2
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}

	w := &Worker{
		recorder: recorder,
		tasks:    make(chan RecordTask, bufferSize),
		stopped:  make(chan struct{}),
	}

	for i := 0; i < poolSize; i++ {
		w.wg.Add(1)
		go w.run()
	}

	return w
}

// Recorder exposes the underlying recorder for synchronous reads.
func (w *Worker) Recorder() *Recorder {
	return w.recorder
}

// Submit submits a recording task to the worker pool
func (w *Worker) Submit(params models.RecordGenerationParams) {
	select {
	case <-w.stopped:
		fiberlog.Warnf("[%s] Worker stopped, cannot submit generation record", params.RequestID)
		return
	case w.tasks <- RecordTask{Params: params, RequestID: params.RequestID}:
		// Task submitted successfully
	default:
		// Buffer full, log warning and drop task
		fiberlog.Warnf("[%s] Generation record buffer full, dropping task", params.RequestID)
	}
}

// run processes tasks from the queue
func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopped:
			// Drain remaining tasks before exiting
			for {
				select {
				case task := <-w.tasks:
					w.record(task)
				default:
					return
				}
			}
		case task := <-w.tasks:
			w.record(task)
		}
	}
}

func (w *Worker) record(task RecordTask) {
	if _, err := w.recorder.Record(context.Background(), task.Params); err != nil {
		fiberlog.Errorf("[%s] Failed to record generation: %v", task.RequestID, err)
	}
}

// Stop gracefully stops the worker pool
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopped)
		w.wg.Wait()
	})
}
