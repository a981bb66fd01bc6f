package operation

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/contentpacks/cpack/internal/store"
)

// ProgressFunc lets a Handler report incremental progress; it updates the
// registry and fans the same event out over the operation's Broadcaster.
type ProgressFunc func(pct int, message string)

// Handler runs the actual work behind one Operation. It returns the opaque
// result_data JSON to store on success, or an error (whose message becomes
// the failure message) on failure.
type Handler func(ctx context.Context, op *store.Operation, progress ProgressFunc) (resultData string, err error)

type job struct {
	op      *store.Operation
	handler Handler
}

// Runtime is the Operation Runtime (spec.md §4.7): it owns the Operation
// registry, a bounded job queue, and a fixed pool of workers that run off
// the request-serving path (spec.md §5 "separate worker pool ... to avoid
// head-of-line blocking"). Modeled on the teacher's server.Broadcaster for
// progress fan-out and on pack repo act3-ai-gnoci's `pool.New().
// WithMaxGoroutines` bounded fan-out for the worker pool itself.
type Runtime struct {
	store        *store.Store
	broadcasters *broadcasterRegistry
	jobs         chan job
	pool         *pool.Pool
	cancel       context.CancelFunc
	ctx          context.Context
}

// New wires a Runtime backed by st, with the given queue capacity and
// worker count. The workers start draining the queue before New returns;
// call Shutdown to stop them.
func New(st *store.Store, queueCapacity, workers int) *Runtime {
	if queueCapacity < 1 {
		queueCapacity = 1
	}
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		store:        st,
		broadcasters: newBroadcasterRegistry(),
		jobs:         make(chan job, queueCapacity),
		pool:         pool.New().WithMaxGoroutines(workers),
		cancel:       cancel,
		ctx:          ctx,
	}
	for i := 0; i < workers; i++ {
		rt.pool.Go(rt.worker)
	}
	return rt
}

func (rt *Runtime) worker() {
	for {
		select {
		case <-rt.ctx.Done():
			return
		case j, ok := <-rt.jobs:
			if !ok {
				return
			}
			rt.run(j)
		}
	}
}

// Submit enqueues a new Operation of the given type and returns its
// snapshot immediately (status=queued). If the queue is at capacity it
// returns a KindQueueFull error instead of blocking or dropping the
// request silently (spec.md §5 "Back-pressure").
func (rt *Runtime) Submit(typ store.OperationType, userID, message string, handler Handler) (*store.Operation, error) {
	op := rt.store.Operations.Create(typ, userID, message)
	bc := rt.broadcasters.create(op.ID)

	select {
	case rt.jobs <- job{op: op, handler: handler}:
		return op, nil
	default:
		bc.Close()
		rt.broadcasters.remove(op.ID)
		_ = rt.store.Operations.Delete(op.ID)
		return nil, store.NewError(store.KindQueueFull, "operation queue is at capacity")
	}
}

func (rt *Runtime) run(j job) {
	bc, _ := rt.broadcasters.get(j.op.ID)
	defer func() {
		if bc != nil {
			bc.Close()
			rt.broadcasters.remove(j.op.ID)
		}
	}()

	if _, err := rt.store.Operations.Start(j.op.ID); err != nil {
		return
	}
	if bc != nil {
		bc.Send(map[string]any{"status": string(store.OpRunning), "progress": 0})
	}

	progress := func(pct int, message string) {
		if _, err := rt.store.Operations.SetProgress(j.op.ID, pct, message); err != nil {
			return
		}
		if bc != nil {
			bc.Send(map[string]any{"status": string(store.OpRunning), "progress": pct, "message": message})
		}
	}

	resultData, err := j.handler(rt.ctx, j.op, progress)
	if err != nil {
		op, _ := rt.store.Operations.Fail(j.op.ID, err.Error(), resultData)
		if bc != nil && op != nil {
			bc.Send(map[string]any{"status": string(op.Status), "message": op.Message})
		}
		return
	}
	op, _ := rt.store.Operations.Complete(j.op.ID, "done", resultData)
	if bc != nil && op != nil {
		bc.Send(map[string]any{"status": string(op.Status), "progress": 100})
	}
}

// Get returns the current snapshot of an operation, or nil if unknown.
func (rt *Runtime) Get(id string) *store.Operation {
	return rt.store.Operations.Get(id)
}

// Subscribe returns the live Broadcaster for an in-flight operation, if any.
func (rt *Runtime) Subscribe(id string) (*Broadcaster, bool) {
	return rt.broadcasters.get(id)
}

// Poll is the server-side convenience wrapper around PollOperation, reading
// through this Runtime's registry.
func (rt *Runtime) Poll(ctx context.Context, id string, maxSeconds int, interval time.Duration, onStatus func(*store.Operation)) (*store.Operation, error) {
	return PollOperation(ctx, rt.Get, id, maxSeconds, interval, onStatus)
}

// StartRetentionSweeper runs Sweep on a ticker until ctx is canceled,
// deleting operations older than retention. onlyCompleted preserves
// still-running records regardless of age (spec.md §4.7 "Retention").
func (rt *Runtime) StartRetentionSweeper(ctx context.Context, interval, retention time.Duration, onlyCompleted bool) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-retention)
				rt.store.Operations.Sweep(cutoff, onlyCompleted)
			}
		}
	}()
}

// Shutdown stops accepting new work, drains in-flight jobs, and waits for
// every worker goroutine to return.
func (rt *Runtime) Shutdown() error {
	close(rt.jobs)
	rt.pool.Wait()
	rt.cancel()
	return nil
}
