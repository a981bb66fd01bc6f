package operation

import (
	"context"
	"time"

	"github.com/contentpacks/cpack/internal/store"
)

// Getter resolves an operation_id to its current snapshot, or nil if the id
// is unknown. *store.OperationRegistry.Get satisfies this directly.
type Getter func(id string) *store.Operation

// PollOperation is the client-side polling contract spec.md §4.7 names:
// poll every interval until the operation reaches a terminal status or
// maxSeconds elapses, invoking onStatus with each snapshot observed. On
// timeout it returns the last snapshot alongside a KindTimeout error; the
// operation itself keeps running server-side. Modeled on the teacher's
// WebInterviewer.Ask (internal/server/interviewer.go): a timer race against
// the thing being waited on, context-cancellable.
func PollOperation(ctx context.Context, get Getter, id string, maxSeconds int, interval time.Duration, onStatus func(*store.Operation)) (*store.Operation, error) {
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.Now().Add(time.Duration(maxSeconds) * time.Second)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *store.Operation
	for {
		op := get(id)
		if op == nil {
			return nil, store.ErrNotFound("operation", id)
		}
		last = op
		if onStatus != nil {
			onStatus(op)
		}
		if op.Status.Terminal() {
			return op, nil
		}
		if !time.Now().Before(deadline) {
			return last, store.NewError(store.KindTimeout, "polling operation %s timed out after %ds", id, maxSeconds)
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
