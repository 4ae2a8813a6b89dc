package workflow

import (
	"context"
	"fmt"
	"sync"
)

// branch is one independent side effect in a fan-out step.
type branch struct {
	name string
	fn   func(ctx context.Context) error
}

// fanOut runs branches concurrently and joins them. Each branch gets its
// own collaborator timeout; a failing or panicking branch is logged and
// does not abort its siblings or the workflow.
func (e *Engine) fanOut(ctx context.Context, workflowID string, branches []branch) {
	var wg sync.WaitGroup
	for _, b := range branches {
		wg.Add(1)
		go func(b branch) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("side effect panicked",
						"workflow_id", workflowID,
						"step", b.name,
						"panic", fmt.Sprint(r))
				}
			}()

			stepCtx, cancel := e.collabCtx(ctx)
			defer cancel()

			if err := b.fn(stepCtx); err != nil {
				e.logger.Error("side effect failed",
					"workflow_id", workflowID,
					"step", b.name,
					"error", err)
			}
		}(b)
	}
	wg.Wait()
}
