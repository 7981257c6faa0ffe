package batch

import (
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
)

// runPipelined overlaps adjacent images: each in-flight image gets its
// own stream, so image N's transfer-out can proceed while image N+1's
// transfer-in is already queued. Each image's own stage order is still
// enforced by its stream; only work from different images interleaves.
func (o *Orchestrator) runPipelined(queue *JobQueue, res *Result) {
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)

	for {
		img, ok := queue.Dequeue()
		if !ok {
			break
		}
		g.Go(func() error {
			stream := o.dev.NewStream()
			defer stream.Close()

			fail := o.processOne(stream, img)

			mu.Lock()
			defer mu.Unlock()
			if fail != nil {
				log.Printf("❌ %s failed at %s: %v", img.ID, fail.Stage, fail.Err)
				res.Failures = append(res.Failures, *fail)
			} else {
				res.Successes++
			}
			// Per-image failures never cancel the group; the batch
			// always runs to the end.
			return nil
		})
	}
	g.Wait()
}
