// Package scheduler executes render tasks over the dirty closure in
// dependency order: Kahn-style in-degree tracking restricted to the dirty
// subgraph, a bounded worker pool, and deterministic dispatch among
// equally-ready nodes.
package scheduler

import (
	"container/heap"
	"context"
	stderrors "errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitesmith/internal/content"
	"git.home.luguber.info/inful/sitesmith/internal/errors"
	"git.home.luguber.info/inful/sitesmith/internal/graph"
	"git.home.luguber.info/inful/sitesmith/internal/logfields"
	"git.home.luguber.info/inful/sitesmith/internal/util/sets"
)

// TaskFunc renders one node. It runs on a worker goroutine and must not
// mutate shared graph state beyond its own node's render-result fields.
type TaskFunc func(ctx context.Context, id content.ID) error

// Options bound a scheduling run.
type Options struct {
	// Workers is the pool size; clamped to [1, dirty count].
	Workers int
	// FailFast stops dispatching new tasks after the first failure.
	// In-flight tasks always run to completion.
	FailFast bool
}

// Result accounts for every node in the dirty closure exactly once:
// succeeded, failed, or skipped.
type Result struct {
	// Succeeded holds executed nodes whose task returned nil, by path order.
	Succeeded []content.ID
	// Failed maps executed (or pre-failed) nodes to their error.
	Failed map[content.ID]*errors.BuildError
	// Skipped holds dirty nodes never executed: a dependency failed, the
	// run aborted under fail-fast, or the context was canceled. Path order.
	Skipped []content.ID
}

type completion struct {
	id  content.ID
	err error
	dur time.Duration
}

// Run schedules every node in dirty and invokes fn once per runnable node.
// A node becomes ready when all its dirty dependencies have succeeded;
// dependents of a failed node are skipped transitively. Nodes carrying a
// pre-existing per-node error are never executed and count as failed.
//
// The returned error is non-nil only for invocation-level conditions:
// context cancellation or an internal ordering invariant violation. Per-node
// failures are reported through Result.Failed.
func Run(ctx context.Context, g *graph.Graph, dirty sets.Set[content.ID], opts Options, fn TaskFunc) (*Result, error) {
	res := &Result{Failed: map[content.ID]*errors.BuildError{}}
	if len(dirty) == 0 {
		return res, nil
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(dirty) {
		workers = len(dirty)
	}

	// In-degree restricted to the dirty subgraph: clean dependencies are
	// already satisfied and never gate a dirty node.
	indeg := make(map[content.ID]int, len(dirty))
	for id := range dirty {
		for _, dep := range g.Uses(id) {
			if dirty.Has(dep) {
				indeg[id]++
			}
		}
	}

	ready := &readyHeap{g: g}
	for id := range dirty {
		if indeg[id] == 0 {
			heap.Push(ready, id)
		}
	}

	tasks := make(chan content.ID)
	completions := make(chan completion, workers)
	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for id := range tasks {
			if err := ctx.Err(); err != nil {
				completions <- completion{id: id, err: err}
				continue
			}
			start := time.Now()
			err := fn(ctx, id)
			completions <- completion{id: id, err: err, dur: time.Since(start)}
		}
	}
	wg.Add(workers)
	for range workers {
		go worker()
	}

	skipped := sets.Set[content.ID]{}
	pending := len(dirty)
	inFlight := 0
	aborted := false

	// skipDependents transitively removes the dirty dependents of a failed
	// or skipped node from scheduling.
	skipDependents := func(id content.ID) {
		work := []content.ID{id}
		for len(work) > 0 {
			cur := work[len(work)-1]
			work = work[:len(work)-1]
			for _, dep := range g.Dependents(cur) {
				if !dirty.Has(dep) || skipped.Has(dep) {
					continue
				}
				if _, done := res.Failed[dep]; done {
					continue
				}
				skipped.Add(dep)
				pending--
				work = append(work, dep)
			}
		}
	}

	fail := func(id content.ID, err error) {
		var be *errors.BuildError
		if !stderrors.As(err, &be) {
			be = errors.Wrap(err, errors.CategoryRender, "render task").WithPath(g.Node(id).Path)
		}
		res.Failed[id] = be
		skipDependents(id)
		if opts.FailFast {
			aborted = true
		}
	}

	succeed := func(id content.ID) {
		res.Succeeded = append(res.Succeeded, id)
		for _, dep := range g.Dependents(id) {
			if !dirty.Has(dep) || skipped.Has(dep) {
				continue
			}
			indeg[dep]--
			if indeg[dep] == 0 {
				heap.Push(ready, dep)
			}
		}
	}

	var runErr error
	for pending > 0 {
		if err := ctx.Err(); err != nil && !aborted {
			aborted = true
			runErr = err
		}

		// Dispatch ready nodes up to the pool bound. Pre-failed nodes
		// complete inline without occupying a worker.
		for !aborted && ready.Len() > 0 && inFlight < workers {
			id := heap.Pop(ready).(content.ID)
			node := g.Node(id)
			if node.Failed() {
				pending--
				fail(id, node.Err)
				continue
			}
			tasks <- id
			inFlight++
		}

		if pending == 0 {
			// Inline completions of pre-failed nodes can settle the whole
			// closure without dispatching a single task.
			break
		}
		if inFlight == 0 {
			if aborted {
				break
			}
			if ready.Len() == 0 {
				// Every remaining node waits on a dependency that will
				// never complete. Resolution rejects cycles, so this is
				// an ordering invariant violation.
				runErr = errors.Newf(errors.CategoryInternal,
					"scheduler stalled with %d nodes pending", pending)
				break
			}
			continue
		}

		c := <-completions
		inFlight--
		pending--
		switch {
		case c.err != nil && stderrors.Is(c.err, context.Canceled),
			c.err != nil && stderrors.Is(c.err, context.DeadlineExceeded):
			skipped.Add(c.id)
			aborted = true
			if runErr == nil {
				runErr = c.err
			}
			skipDependents(c.id)
		case c.err != nil:
			slog.Debug("Render task failed",
				logfields.Node(g.Node(c.id).Path),
				logfields.Kind(string(g.Node(c.id).Kind)),
				logfields.Error(c.err))
			fail(c.id, c.err)
		default:
			slog.Debug("Render task complete",
				logfields.Node(g.Node(c.id).Path),
				logfields.Kind(string(g.Node(c.id).Kind)),
				logfields.DurationMS(float64(c.dur.Microseconds())/1000))
			succeed(c.id)
		}
	}

	close(tasks)
	go func() {
		// Drain stragglers so in-flight workers can finish after an abort.
		for range completions {
		}
	}()
	wg.Wait()
	close(completions)

	// Everything dirty that never executed is skipped.
	for id := range dirty {
		if _, ok := res.Failed[id]; ok {
			continue
		}
		skipped.Add(id)
	}
	for _, id := range res.Succeeded {
		skipped.Delete(id)
	}
	res.Skipped = sortByPath(g, skipped)
	sortIDs(g, res.Succeeded)

	slog.Debug("Scheduling complete",
		logfields.Workers(workers),
		slog.Int("succeeded", len(res.Succeeded)),
		slog.Int("failed", len(res.Failed)),
		slog.Int("skipped", len(res.Skipped)))
	return res, runErr
}

func sortByPath(g *graph.Graph, ids sets.Set[content.ID]) []content.ID {
	out := make([]content.ID, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sortIDs(g, out)
	return out
}

func sortIDs(g *graph.Graph, ids []content.ID) {
	sort.Slice(ids, func(i, j int) bool {
		return g.Node(ids[i]).Path < g.Node(ids[j]).Path
	})
}
