package tracker

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/please-build/js-build-core/internal/fsys"
	"github.com/please-build/js-build-core/internal/plugins"
)

// RunContext is handed to a Request's Run method. It exposes the
// collaborators every request needs (file system, plugin registry,
// reporter) and the sub-request channel requests use to recurse into the
// tracker.
type RunContext struct {
	tracker   *Tracker
	requestID RequestID

	fs       fsys.FS
	plugins  *plugins.Registry
	reporter Reporter
}

// FS returns the file system abstraction requests should use for all I/O.
func (c *RunContext) FS() fsys.FS { return c.fs }

// Plugins returns the plugin registry resolved for this build.
func (c *RunContext) Plugins() *plugins.Registry { return c.plugins }

// Reporter returns the composite reporter every diagnostic and progress
// message should go through.
func (c *RunContext) Reporter() Reporter { return c.reporter }

// QueueRequest dispatches child through the tracker as a sub-request of
// the request that owns this context, blocking until it completes.
// Concurrent calls for a child with the same RequestID (issued by
// sibling workers racing to request the same thing, e.g. two assets
// importing the same dependency) are collapsed by singleflight before
// they reach the dispatch loop, so only one of them actually runs.
func (c *RunContext) QueueRequest(child Request) (any, error) {
	id := child.ID()
	key := fmt.Sprintf("%d", id)
	v, err, _ := c.tracker.group.Do(key, func() (any, error) {
		reply := make(chan runResult, 1)
		c.tracker.queue <- runMsg{req: child, parentID: c.requestID, hasParent: true, reply: reply}
		res := <-reply
		return res.value, res.err
	})
	return v, err
}

// QueueAll dispatches every request in children concurrently via
// errgroup, returning their results in the same order or the first
// error encountered. This is the Go analog of original_source's
// Rust rayon fan-out: a request that needs N independent sub-requests
// can use this instead of calling QueueRequest in a loop so siblings run
// in parallel. None of the requests in internal/requests call it;
// AssetGraphRequest starts one goroutine per QueueRequest instead.
func (c *RunContext) QueueAll(children []Request) ([]any, error) {
	results := make([]any, len(children))
	var g errgroup.Group
	for i, child := range children {
		i, child := i, child
		g.Go(func() error {
			v, err := c.QueueRequest(child)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
