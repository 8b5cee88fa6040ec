// Package tracker implements the memoizing, parallel request scheduler
// every concrete request in internal/requests runs through. A single
// dispatch goroutine owns the request graph exactly the way
// original_source/crates/parcel/src/request_tracker/request_tracker.rs's
// RequestTracker owns its StableDiGraph from inside one mpsc receive
// loop: every mutation to node state and parent/child edges happens on
// that one goroutine, while the requests' own Run methods execute
// concurrently on the worker goroutines the loop spawns. Sub-request
// fan-out uses golang.org/x/sync/errgroup, the same library the teacher's
// esmdev package already uses for its own parallel package prebundling;
// singleflight collapses concurrently-issued identical sub-requests
// before they even reach the dispatch loop.
package tracker

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/please-build/js-build-core/internal/diag"
	"github.com/please-build/js-build-core/internal/fsys"
	"github.com/please-build/js-build-core/internal/plugins"
)

// RequestID is a 64-bit hash of a request's discriminant plus its stable,
// gob-encodable fields. Two requests with equal RequestID must be
// behaviorally interchangeable (§3).
type RequestID uint64

// HashRequest computes a RequestID from a discriminant byte (one per
// concrete request kind, so e.g. a PathRequest and an AssetRequest with
// coincidentally identical field encodings never collide) and the
// request's stable fields.
func HashRequest(discriminant byte, stableFields any) RequestID {
	h := sha256.New()
	h.Write([]byte{discriminant})
	if err := gob.NewEncoder(h).Encode(stableFields); err != nil {
		// Stable fields are always plain data (strings, ints, slices of
		// those); a gob encode failure here means a request was built with
		// an un-encodable field, a programmer error caught by tests.
		panic(fmt.Sprintf("tracker: hash request: %v", err))
	}
	sum := h.Sum(nil)
	return RequestID(binary.LittleEndian.Uint64(sum[:8]))
}

type nodeState int

const (
	stateIncomplete nodeState = iota
	stateValid
	stateError
)

type requestNode struct {
	state         nodeState
	result        any
	err           error
	invalidations []string
}

// Request is implemented by every concrete request kind (Entry, Target,
// Path, Asset, AssetGraph, ...). Run receives a RunContext scoped to this
// request's position in the graph and returns its result plus the file
// paths/markers that should invalidate a cached result on a future build.
type Request interface {
	ID() RequestID
	Run(ctx *RunContext) (result any, invalidations []string, err error)
}

// Reporter receives build events. The Tracker hands its one Reporter to
// every request's RunContext; fanning events out to several sinks is the
// job of the Reporter passed in (buildapi's compositeReporter).
type Reporter interface {
	ReportDiagnostic(diag.Diagnostic)
	ReportProgress(message string)
}

type runMsg struct {
	req       Request
	parentID  RequestID
	hasParent bool
	reply     chan runResult
}

type resultMsg struct {
	id            RequestID
	parentID      RequestID
	hasParent     bool
	value         any
	invalidations []string
	err           error
	reply         chan runResult
}

type runResult struct {
	value any
	err   error
}

// Tracker is the memoizing scheduler. Nodes and edges are mutated only by
// the single goroutine started in New; every other method communicates
// with it over an unbuffered channel.
type Tracker struct {
	queue chan any // runMsg | resultMsg

	nodes map[RequestID]*requestNode
	// children maps a parent request to every request it has ever queued,
	// and parents is its inverse; both are used by incremental-build
	// invalidation walks, which must mark every ancestor of a directly
	// invalidated node stale too.
	children map[RequestID][]RequestID
	parents  map[RequestID][]RequestID
	// invalidationIndex maps a file path (or the "" always-invalidate
	// marker) to every request whose last run listed it.
	invalidationIndex map[string][]RequestID

	group singleflight.Group

	fs       fsys.FS
	plugins  *plugins.Registry
	reporter Reporter

	done chan struct{}
}

// New constructs a Tracker and starts its dispatch loop. Close must be
// called to stop the loop once the tracker is no longer needed.
func New(fs fsys.FS, registry *plugins.Registry, reporter Reporter) *Tracker {
	t := &Tracker{
		queue:             make(chan any),
		nodes:             make(map[RequestID]*requestNode),
		children:          make(map[RequestID][]RequestID),
		parents:           make(map[RequestID][]RequestID),
		invalidationIndex: make(map[string][]RequestID),
		fs:                fs,
		plugins:           registry,
		reporter:          reporter,
		done:              make(chan struct{}),
	}
	go t.loop()
	return t
}

// Close stops the dispatch loop. In-flight requests whose results have
// not yet reached the loop are dropped.
func (t *Tracker) Close() {
	close(t.queue)
	<-t.done
}

// RunRequest runs req as a top-level request, blocking until the result is
// available. No parent edge is recorded for it: the request graph has no
// root node. Calling
// RunRequest twice with requests of equal RequestID returns the cached
// result on the second call; this is the tracker's sole memoization
// mechanism.
func (t *Tracker) RunRequest(ctx context.Context, req Request) (any, error) {
	reply := make(chan runResult, 1)
	select {
	case t.queue <- runMsg{req: req, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// loop is the single goroutine that owns nodes/children and decides what
// to execute. It mirrors request_tracker.rs's run_request receive loop:
// a RunRequest message either spawns req.Run on a fresh goroutine (if the
// node isn't already Valid) or replies immediately from cache; a
// resultMsg stores the outcome and links the parent edge.
func (t *Tracker) loop() {
	defer close(t.done)
	for msg := range t.queue {
		switch m := msg.(type) {
		case runMsg:
			t.handleRun(m)
		case resultMsg:
			t.handleResult(m)
		case invalidateMsg:
			delete(t.nodes, m.id)
			close(m.done)
		case nextBuildMsg:
			m.done <- t.handleNextBuild(m)
		}
	}
}

func (t *Tracker) handleRun(m runMsg) {
	id := m.req.ID()
	node, existed := t.nodes[id]
	if !existed {
		node = &requestNode{state: stateIncomplete}
		t.nodes[id] = node
	}
	if existed && node.state == stateValid {
		if m.reply != nil {
			m.reply <- runResult{value: node.result}
		}
		t.linkParent(id, m.parentID, m.hasParent)
		return
	}
	if existed && node.state == stateError {
		if m.reply != nil {
			m.reply <- runResult{err: node.err}
		}
		t.linkParent(id, m.parentID, m.hasParent)
		return
	}
	node.state = stateIncomplete
	node.invalidations = nil

	runCtx := &RunContext{
		tracker:   t,
		requestID: id,
		fs:        t.fs,
		plugins:   t.plugins,
		reporter:  t.reporter,
	}
	go func() {
		value, invalidations, err := m.req.Run(runCtx)
		t.queue <- resultMsg{
			id: id, parentID: m.parentID, hasParent: m.hasParent,
			value: value, invalidations: invalidations, err: err,
			reply: m.reply,
		}
	}()
}

func (t *Tracker) handleResult(m resultMsg) {
	node := t.nodes[m.id]
	if node.state != stateValid {
		if m.err != nil {
			node.state = stateError
			node.err = m.err
		} else {
			node.state = stateValid
			node.result = m.value
		}
		node.invalidations = m.invalidations
		for _, path := range m.invalidations {
			t.invalidationIndex[path] = append(t.invalidationIndex[path], m.id)
		}
	}
	t.linkParent(m.id, m.parentID, m.hasParent)
	if m.reply != nil {
		m.reply <- runResult{value: node.result, err: node.err}
	}
}

func (t *Tracker) linkParent(id, parentID RequestID, hasParent bool) {
	if !hasParent {
		return
	}
	for _, existing := range t.children[parentID] {
		if existing == id {
			return
		}
	}
	t.children[parentID] = append(t.children[parentID], id)
	t.parents[id] = append(t.parents[id], parentID)
}

// Invalidate drops the cached node for id so the next RunRequest for it
// re-runs. NextBuild does not call it; it drops the nodes its changed
// paths reach directly inside the dispatch loop.
func (t *Tracker) Invalidate(id RequestID) {
	reply := make(chan struct{})
	t.queue <- invalidateMsg{id: id, done: reply}
	<-reply
}

type invalidateMsg struct {
	id   RequestID
	done chan struct{}
}
