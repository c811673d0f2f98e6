package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dshills/codescope-mcp/internal/protocol"
	"github.com/dshills/codescope-mcp/internal/transport"
)

// pendingEntry tracks one in-flight request.
type pendingEntry struct {
	cancel    context.CancelFunc
	started   time.Time
	cancelled bool
}

// pendingTable maps request identifier keys to in-flight work. Add, cancel,
// and complete are atomic with respect to each other; an identifier is
// reusable only after its entry is removed.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]*pendingEntry)}
}

// add registers an identifier. It fails when the identifier is already
// pending; the caller must reject the duplicate request.
func (t *pendingTable) add(key string, cancel context.CancelFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[key]; exists {
		return false
	}
	t.entries[key] = &pendingEntry{cancel: cancel, started: time.Now()}
	return true
}

// cancel signals the pending request's handler to stop and reports how long
// the request had been in flight. The entry stays in the table so complete
// still removes it exactly once; the flag makes the eventual completion
// discard its response.
func (t *pendingTable) cancel(key string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		return 0, false
	}
	e.cancelled = true
	e.cancel()
	return time.Since(e.started), true
}

// complete removes the entry and reports whether a response may be written.
// The second return is false when the identifier was never pending.
func (t *pendingTable) complete(key string) (mayRespond, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, exists := t.entries[key]
	if !exists {
		return false, false
	}
	delete(t.entries, key)
	e.cancel() // release the request context
	return !e.cancelled, true
}

// drain cancels every pending request, used on shutdown and transport close.
func (t *pendingTable) drain() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		e.cancelled = true
		e.cancel()
	}
}

// size returns the number of in-flight requests.
func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// dispatch runs a request on its own goroutine and writes exactly one
// response unless the request is cancelled first.
func (s *Server) dispatch(ctx context.Context, framer *transport.Framer, msg *protocol.Message) {
	key := msg.ID.Key()
	reqCtx, cancel := context.WithCancel(ctx)
	if !s.pending.add(key, cancel) {
		cancel()
		s.writeError(framer, msg.ID, protocol.Errorf(protocol.CodeInvalidRequest,
			"duplicate request id %s", key))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := s.sem.Acquire(reqCtx, 1); err != nil {
			// Cancelled while queued; complete discards the response.
			s.finish(framer, key, msg.ID, nil, protocol.NewError(protocol.CodeInternalError, "request aborted"))
			return
		}
		defer s.sem.Release(1)

		result, perr := s.invoke(reqCtx, msg.Method, msg.Params)
		if reqCtx.Err() != nil {
			perr = protocol.NewError(protocol.CodeInternalError, "request cancelled")
		}
		s.finish(framer, key, msg.ID, result, perr)
	}()
}

// finish resolves a pending request: it removes the table entry and, unless
// the request was cancelled, writes the single response for it.
func (s *Server) finish(framer *transport.Framer, key string, id *protocol.ID, result interface{}, perr *protocol.Error) {
	mayRespond, ok := s.pending.complete(key)
	if !ok || !mayRespond {
		s.logger.Debug("discarding response for cancelled request", "id", key)
		return
	}
	if perr != nil {
		s.writeError(framer, id, perr)
		return
	}
	s.writeResult(framer, id, result)
}

// invoke routes a dispatched request to its handler.
func (s *Server) invoke(ctx context.Context, method string, params json.RawMessage) (interface{}, *protocol.Error) {
	switch method {
	case methodToolsList:
		return toolsListResult{Tools: s.registry.Descriptors()}, nil
	case methodToolsCall:
		return s.invokeTool(ctx, params)
	case methodResourcesList:
		return s.resourcesList(ctx)
	case methodResourcesRead:
		return s.resourcesRead(ctx, params)
	case methodPromptsList:
		return s.promptsList(ctx)
	case methodPromptsGet:
		return s.promptsGet(ctx, params)
	case methodCompletion:
		return s.completionComplete(ctx, params)
	default:
		return nil, protocol.Errorf(protocol.CodeMethodNotFound, "method not found: %s", method)
	}
}

// invokeTool validates tools/call parameters schema-first and runs the
// resolved handler. No provider call happens on invalid input.
func (s *Server) invokeTool(ctx context.Context, params json.RawMessage) (interface{}, *protocol.Error) {
	var call toolsCallParams
	if len(params) == 0 {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "missing params")
	}
	if err := json.Unmarshal(params, &call); err != nil {
		return nil, protocol.Errorf(protocol.CodeInvalidParams, "invalid tools/call parameters: %v", err)
	}
	if call.Name == "" {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "missing tool name")
	}

	reg, ok := s.registry.Resolve(call.Name)
	if !ok {
		return nil, protocol.Errorf(protocol.CodeMethodNotFound, "unknown tool: %s", call.Name)
	}
	if perr := s.registry.Validate(call.Name, call.Arguments); perr != nil {
		return nil, perr
	}
	return reg.handler(ctx, call.Arguments)
}
