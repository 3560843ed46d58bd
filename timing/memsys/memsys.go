// Package memsys orchestrates the cache and main memory behind one
// asynchronous request/response interface keyed by requester id.
//
// Each requester (a pipeline stage) has at most one request in flight. The
// cache-hit delay unit and the memory port are each single-ported: a second
// requester observes StatusBusy and must retry on a later cycle.
package memsys

import (
	"fmt"

	"github.com/sarchlab/pipesim/timing/cache"
	"github.com/sarchlab/pipesim/timing/memory"
)

// Requester ids used by the pipeline.
const (
	RequesterFetch  = "fetch"
	RequesterMemory = "memory"
)

// Status is the answer to a request or a poll.
type Status uint8

// Response statuses.
const (
	// StatusDone means the response carries the result.
	StatusDone Status = iota
	// StatusWait means the request is in flight; poll again next cycle.
	StatusWait
	// StatusBusy means a shared port is held by another requester; the
	// request was not accepted and must be reissued.
	StatusBusy
	// StatusError means the request failed.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusWait:
		return "wait"
	case StatusBusy:
		return "busy"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Source tells where read data came from.
type Source uint8

// Data sources.
const (
	SourceNone Source = iota
	SourceCache
	SourceMemory
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceMemory:
		return "memory"
	}
	return "none"
}

// Response is the result of a request.
type Response struct {
	Status Status
	Data   uint32
	Source Source
	Err    error
}

// Statistics holds memory system counters. Reads and Writes count accepted
// requests; busy retries are not counted.
type Statistics struct {
	Reads  uint64
	Writes uint64
	Hits   uint64
	Misses uint64
}

// HitRate returns hits / (hits + misses).
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Config holds the memory system timing.
type Config struct {
	// CacheHitLatency is the number of cycles a cache hit takes. Zero means
	// a hit completes at request time.
	CacheHitLatency uint64
}

type phase uint8

const (
	phaseCacheDelay phase = iota
	phaseMemory
)

// request is an outstanding request of one requester.
type request struct {
	id        string
	write     bool
	addr      uint32
	value     uint32
	phase     phase
	remaining uint64

	// data captured on a cache hit
	data uint32
}

// System is the memory hierarchy seen by the pipeline.
type System struct {
	config Config
	cache  *cache.Cache
	store  *memory.Store

	requests  map[string]*request
	results   map[string]Response
	cachePort *request

	stats Statistics
}

// New creates a memory system over a cache and a store.
func New(config Config, c *cache.Cache, store *memory.Store) *System {
	return &System{
		config:   config,
		cache:    c,
		store:    store,
		requests: make(map[string]*request),
		results:  make(map[string]Response),
	}
}

// Cache returns the cache.
func (s *System) Cache() *cache.Cache {
	return s.cache
}

// Store returns the main memory.
func (s *System) Store() *memory.Store {
	return s.store
}

// Stats returns the counters.
func (s *System) Stats() Statistics {
	return s.stats
}

// Read requests the word at addr for id.
func (s *System) Read(addr uint32, id string) Response {
	if resp, ok := s.takeResult(id); ok {
		return resp
	}
	if _, ok := s.requests[id]; ok {
		return Response{Status: StatusWait}
	}
	if err := s.checkAddr(addr); err != nil {
		return Response{Status: StatusError, Err: err}
	}

	hit := s.cache.Read(addr)
	if hit.Hit {
		return s.readHit(addr, id, hit.Data)
	}

	status, err := s.store.RequestRead(addr, id)
	switch status {
	case memory.StatusBusy:
		return Response{Status: StatusBusy}
	case memory.StatusError:
		return Response{Status: StatusError, Err: err}
	}

	s.stats.Reads++
	s.stats.Misses++
	s.requests[id] = &request{id: id, addr: addr, phase: phaseMemory}

	// A zero-latency memory finishes at request time.
	if s.store.Result(id) != nil {
		if err := s.completeMemory(id); err != nil {
			return Response{Status: StatusError, Err: err}
		}
		resp, _ := s.takeResult(id)
		return resp
	}

	return Response{Status: StatusWait}
}

func (s *System) readHit(addr uint32, id string, data uint32) Response {
	if s.config.CacheHitLatency == 0 {
		s.stats.Reads++
		s.stats.Hits++
		return Response{Status: StatusDone, Data: data, Source: SourceCache}
	}

	if s.cachePort != nil {
		return Response{Status: StatusBusy}
	}

	s.stats.Reads++
	s.stats.Hits++
	req := &request{
		id:        id,
		addr:      addr,
		phase:     phaseCacheDelay,
		remaining: s.config.CacheHitLatency,
		data:      data,
	}
	s.requests[id] = req
	s.cachePort = req

	return Response{Status: StatusWait}
}

// Write stores value at addr for id. The cache is updated at once when the
// line is present and the word is always written through to memory. The
// memory port must be free; otherwise the request is refused with
// StatusBusy before anything changes.
func (s *System) Write(addr, value uint32, id string) Response {
	if resp, ok := s.takeResult(id); ok {
		return resp
	}
	if _, ok := s.requests[id]; ok {
		return Response{Status: StatusWait}
	}
	if err := s.checkAddr(addr); err != nil {
		return Response{Status: StatusError, Err: err}
	}
	if s.store.Busy() {
		return Response{Status: StatusBusy}
	}

	status, err := s.store.RequestWrite(addr, value, id)
	switch status {
	case memory.StatusBusy:
		return Response{Status: StatusBusy}
	case memory.StatusError:
		return Response{Status: StatusError, Err: err}
	}

	s.stats.Writes++
	if s.cache.Write(addr, value).Hit {
		s.stats.Hits++
	} else {
		s.stats.Misses++
	}
	s.requests[id] = &request{id: id, write: true, addr: addr, value: value, phase: phaseMemory}

	if s.store.Result(id) != nil {
		if err := s.completeMemory(id); err != nil {
			return Response{Status: StatusError, Err: err}
		}
		resp, _ := s.takeResult(id)
		return resp
	}

	return Response{Status: StatusWait}
}

// ProcessCycle advances the cache-hit delay and the memory port by one
// cycle and moves completed requests into the results.
func (s *System) ProcessCycle() {
	if req := s.cachePort; req != nil {
		if req.remaining > 0 {
			req.remaining--
		}
		if req.remaining == 0 {
			s.cachePort = nil
			delete(s.requests, req.id)
			s.results[req.id] = Response{Status: StatusDone, Data: req.data, Source: SourceCache}
		}
	}

	owner := s.store.Owner()
	done, err := s.store.Tick()
	if err != nil {
		delete(s.requests, owner)
		s.results[owner] = Response{Status: StatusError, Err: err}
		return
	}
	if done {
		if err := s.completeMemory(owner); err != nil {
			s.results[owner] = Response{Status: StatusError, Err: err}
		}
	}
}

// completeMemory consumes the store's result for id, fills the cache on a
// read and frees the memory port.
func (s *System) completeMemory(id string) error {
	result := s.store.Result(id)
	s.store.ClearOperation(id)
	delete(s.requests, id)

	if result == nil {
		return fmt.Errorf("no memory result for %q", id)
	}

	if result.Write {
		s.results[id] = Response{Status: StatusDone, Data: result.Data, Source: SourceMemory}
		return nil
	}

	err := s.cache.FillLine(s.cache.Index(result.Addr), s.cache.Tag(result.Addr), result.Line)
	if err != nil {
		return fmt.Errorf("filling line for address %d: %w", result.Addr, err)
	}

	s.results[id] = Response{Status: StatusDone, Data: result.Data, Source: SourceMemory}
	return nil
}

func (s *System) checkAddr(addr uint32) error {
	if uint64(addr) >= uint64(s.store.Size()) {
		return fmt.Errorf("%w: %d not in [0, %d)", memory.ErrInvalidAddress, addr, s.store.Size())
	}
	return nil
}

func (s *System) takeResult(id string) (Response, bool) {
	resp, ok := s.results[id]
	if ok {
		delete(s.results, id)
	}
	return resp, ok
}

// RequestResult consumes and returns the ready result of id, or nil.
func (s *System) RequestResult(id string) *Response {
	resp, ok := s.takeResult(id)
	if !ok {
		return nil
	}
	return &resp
}

// HasPendingRequest reports whether id has a request in flight.
func (s *System) HasPendingRequest(id string) bool {
	_, ok := s.requests[id]
	return ok
}

// HasResult reports whether id has a result waiting to be consumed.
func (s *System) HasResult(id string) bool {
	_, ok := s.results[id]
	return ok
}

// IsBusyForStage reports whether a request from id would not complete now:
// either id already has one in flight or a port it may need is held by
// another requester.
func (s *System) IsBusyForStage(id string) bool {
	if s.HasPendingRequest(id) {
		return true
	}
	if s.cachePort != nil && s.cachePort.id != id {
		return true
	}
	return s.store.Busy() && s.store.Owner() != id
}

// Flush invalidates the cache line holding addr. Memory is always current
// under write-through, so nothing is written back.
func (s *System) Flush(addr uint32) bool {
	return s.cache.Invalidate(addr)
}

// Reset drops all requests and results, invalidates the cache, clears the
// store and zeroes the counters.
func (s *System) Reset() {
	s.requests = make(map[string]*request)
	s.results = make(map[string]Response)
	s.cachePort = nil
	s.stats = Statistics{}
	s.cache.Reset()
	s.store.Reset()
}
