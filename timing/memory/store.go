// Package memory provides the single-ported main memory of the simulator.
//
// Storage is an akita mem.Storage addressed in bytes; each 32-bit word lives
// big-endian at byte address 4*addr. Accesses go through a fixed-latency
// countdown, and only one operation may be in service at a time.
package memory

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"
)

// ErrInvalidAddress is returned for word addresses outside [0, Words).
var ErrInvalidAddress = errors.New("invalid address")

// WordSize is the number of bytes per word.
const WordSize = 4

// Status is the immediate answer to a request.
type Status uint8

// Request statuses.
const (
	// StatusPending means the request was accepted and is in service.
	StatusPending Status = iota
	// StatusBusy means another requester holds the port; retry later.
	StatusBusy
	// StatusError means the request was rejected.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusBusy:
		return "busy"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Config holds the memory geometry and timing.
type Config struct {
	// Words is the capacity in words.
	Words int

	// LineWords is the cache line size used to group words for fills.
	LineWords int

	// Latency is the number of ticks an access spends in service.
	Latency uint64
}

// Result is a completed operation.
type Result struct {
	Write bool
	Addr  uint32
	Data  uint32

	// Line is a copy of the whole line holding Addr, set for reads.
	Line []uint32
}

// operation is the request in service.
type operation struct {
	requester string
	write     bool
	addr      uint32
	value     uint32
	remaining uint64
	result    *Result
}

// Store is a flat word-addressed memory with a single port.
type Store struct {
	config    Config
	storage   *mem.Storage
	inService *operation
}

// NewStore creates a zeroed memory.
func NewStore(config Config) *Store {
	return &Store{
		config:  config,
		storage: mem.NewStorage(uint64(config.Words) * WordSize),
	}
}

// Config returns the memory configuration.
func (s *Store) Config() Config {
	return s.config
}

// Size returns the capacity in words.
func (s *Store) Size() int {
	return s.config.Words
}

func (s *Store) checkAddr(addr uint32) error {
	if uint64(addr) >= uint64(s.config.Words) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidAddress, addr, s.config.Words)
	}
	return nil
}

// RequestRead starts a read for requester. An out-of-range address fails
// immediately with StatusError.
func (s *Store) RequestRead(addr uint32, requester string) (Status, error) {
	return s.request(&operation{requester: requester, addr: addr})
}

// RequestWrite starts a write for requester.
func (s *Store) RequestWrite(addr, value uint32, requester string) (Status, error) {
	return s.request(&operation{requester: requester, write: true, addr: addr, value: value})
}

func (s *Store) request(op *operation) (Status, error) {
	if s.inService != nil {
		return StatusBusy, nil
	}

	if err := s.checkAddr(op.addr); err != nil {
		return StatusError, err
	}

	op.remaining = s.config.Latency
	s.inService = op

	if op.remaining == 0 {
		if err := s.commit(op); err != nil {
			s.inService = nil
			return StatusError, err
		}
	}

	return StatusPending, nil
}

// Tick advances the operation in service by one cycle. It reports whether an
// operation completed during this tick.
func (s *Store) Tick() (bool, error) {
	op := s.inService
	if op == nil || op.result != nil {
		return false, nil
	}

	if op.remaining > 0 {
		op.remaining--
	}
	if op.remaining > 0 {
		return false, nil
	}

	if err := s.commit(op); err != nil {
		s.inService = nil
		return false, err
	}
	return true, nil
}

func (s *Store) commit(op *operation) error {
	if op.write {
		if err := s.Poke(op.addr, op.value); err != nil {
			return err
		}
		op.result = &Result{Write: true, Addr: op.addr, Data: op.value}
		return nil
	}

	data, err := s.Peek(op.addr)
	if err != nil {
		return err
	}
	line, err := s.ReadLine(op.addr)
	if err != nil {
		return err
	}
	op.result = &Result{Addr: op.addr, Data: data, Line: line}
	return nil
}

// Result returns the completed operation of requester, or nil.
func (s *Store) Result(requester string) *Result {
	if s.inService == nil || s.inService.requester != requester {
		return nil
	}
	return s.inService.result
}

// ClearOperation frees the port after requester consumed its result.
func (s *Store) ClearOperation(requester string) {
	if s.inService != nil && s.inService.requester == requester {
		s.inService = nil
	}
}

// Busy reports whether any operation holds the port.
func (s *Store) Busy() bool {
	return s.inService != nil
}

// Owner returns the requester holding the port, or "".
func (s *Store) Owner() string {
	if s.inService == nil {
		return ""
	}
	return s.inService.requester
}

// Remaining returns the ticks left for the operation in service.
func (s *Store) Remaining() uint64 {
	if s.inService == nil {
		return 0
	}
	return s.inService.remaining
}

// Peek reads a word with no timing.
func (s *Store) Peek(addr uint32) (uint32, error) {
	if err := s.checkAddr(addr); err != nil {
		return 0, err
	}

	buf, err := s.storage.Read(uint64(addr)*WordSize, WordSize)
	if err != nil {
		return 0, fmt.Errorf("reading word %d: %w", addr, err)
	}
	return binary.BigEndian.Uint32(buf), nil
}

// Poke writes a word with no timing.
func (s *Store) Poke(addr, value uint32) error {
	if err := s.checkAddr(addr); err != nil {
		return err
	}

	buf := make([]byte, WordSize)
	binary.BigEndian.PutUint32(buf, value)
	if err := s.storage.Write(uint64(addr)*WordSize, buf); err != nil {
		return fmt.Errorf("writing word %d: %w", addr, err)
	}
	return nil
}

// LineBase returns the first address of the line holding addr.
func (s *Store) LineBase(addr uint32) uint32 {
	lw := uint32(s.config.LineWords)
	return addr / lw * lw
}

// ReadLine returns a copy of the line holding addr. Words past the end of
// memory read as zero.
func (s *Store) ReadLine(addr uint32) ([]uint32, error) {
	if err := s.checkAddr(addr); err != nil {
		return nil, err
	}

	base := s.LineBase(addr)
	line := make([]uint32, s.config.LineWords)
	for i := range line {
		a := base + uint32(i)
		if uint64(a) >= uint64(s.config.Words) {
			break
		}
		w, err := s.Peek(a)
		if err != nil {
			return nil, err
		}
		line[i] = w
	}
	return line, nil
}

// Reset drops the operation in service and zeroes the contents.
func (s *Store) Reset() {
	s.inService = nil
	s.storage = mem.NewStorage(uint64(s.config.Words) * WordSize)
}
