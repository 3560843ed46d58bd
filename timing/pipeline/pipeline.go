package pipeline

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/pipesim/emu"
	"github.com/sarchlab/pipesim/timing/memsys"
)

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of cycles in which an instruction could not
	// leave its stage.
	Stalls uint64
	// DataHazards is the number of cycles decode waited on a register.
	DataHazards uint64
	// MemStalls is the number of cycles the memory stage waited.
	MemStalls uint64
	// FetchStalls is the number of cycles fetch waited.
	FetchStalls uint64
	// PortConflicts is the number of requests refused because a port was
	// held by the other requester.
	PortConflicts uint64
	// Flushes is the number of taken control transfers.
	Flushes uint64
	// Squashed is the number of instructions turned into bubbles.
	Squashed uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// HaltError reports the fault that stopped the pipeline.
type HaltError struct {
	Cycle uint64
	PC    uint32
	Stage Stage
	Err   error
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("pipeline halted at cycle %d: %s stage, PC=%d: %v",
		e.Cycle, e.Stage, e.PC, e.Err)
}

func (e *HaltError) Unwrap() error {
	return e.Err
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger used for branch, fault and halt events.
func WithLogger(logger logrus.FieldLogger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// Pipeline is a 5-stage in-order pipeline with stall-only hazard handling.
//
// Each Tick runs the stages from writeback back to fetch, so a branch
// resolved in execute redirects fetch in the same cycle, and then moves
// every finished slot one stage forward if the next stage is free.
type Pipeline struct {
	regFile *emu.RegFile
	memSys  *memsys.System
	logger  logrus.FieldLogger

	hazardUnit     *HazardUnit
	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage

	slots [NumStages]*Slot

	pc            uint32
	programLength uint32
	nextID        uint64

	// squash is raised by a taken branch and cleared at the end of the
	// cycle that raised it.
	squash bool

	// drainFetch is set while a squashed fetch is still in flight.
	drainFetch bool

	// fetchStopped is set once a fault has occurred.
	fetchStopped bool

	halted bool
	err    *HaltError

	stats Statistics
}

// NewPipeline creates a new pipeline over a register file and a memory
// system. The program must already be in memory; see SetProgramLength.
func NewPipeline(regFile *emu.RegFile, memSys *memsys.System, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		regFile:        regFile,
		memSys:         memSys,
		hazardUnit:     NewHazardUnit(),
		fetchStage:     NewFetchStage(memSys),
		decodeStage:    NewDecodeStage(regFile),
		executeStage:   NewExecuteStage(regFile),
		memoryStage:    NewMemoryStage(memSys),
		writebackStage: NewWritebackStage(regFile),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		p.logger = l
	}

	return p
}

// SetProgramLength sets the fetch boundary: fetching stops at PCs at or past
// n.
func (p *Pipeline) SetProgramLength(n uint32) {
	p.programLength = n
}

// ProgramLength returns the fetch boundary.
func (p *Pipeline) ProgramLength() uint32 {
	return p.programLength
}

// PC returns the address of the next fetch.
func (p *Pipeline) PC() uint32 {
	return p.pc
}

// SetPC sets the address of the next fetch.
func (p *Pipeline) SetPC(pc uint32) {
	p.pc = pc
}

// Stage returns the slot held by stage st, or nil when it is empty.
func (p *Pipeline) Stage(st Stage) *Slot {
	if st < 0 || st >= NumStages {
		return nil
	}
	return p.slots[st]
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// Halted returns true if the pipeline has halted.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// Err returns the fault that halted the pipeline, or nil.
func (p *Pipeline) Err() error {
	if p.err == nil {
		return nil
	}
	return p.err
}

// Reset empties the pipeline and clears the PC, the statistics and the
// halt state. The register file and the memory system are not touched.
func (p *Pipeline) Reset() {
	p.slots = [NumStages]*Slot{}
	p.pc = 0
	p.nextID = 0
	p.squash = false
	p.drainFetch = false
	p.fetchStopped = false
	p.halted = false
	p.err = nil
	p.stats = Statistics{}
}

// Step performs exactly one cycle.
func (p *Pipeline) Step() {
	p.Tick()
}

// Run executes the pipeline until it halts and returns the fault, if any.
func (p *Pipeline) Run() error {
	for !p.halted {
		p.Tick()
	}
	return p.Err()
}

// RunCycles executes the pipeline for the specified number of cycles.
// Returns true if still running, false if halted.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !p.halted; i++ {
		p.Tick()
	}
	return !p.halted
}

// Tick executes one pipeline cycle.
func (p *Pipeline) Tick() {
	if p.halted {
		return
	}

	p.stats.Cycles++

	if wb := p.slots[StageWriteback]; wb != nil && !wb.IsLive() {
		p.slots[StageWriteback] = nil
	}
	for _, s := range p.slots {
		if s != nil {
			s.Stalled = false
		}
	}

	// Decode sees the destinations held by execute and memory as they were
	// at the start of the cycle.
	hazards := p.hazardUnit.Snapshot(p.slots[StageExecute], p.slots[StageMemory])

	p.doWriteback()
	p.doMemory()
	p.doExecute()
	p.doDecode(hazards)
	p.doFetch()

	p.squash = false

	p.advance()
	p.checkHalt()
}

func (p *Pipeline) doWriteback() {
	s := p.slots[StageWriteback]
	if !s.IsLive() {
		return
	}

	if err := p.writebackStage.Writeback(s); err != nil {
		p.fault(StageWriteback, s, err)
		return
	}
	p.stats.Instructions++
}

func (p *Pipeline) doMemory() {
	p.memSys.ProcessCycle()

	s := p.slots[StageMemory]
	if !s.IsLive() || s.MemDone {
		return
	}

	resp := p.memoryStage.Access(s)
	switch resp.Status {
	case memsys.StatusWait:
		s.Stalled = true
		p.stats.MemStalls++
	case memsys.StatusBusy:
		s.Stalled = true
		p.stats.MemStalls++
		p.stats.PortConflicts++
	case memsys.StatusError:
		p.fault(StageMemory, s, resp.Err)
	}
}

func (p *Pipeline) doExecute() {
	s := p.slots[StageExecute]
	if !s.IsLive() || s.Executed {
		return
	}

	if err := p.executeStage.Execute(s); err != nil {
		p.fault(StageExecute, s, err)
		return
	}

	if s.BranchTaken {
		p.squash = true
		p.pc = s.BranchTarget
		p.stats.Flushes++
		p.logger.WithFields(logrus.Fields{
			"cycle":  p.stats.Cycles,
			"pc":     s.PC,
			"target": s.BranchTarget,
		}).Debug("branch taken")
	}
}

func (p *Pipeline) doDecode(hazards HazardView) {
	s := p.slots[StageDecode]
	if !s.IsLive() {
		return
	}

	if p.squash {
		p.squashSlot(StageDecode)
		return
	}
	if s.OperandsRead {
		return
	}

	if s.Inst == nil {
		if err := p.decodeStage.Decode(s); err != nil {
			p.fault(StageDecode, s, err)
			return
		}
	}

	if reg, ok := hazards.Conflict(s.Inst.SourceRegisters()); ok {
		s.Stalled = true
		p.stats.DataHazards++
		p.logger.WithFields(logrus.Fields{
			"cycle": p.stats.Cycles,
			"pc":    s.PC,
			"reg":   reg,
		}).Debug("data hazard")
		return
	}

	if err := p.decodeStage.ReadOperands(s); err != nil {
		p.fault(StageDecode, s, err)
	}
}

func (p *Pipeline) doFetch() {
	if p.fetchStopped {
		return
	}

	s := p.slots[StageFetch]

	if p.squash {
		if s != nil && !s.Bubble && s.FetchIssued && !s.FetchDone {
			p.drainFetch = true
		}
		p.squashSlot(StageFetch)
		return
	}

	if s != nil {
		if !s.Bubble && !s.FetchDone {
			p.continueFetch(s)
		}
		return
	}

	if p.drainFetch {
		if !p.fetchStage.Drain() {
			p.stats.FetchStalls++
			return
		}
		p.drainFetch = false
	}

	if p.pc >= p.programLength {
		p.slots[StageFetch] = p.newBubble()
		return
	}

	s = &Slot{ID: p.nextID, PC: p.pc}
	p.nextID++
	p.slots[StageFetch] = s

	if p.continueFetch(s) {
		p.pc++
	}
}

// continueFetch issues or polls the fetch of s and reports whether the
// request was not refused with an error.
func (p *Pipeline) continueFetch(s *Slot) bool {
	resp := p.fetchStage.Fetch(s)
	switch resp.Status {
	case memsys.StatusWait:
		s.Stalled = true
		p.stats.FetchStalls++
	case memsys.StatusBusy:
		s.Stalled = true
		p.stats.FetchStalls++
		p.stats.PortConflicts++
	case memsys.StatusError:
		p.fault(StageFetch, s, resp.Err)
		return false
	}
	return true
}

// advance moves finished slots one stage forward, starting from the end of
// the pipeline so that a stage vacated this cycle can be refilled at once.
func (p *Pipeline) advance() {
	blocked := false

	for st := StageWriteback; st > StageFetch; st-- {
		src := p.slots[st-1]
		if src == nil {
			continue
		}

		if !src.Done(st-1) || !p.canAccept(st) {
			if src.IsLive() {
				blocked = true
			}
			continue
		}

		p.slots[st] = src
		p.slots[st-1] = nil
	}

	if blocked {
		p.stats.Stalls++
	}
}

// canAccept reports whether stage st can take a new slot. Bubbles and
// retired instructions do not hold a stage.
func (p *Pipeline) canAccept(st Stage) bool {
	s := p.slots[st]
	return s == nil || !s.IsLive()
}

func (p *Pipeline) newBubble() *Slot {
	return &Slot{Bubble: true}
}

// squashSlot replaces the instruction in stage st with a bubble.
func (p *Pipeline) squashSlot(st Stage) {
	if s := p.slots[st]; s != nil && !s.Bubble {
		p.stats.Squashed++
		p.logger.WithFields(logrus.Fields{
			"cycle": p.stats.Cycles,
			"stage": st.String(),
			"pc":    s.PC,
		}).Trace("squashed")
	}
	p.slots[st] = p.newBubble()
}

// fault records err against s, which sits in stage st, and stops the
// pipeline from making progress past it. The faulting instruction and every
// younger one become bubbles; older instructions drain normally.
func (p *Pipeline) fault(st Stage, s *Slot, err error) {
	p.err = &HaltError{
		Cycle: p.stats.Cycles,
		PC:    s.PC,
		Stage: st,
		Err:   err,
	}
	p.fetchStopped = true
	p.drainFetch = false

	p.slots[st] = p.newBubble()
	for younger := st - 1; younger >= StageFetch; younger-- {
		p.squashSlot(younger)
	}

	p.logger.WithFields(logrus.Fields{
		"cycle": p.stats.Cycles,
		"stage": st.String(),
		"pc":    s.PC,
	}).WithError(err).Warn("pipeline fault")
}

func (p *Pipeline) checkHalt() {
	if !p.fetchStopped && p.pc < p.programLength {
		return
	}
	for _, s := range p.slots {
		if s.IsLive() {
			return
		}
	}

	p.halted = true

	fields := logrus.Fields{
		"cycles":       p.stats.Cycles,
		"instructions": p.stats.Instructions,
		"cpi":          fmt.Sprintf("%.3f", p.stats.CPI()),
	}
	if p.err != nil {
		p.logger.WithFields(fields).WithError(p.err).Info("pipeline halted on error")
		return
	}
	p.logger.WithFields(fields).Info("pipeline halted")
}
