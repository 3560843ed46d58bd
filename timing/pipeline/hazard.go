package pipeline

import "github.com/sarchlab/pipesim/insts"

// HazardView is the set of registers with a write in flight, captured once
// per cycle before any stage runs.
type HazardView struct {
	pending [insts.NumRegisters]bool
}

// Pending reports whether reg has an outstanding write.
func (v HazardView) Pending(reg uint8) bool {
	return int(reg) < len(v.pending) && v.pending[reg]
}

// Conflict returns the first register in regs that has an outstanding
// write.
func (v HazardView) Conflict(regs []uint8) (uint8, bool) {
	for _, r := range regs {
		if v.Pending(r) {
			return r, true
		}
	}
	return 0, false
}

// HazardUnit detects read-after-write hazards. There is no forwarding
// network: a consumer waits in decode until the producer has committed in
// writeback.
type HazardUnit struct{}

// NewHazardUnit creates a new hazard detection unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{}
}

// Snapshot records the destinations of the live, decoded instructions in
// slots.
func (h *HazardUnit) Snapshot(slots ...*Slot) HazardView {
	var v HazardView
	for _, s := range slots {
		if !s.IsLive() || s.Inst == nil || !s.WritesReg {
			continue
		}
		if int(s.Dest) < len(v.pending) {
			v.pending[s.Dest] = true
		}
	}
	return v
}
