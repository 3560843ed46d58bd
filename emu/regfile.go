// Package emu provides the architectural state and the functional model of
// the pipesim core.
package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/pipesim/insts"
)

// ErrInvalidRegister is returned for register indices outside [0, 31].
var ErrInvalidRegister = errors.New("invalid register")

// RegFile represents the register file.
// It contains 32 general-purpose registers R0-R31, all writable, and the
// condition flags. R31 receives the return address of CAL by convention.
type RegFile struct {
	// X holds general-purpose registers R0-R31.
	X [insts.NumRegisters]uint32

	// Flags holds the condition flags.
	Flags Flags
}

// Flags represents the condition flags.
type Flags struct {
	// Z is the zero flag.
	Z bool
	// N is the negative flag.
	N bool
}

// Read reads a register value.
func (r *RegFile) Read(reg uint8) (uint32, error) {
	if int(reg) >= len(r.X) {
		return 0, fmt.Errorf("%w: R%d", ErrInvalidRegister, reg)
	}
	return r.X[reg], nil
}

// Write writes a value to a register.
func (r *RegFile) Write(reg uint8, value uint32) error {
	if int(reg) >= len(r.X) {
		return fmt.Errorf("%w: R%d", ErrInvalidRegister, reg)
	}
	r.X[reg] = value
	return nil
}

// ReadReg reads a register value, returning 0 for an invalid index.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	v, _ := r.Read(reg)
	return v
}

// WriteReg writes a register value. Writes to invalid indices are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	_ = r.Write(reg, value)
}

// UpdateFlags sets Z and N from a result interpreted as signed.
func (r *RegFile) UpdateFlags(result uint32) {
	r.Flags.Z = result == 0
	r.Flags.N = int32(result) < 0
}

// Reset zeroes all registers and flags.
func (r *RegFile) Reset() {
	*r = RegFile{}
}
