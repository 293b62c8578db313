// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package adc

// Registers provides word access to the mapped register window.
//
// Each call must perform a single 32 bit access.
type Registers interface {
	Read(r Reg) uint32
	Write(r Reg, v uint32)
}

// Bank provides bit field and FIFO access to a set of Registers.
//
// The read/modify/write operations are not atomic with respect to the
// hardware, or other writers, so the Bank must be the only writer.
type Bank struct {
	r Registers
}

// NewBank creates a Bank over the registers.
func NewBank(r Registers) *Bank {
	return &Bank{r: r}
}

// SetBits sets the bits of the mask in the register.
func (b *Bank) SetBits(r Reg, mask uint32) {
	b.r.Write(r, b.r.Read(r)|mask)
}

// ClearBits clears the bits of the mask in the register.
func (b *Bank) ClearBits(r Reg, mask uint32) {
	b.r.Write(r, b.r.Read(r)&^mask)
}

// ReadBits returns the bits of the mask in the register.
func (b *Bank) ReadBits(r Reg, mask uint32) uint32 {
	return b.r.Read(r) & mask
}

// Read returns the whole register.
func (b *Bank) Read(r Reg) uint32 {
	return b.r.Read(r)
}

// Write sets the whole register.
func (b *Bank) Write(r Reg, v uint32) {
	b.r.Write(r, v)
}

// FIFOCount returns the number of unread entries in FIFO0.
func (b *Bank) FIFOCount() int {
	return int(b.ReadBits(RegFIFO0Cnt, fifoCountMask))
}

// ReadFIFO pops one entry from FIFO0, returning the 12 bit code and the step
// that produced it.
func (b *Bank) ReadFIFO() (code uint16, step int) {
	v := b.r.Read(RegFIFO0Data)
	return uint16(v & fifoDataMask), int((v & fifoStepMask) >> fifoStepShift)
}

// DrainFIFO pops all entries from FIFO0 and returns their codes.
//
// At most FIFODepth entries are read, so a FIFO that never reports empty
// cannot stall the caller.
func (b *Bank) DrainFIFO() []uint16 {
	var cc []uint16
	for i := 0; i < FIFODepth && b.FIFOCount() > 0; i++ {
		c, _ := b.ReadFIFO()
		cc = append(cc, c)
	}
	return cc
}
