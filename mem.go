// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package adc

import (
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Mem is the memory mapped register window covering the ADC_TSC and its
// clock control.
//
// Only one Mem may be open at a time, and it is intended to be owned by a
// single Controller for the life of the process.
type Mem struct {
	mem8 []byte
	mem  []uint32
}

// opened guards against a second mapping of the window.
var opened int32

// DevMem is the device used to map the physical register window.
var DevMem = "/dev/mem"

// Open memory maps the ADC_TSC register window from /dev/mem.
// This requires root, or CAP_SYS_RAWIO, and fails with a *MapError if the
// window cannot be mapped.
func Open() (*Mem, error) {
	if !atomic.CompareAndSwapInt32(&opened, 0, 1) {
		return nil, ErrAlreadyOpen
	}
	m, err := open(DevMem)
	if err != nil {
		atomic.StoreInt32(&opened, 0)
		return nil, err
	}
	return m, nil
}

func open(path string) (*Mem, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, &MapError{Op: "open", Path: path, Err: err}
	}
	defer file.Close()

	mem8, err := unix.Mmap(
		int(file.Fd()),
		memBase,
		memLength,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED)
	if err != nil {
		return nil, &MapError{Op: "mmap", Path: path, Err: err}
	}
	// view the mapped bytes as 32 bit words (32 bit = 4 bytes)
	mem := unsafe.Slice((*uint32)(unsafe.Pointer(&mem8[0])), len(mem8)/4)
	return &Mem{mem8: mem8, mem: mem}, nil
}

// Close unmaps the register window.
func (m *Mem) Close() error {
	if m.mem8 == nil {
		return nil
	}
	m.mem = nil
	err := unix.Munmap(m.mem8)
	m.mem8 = nil
	atomic.StoreInt32(&opened, 0)
	return errors.Wrap(err, "munmap")
}

// Read returns the value of a register.
// The read is a single 32 bit access, as required by the FIFO data
// registers which advance on each read.
func (m *Mem) Read(r Reg) uint32 {
	return atomic.LoadUint32(&m.mem[r/4])
}

// Write sets the value of a register.
func (m *Mem) Write(r Reg, v uint32) {
	atomic.StoreUint32(&m.mem[r/4], v)
}
